package prompt

import (
	"fmt"
	"strings"

	"github.com/forPelevin/vidoc/internal/types"
)

const (
	LanguageJapanese = "japanese"
	LanguageEnglish  = "english"
)

func ValidLanguage(l string) bool {
	return l == LanguageJapanese || l == LanguageEnglish
}

type Options struct {
	Language string
	// Custom replaces the built-in document prompt when non-empty.
	Custom      string
	EmbedImages bool
	Frequency   types.EmbedFrequency
}

// Document builds the prompt sent alongside each uploaded video.
func Document(o Options) string {
	var b strings.Builder
	if strings.TrimSpace(o.Custom) != "" {
		b.WriteString(o.Custom)
	} else {
		fmt.Fprintf(&b, `Please analyze the uploaded video(s) and create a comprehensive document based on the content. The document should include:

1. Overview of the content
2. Key points and important information
3. Step-by-step instructions or procedures if applicable
4. Technical details and specifications
5. Any relevant notes or recommendations

%s and format it in a clear, professional manner.`, languageInstruction(o.Language, "document"))
	}
	if o.EmbedImages {
		b.WriteString(ImageInstruction(o.Frequency))
	}
	return b.String()
}

// Integration builds the prompt that merges per-segment documents into one.
// With embedImages the model is told to carry screenshot markers through.
func Integration(language, custom string, embedImages bool, docs []string) string {
	var b strings.Builder
	keep := ""
	if embedImages {
		keep = keepMarkers
	}
	if strings.TrimSpace(custom) != "" {
		b.WriteString(custom)
		if keep != "" {
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSpace(keep))
		}
		b.WriteString("\n\n=== Documents to integrate ===\n")
	} else {
		fmt.Fprintf(&b,
			"Please integrate the following documents into one comprehensive, cohesive document. "+
				"Ensure proper flow, eliminate redundancy, organize the content logically, and maintain consistency throughout. "+
				"%s%s:\n\n",
			keep, languageInstruction(language, "integrated document"))
	}
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== Document %d ===\n%s\n", i+1, d)
	}
	return b.String()
}

func languageInstruction(language, what string) string {
	if language == LanguageEnglish {
		return "Please write the " + what + " in English"
	}
	return "Please write the " + what + " in Japanese"
}

const keepMarkers = "Keep every [Screenshot: MM:SSs] reference exactly as written. "

const screenshotFormat = "include screenshot references using this exact format: [Screenshot: XX:XXs] " +
	"where XX:XX is the timestamp in MM:SS format (e.g., [Screenshot: 00:14s], [Screenshot: 01:23s])."

// ImageInstruction asks the model for [Screenshot: MM:SSs] markers; the
// wording controls how often they appear.
func ImageInstruction(f types.EmbedFrequency) string {
	switch f {
	case types.EmbedMinimal:
		return "\n\nIMPORTANT: When describing the most critical visual elements or key points in the document, please " +
			screenshotFormat +
			" Use these references sparingly, only for the most important moments that are essential for understanding."
	case types.EmbedDetailed:
		return "\n\nIMPORTANT: When describing visual elements, UI components, or detailed explanations in the document, please " +
			screenshotFormat +
			" Use these references frequently to provide detailed visual context for readers."
	default:
		return "\n\nIMPORTANT: When describing visual elements or important points in the document, please " +
			screenshotFormat +
			" Use these references to mark key moments that would benefit from visual representation."
	}
}
