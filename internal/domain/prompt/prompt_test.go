package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/vidoc/internal/types"
)

func TestDocument(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    []string
		notWant []string
	}{
		{
			name:    "default japanese",
			opts:    Options{Language: LanguageJapanese},
			want:    []string{"Overview of the content", "Please write the document in Japanese"},
			notWant: []string{"[Screenshot"},
		},
		{
			name: "unknown language falls back to japanese",
			opts: Options{Language: "klingon"},
			want: []string{"in Japanese"},
		},
		{
			name: "english with images",
			opts: Options{Language: LanguageEnglish, EmbedImages: true, Frequency: types.EmbedDetailed},
			want: []string{"in English", "[Screenshot: XX:XXs]", "frequently"},
		},
		{
			name:    "custom replaces default but keeps image instruction",
			opts:    Options{Custom: "  Summarize as bullet points.  ", EmbedImages: true, Frequency: types.EmbedMinimal},
			want:    []string{"  Summarize as bullet points.  ", "sparingly"},
			notWant: []string{"Overview of the content"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Document(tt.opts)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("expected prompt to contain %q:\n%s", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Fatalf("expected prompt to not contain %q:\n%s", nw, got)
				}
			}
		})
	}
}

func TestDocument_CustomPromptVerbatim(t *testing.T) {
	custom := "  Summarize as bullet points.\n\n- keep names\n  "
	if got := Document(Options{Custom: custom}); got != custom {
		t.Fatalf("custom prompt altered: %q", got)
	}
	if got := Document(Options{Custom: " \n "}); !strings.Contains(got, "Overview of the content") {
		t.Fatalf("blank custom prompt should fall back to the default:\n%s", got)
	}
}

func TestImageInstruction_DefaultsToModerate(t *testing.T) {
	if ImageInstruction("") != ImageInstruction(types.EmbedModerate) {
		t.Fatalf("empty frequency should use the moderate wording")
	}
}

func TestIntegration(t *testing.T) {
	got := Integration(LanguageEnglish, "", false, []string{"first", "second"})
	for _, w := range []string{"integrated document in English", "=== Document 1 ===\nfirst\n", "=== Document 2 ===\nsecond\n"} {
		if !strings.Contains(got, w) {
			t.Fatalf("expected %q in:\n%s", w, got)
		}
	}
	if strings.Contains(got, "[Screenshot") {
		t.Fatalf("marker instruction without embedding:\n%s", got)
	}

	custom := Integration(LanguageEnglish, "Merge these.", false, []string{"a"})
	if !strings.HasPrefix(custom, "Merge these.\n\n=== Documents to integrate ===\n=== Document 1 ===\na\n") {
		t.Fatalf("unexpected custom integration prompt:\n%s", custom)
	}
}

func TestIntegration_KeepsMarkersWhenEmbedding(t *testing.T) {
	tests := []struct {
		name   string
		custom string
	}{
		{name: "default", custom: ""},
		{name: "custom", custom: "Merge these."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Integration(LanguageJapanese, tt.custom, true, []string{"a [Screenshot: 00:14s]"})
			head, _, ok := strings.Cut(got, "=== Document 1 ===")
			if !ok {
				t.Fatalf("missing document block:\n%s", got)
			}
			if !strings.Contains(head, "Keep every [Screenshot: MM:SSs] reference exactly as written.") {
				t.Fatalf("expected keep-markers instruction before documents:\n%s", got)
			}
		})
	}
	custom := Integration(LanguageJapanese, "Merge these.", true, []string{"a"})
	if !strings.HasPrefix(custom, "Merge these.\n\nKeep every") {
		t.Fatalf("custom prompt should stay verbatim at the start:\n%s", custom)
	}
}

func TestParsePresets(t *testing.T) {
	yml := `
presets:
  - id: manual
    name: Manual
    prompt: Write an operations manual.
  - id: minutes
    name: Meeting minutes
    prompt: Write meeting minutes.
    default: true
`
	p, err := ParsePresets([]byte(yml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := p.Pick("manual")
	if err != nil || got.Prompt != "Write an operations manual." {
		t.Fatalf("pick manual: %+v %v", got, err)
	}
	def, err := p.Pick("")
	if err != nil || def.ID != "minutes" {
		t.Fatalf("pick default: %+v %v", def, err)
	}
	if _, err := p.Pick("nope"); !errors.Is(err, ErrNoPreset) {
		t.Fatalf("expected ErrNoPreset, got %v", err)
	}
}

func TestParsePresets_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing id":   "presets:\n  - prompt: x\n",
		"duplicate id": "presets:\n  - id: a\n    prompt: x\n  - id: a\n    prompt: y\n",
		"empty prompt": "presets:\n  - id: a\n    prompt: \"  \"\n",
		"bad yaml":     "presets: [",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePresets([]byte(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadPresets(t *testing.T) {
	p := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(p, []byte("presets:\n  - id: a\n    prompt: hello\n    default: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadPresets(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Presets) != 1 || got.Presets[0].Prompt != "hello" {
		t.Fatalf("unexpected presets %+v", got)
	}
}
