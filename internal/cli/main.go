package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vidoc/internal/pipeline"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vidoc <video|youtube-url>...",
		Short:        "Turn videos into a structured Markdown document with Gemini",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags
	f := root.Flags()
	f.String("out", "out", "Output directory")
	f.String("language", "japanese", "Document language: japanese or english")
	f.Float64("temperature", 0, "Sampling temperature (0 leaves the model default)")
	f.String("prompt", "", "Custom prompt replacing the default one")
	f.String("prompt-file", "", "YAML file with prompt presets")
	f.String("preset", "", "Preset id from --prompt-file (default: the preset marked default)")
	f.Bool("embed-images", false, "Embed screenshots at the timestamps the model references")
	f.String("image-frequency", "moderate", "Screenshot density: minimal, moderate or detailed")
	f.Bool("encode", false, "Re-encode to 720p H.264 before uploading")
	f.Bool("html", false, "Also write an HTML rendering of the document")
	f.Bool("keep-remote", false, "Keep uploaded files on the Gemini Files API")
	f.String("backend", "", "Gemini client: rest or sdk (default $GEMINI_BACKEND or rest)")
	f.BoolP("verbose", "v", false, "Debug logging")
	f.BoolP("quiet", "q", false, "Only log errors and hide the progress bar")

	// Hidden tuning flags (internal)
	f.Duration("split-threshold", pipeline.DefaultSplitThreshold, "Split inputs at least this long")
	f.Duration("segment", pipeline.DefaultSegment, "Length of each split part")
	_ = f.MarkHidden("split-threshold")
	_ = f.MarkHidden("segment")

	root.AddCommand(newCheckCmd())
	return root
}
