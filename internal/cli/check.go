package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vidoc/internal/ports/adapters/ffmpeg"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report where ffmpeg and ffprobe were found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.OutOrStdout(), ffmpeg.Locate)
		},
	}
}

func check(w io.Writer, locate func(string) (string, error)) error {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	label := color.New(color.Bold)

	missing := 0
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		label.Fprintf(w, "%-8s ", name)
		p, err := locate(name)
		if err != nil {
			missing++
			bad.Fprintf(w, "not found (%v)\n", err)
			continue
		}
		ok.Fprintln(w, p)
	}
	if missing > 0 {
		return errors.New("ffmpeg is required: install it and make sure it is on PATH")
	}
	fmt.Fprintln(w, "all tools available")
	return nil
}
