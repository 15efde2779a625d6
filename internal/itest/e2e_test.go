//go:build integration

package itest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/vidoc/internal/domain/screenshots"
	"github.com/forPelevin/vidoc/internal/pipeline"
	"github.com/forPelevin/vidoc/internal/ports/adapters/gemini"
)

func TestE2E(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Fatalf("GEMINI_API_KEY is required for itest")
	}

	tmp := t.TempDir()
	in, length := testVideo(t, tmp, 20*time.Second)

	outDir := filepath.Join(tmp, "out")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	cfg := pipeline.Config{
		Inputs:      []string{in},
		OutDir:      outDir,
		CacheDir:    filepath.Join(tmp, "cache"),
		Language:    "english",
		EmbedImages: true,
		Encode:      true,
		HTML:        true,
		// Force a split so integration runs too.
		SplitThreshold: length / 2,
		Segment:        length / 2,
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		Backend:        os.Getenv("GEMINI_BACKEND"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		GeminiBaseURL:  os.Getenv("GEMINI_BASE_URL"),
		Logf:           t.Logf,
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = gemini.DefaultModel
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	out, err := pipeline.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	b, err := os.ReadFile(out.Document)
	if err != nil {
		t.Fatalf("missing document: %v", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		t.Fatalf("document is empty")
	}
	if len(screenshots.FindMarkers(string(b))) > 0 {
		t.Fatalf("unresolved screenshot markers left in document")
	}
	if _, err := os.Stat(out.Manifest); err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	if _, err := os.Stat(out.HTML); err != nil {
		t.Fatalf("missing html: %v", err)
	}
}
