package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/vidoc/internal/domain/prompt"
	"github.com/forPelevin/vidoc/internal/pipeline"
	"github.com/forPelevin/vidoc/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vidoc/internal/ports/adapters/gemini"
	"github.com/forPelevin/vidoc/internal/types"
)

func run(cmd *cobra.Command, args []string) error {
	fl := cmd.Flags()
	outDir, _ := fl.GetString("out")
	language, _ := fl.GetString("language")
	temperature, _ := fl.GetFloat64("temperature")
	customPrompt, _ := fl.GetString("prompt")
	promptFile, _ := fl.GetString("prompt-file")
	presetID, _ := fl.GetString("preset")
	embed, _ := fl.GetBool("embed-images")
	freq, _ := fl.GetString("image-frequency")
	encode, _ := fl.GetBool("encode")
	html, _ := fl.GetBool("html")
	keepRemote, _ := fl.GetBool("keep-remote")
	backend, _ := fl.GetString("backend")
	verbose, _ := fl.GetBool("verbose")
	quiet, _ := fl.GetBool("quiet")
	threshold, _ := fl.GetDuration("split-threshold")
	segment, _ := fl.GetDuration("segment")

	apiKey := os.Getenv("GEMINI_API_KEY")
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("GEMINI_API_KEY is required (set it in .env)")
	}
	if backend == "" {
		backend = getenvDefault("GEMINI_BACKEND", pipeline.BackendREST)
	}

	custom, err := resolvePrompt(customPrompt, promptFile, presetID)
	if err != nil {
		return err
	}

	inputs := make([]string, 0, len(args))
	for _, a := range args {
		src := types.ParseSource(a)
		if src.IsRemote() {
			inputs = append(inputs, src.URL)
			continue
		}
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			return err
		}
		inputs = append(inputs, abs)
	}

	bar := newBarSink(cmd.ErrOrStderr(), quiet)
	defer bar.Close()
	log := newLogger(bar, verbose, quiet)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	cfg := pipeline.Config{
		Inputs:         inputs,
		OutDir:         outDir,
		Language:       language,
		Temperature:    temperature,
		CustomPrompt:   custom,
		EmbedImages:    embed,
		ImageFrequency: types.EmbedFrequency(freq),
		Encode:         encode,
		HTML:           html,
		KeepRemote:     keepRemote,
		SplitThreshold: threshold,
		Segment:        segment,

		Logger: log,
		Logf:   log.Sugar().Infof,

		FFmpegPath:  binaryPath("ffmpeg", log),
		FFprobePath: binaryPath("ffprobe", log),

		Backend:            backend,
		GeminiAPIKey:       apiKey,
		GeminiModel:        getenvDefault("GEMINI_MODEL", gemini.DefaultModel),
		GeminiBaseURL:      getenvDefault("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		GeminiAllowedHosts: gemini.ParseAllowedHosts(os.Getenv("GEMINI_ALLOWED_HOSTS")),
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg.Progress = bar
	out, err := pipeline.Run(ctx, cfg)
	bar.Close()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.Document)
	if out.HTML != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out.HTML)
	}
	return nil
}

// resolvePrompt picks the custom prompt: --prompt wins over a preset file.
func resolvePrompt(custom, presetFile, presetID string) (string, error) {
	if presetID != "" && presetFile == "" {
		return "", errors.New("--preset requires --prompt-file")
	}
	if strings.TrimSpace(custom) != "" || presetFile == "" {
		return custom, nil
	}
	ps, err := prompt.LoadPresets(presetFile)
	if err != nil {
		return "", err
	}
	p, err := ps.Pick(presetID)
	if err != nil {
		return "", err
	}
	return p.Prompt, nil
}

// binaryPath falls back to the bare name so exec reports a clear error.
func binaryPath(name string, log *zap.Logger) string {
	p, err := ffmpeg.Locate(name)
	if err != nil {
		log.Debug("binary not located", zap.String("name", name), zap.Error(err))
		return name
	}
	return p
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
