package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forPelevin/vidoc/internal/domain/filestate"
	"github.com/forPelevin/vidoc/internal/domain/prompt"
	"github.com/forPelevin/vidoc/internal/ports"
	"github.com/forPelevin/vidoc/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vidoc/internal/ports/adapters/gemini"
	"github.com/forPelevin/vidoc/internal/ports/adapters/genaisdk"
	"github.com/forPelevin/vidoc/internal/types"
	"github.com/forPelevin/vidoc/internal/usecase"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"

	DefaultSplitThreshold = 3600 * time.Second
	DefaultSegment        = 3500 * time.Second
)

type Config struct {
	// Inputs are local video paths or YouTube URLs, in document order.
	Inputs []string
	OutDir string

	Language       string
	Temperature    float64
	CustomPrompt   string
	EmbedImages    bool
	ImageFrequency types.EmbedFrequency
	Encode         bool
	HTML           bool
	KeepRemote     bool

	SplitThreshold time.Duration
	Segment        time.Duration

	Logger   *zap.Logger
	Logf     func(format string, args ...any)
	Progress ports.ProgressSink

	// CacheDir is the base directory for split parts and encoded copies.
	// If empty, defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string

	Backend            string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	GeminiAllowedHosts []string

	// Poll overrides the file state polling policy; zero means the default.
	Poll filestate.Policy
}

func (c Config) Validate() error {
	if len(c.Inputs) == 0 {
		return errors.New("no input videos")
	}
	for _, in := range c.Inputs {
		src := types.ParseSource(in)
		if src.IsRemote() {
			continue
		}
		if src.Path == "" {
			return errors.New("input is empty")
		}
		st, err := os.Stat(src.Path)
		if err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if st.IsDir() {
			return fmt.Errorf("input %s is a directory", src.Path)
		}
	}
	if !prompt.ValidLanguage(c.Language) {
		return fmt.Errorf("unknown language %q (want japanese or english)", c.Language)
	}
	if c.ImageFrequency != "" && !c.ImageFrequency.Valid() {
		return fmt.Errorf("unknown image frequency %q (want minimal, moderate or detailed)", c.ImageFrequency)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0")
	}
	if c.SplitThreshold <= 0 {
		return fmt.Errorf("split threshold must be > 0")
	}
	if c.Segment <= 0 {
		return fmt.Errorf("segment length must be > 0")
	}
	if c.Segment > c.SplitThreshold {
		return fmt.Errorf("segment length must be <= split threshold")
	}
	switch c.Backend {
	case "", BackendREST, BackendSDK:
	default:
		return fmt.Errorf("unknown backend %q (want rest or sdk)", c.Backend)
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	return gemini.ValidateBaseURL(c.GeminiBaseURL, c.GeminiAllowedHosts)
}

// Output locates what a finished run wrote.
type Output struct {
	RunDir   string
	Document string
	HTML     string
	Manifest string
}

func Run(ctx context.Context, cfg Config) (Output, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sources := make([]types.Source, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		sources = append(sources, types.ParseSource(in))
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, log.Named("ffmpeg"))
	files, llm, closeFn, err := buildGemini(ctx, cfg, log)
	if err != nil {
		return Output{}, err
	}
	defer closeFn()

	uc := usecase.New(usecase.Deps{
		Video:    v,
		Files:    files,
		LLM:      llm,
		Progress: cfg.Progress,
	})

	jobID := hash(strings.Join(cfg.Inputs, "\n"))
	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	logf("preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Output{}, err
	}
	logf("cache: %s", cacheDir)

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	started := time.Now().UTC()
	runOutDir := buildRunOutDir(outDir, cfg.Inputs[0], started)
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Output{}, err
	}
	logf("output run dir: %s", runOutDir)

	freq := cfg.ImageFrequency
	if freq == "" {
		freq = types.EmbedModerate
	}
	res, err := uc.Run(ctx, usecase.Input{
		Sources:        sources,
		WorkDir:        cacheDir,
		OutDir:         runOutDir,
		DocName:        docName(cfg.Inputs[0]),
		Language:       cfg.Language,
		CustomPrompt:   cfg.CustomPrompt,
		EmbedImages:    cfg.EmbedImages,
		Frequency:      freq,
		Encode:         cfg.Encode,
		SplitThreshold: cfg.SplitThreshold,
		Segment:        cfg.Segment,
		KeepRemote:     cfg.KeepRemote,
		HTML:           cfg.HTML,
		Logf:           logf,
	})
	if err != nil {
		return Output{}, err
	}

	m := res.Manifest
	m.RunID = uuid.NewString()
	m.Inputs = cfg.Inputs
	m.Model = modelName(cfg.GeminiModel)
	m.Language = cfg.Language
	m.Started = started
	m.Finished = time.Now().UTC()

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Output{}, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return Output{}, err
	}
	logf("manifest written (%d segments): %s", len(m.Segments), manifestPath)

	out := Output{
		RunDir:   runOutDir,
		Document: filepath.Join(runOutDir, m.Document),
		Manifest: manifestPath,
	}
	if m.HTML != "" {
		out.HTML = filepath.Join(runOutDir, m.HTML)
	}
	return out, nil
}

func buildGemini(ctx context.Context, cfg Config, log *zap.Logger) (ports.FileStore, ports.Generator, func(), error) {
	if cfg.Backend == BackendSDK {
		a, err := genaisdk.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature, cfg.Poll, log.Named("genai"))
		if err != nil {
			return nil, nil, nil, err
		}
		return a, a, func() {
			if err := a.Close(); err != nil {
				log.Warn("close genai client", zap.Error(err))
			}
		}, nil
	}
	a := gemini.New(gemini.Options{
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.GeminiModel,
		BaseURL:      cfg.GeminiBaseURL,
		AllowedHosts: cfg.GeminiAllowedHosts,
		Temperature:  cfg.Temperature,
		Poll:         cfg.Poll,
		Logger:       log.Named("gemini"),
	})
	return a, a, func() {}, nil
}

func modelName(m string) string {
	if m == "" {
		return gemini.DefaultModel
	}
	return m
}

func docName(input string) string {
	if types.IsYouTubeURL(input) {
		return "document"
	}
	name := normalizePathSegment(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	if name == "" {
		return "document"
	}
	return name
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := ""
	if !types.IsYouTubeURL(input) {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.FileStore = (*gemini.Adapter)(nil)
var _ ports.Generator = (*gemini.Adapter)(nil)
var _ ports.FileStore = (*genaisdk.Adapter)(nil)
var _ ports.Generator = (*genaisdk.Adapter)(nil)
