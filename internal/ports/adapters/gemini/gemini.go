package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/vidoc/internal/domain/filestate"
	"github.com/forPelevin/vidoc/internal/types"
)

const (
	DefaultModel = "gemini-2.5-pro"

	metadataTimeout = 60 * time.Second
	generateTimeout = 15 * time.Minute
)

type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// AllowedHosts may receive upload sessions besides the base URL host.
	AllowedHosts []string
	Temperature  float64
	Poll         filestate.Policy
	Logger       *zap.Logger
	HTTPClient   *http.Client
}

type Adapter struct {
	key         string
	model       string
	baseURL     string
	hosts       hostSet
	temperature float64
	poll        filestate.Policy
	log         *zap.Logger
	client      *http.Client
}

func New(o Options) *Adapter {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Poll.MaxAttempts <= 0 {
		o.Poll = filestate.DefaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.HTTPClient == nil {
		// Uploads of long videos can take far longer than any fixed client
		// timeout; calls are bounded through their contexts instead.
		o.HTTPClient = &http.Client{}
	}
	return &Adapter{
		key:         o.APIKey,
		model:       o.Model,
		baseURL:     baseURLOrDefault(o.BaseURL),
		hosts:       newHostSet(o.AllowedHosts),
		temperature: o.Temperature,
		poll:        o.Poll,
		log:         o.Logger,
		client:      o.HTTPClient,
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text    string `json:"text"`
				Thought bool   `json:"thought,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt followed by one fileData part per file and returns
// the text of the first candidate.
func (a *Adapter) Generate(ctx context.Context, prompt string, files []types.UploadedFile) (string, error) {
	parts := make([]part, 0, len(files)+1)
	parts = append(parts, part{Text: prompt})
	for _, f := range files {
		parts = append(parts, part{FileData: &fileData{MIMEType: f.MIMEType, FileURI: f.URI}})
	}
	req := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if a.temperature > 0 {
		t := a.temperature
		req.GenerationConfig = &generationConfig{Temperature: &t}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, a.model)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.authorize(httpReq)

	a.log.Info("requesting generation",
		zap.String("model", a.model),
		zap.Int("files", len(files)),
		zap.Int("prompt_chars", len(prompt)),
	)
	started := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini timeout after %s (model=%s)", generateTimeout, a.model)
		}
		return "", fmt.Errorf("gemini generate: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if err := a.checkStatus(resp, "generate"); err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", out.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini: no candidates in response")
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: no text content in response (finish reason %q)", out.Candidates[0].FinishReason)
	}
	a.log.Info("generation complete",
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(started)),
	)
	return text, nil
}

func (a *Adapter) authorize(req *http.Request) {
	req.Header.Set("x-goog-api-key", a.key)
}

func (a *Adapter) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if readErr != nil {
		return fmt.Errorf("gemini %s status %d and read body failed: %v", op, resp.StatusCode, readErr)
	}
	return fmt.Errorf("gemini %s status %d: %s", op, resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
}

var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".3gp":  "video/3gpp",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

// MIMEType maps a video file extension to its MIME type, defaulting to video/mp4.
func MIMEType(path string) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "video/mp4"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)((?:authorization|x-goog-api-key)\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
	keyParamRE    = regexp.MustCompile(`([?&]key=)[^&\s"]+`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = keyParamRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
