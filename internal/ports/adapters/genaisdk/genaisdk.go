// Package genaisdk implements the file store and generator ports on top of
// the official Go SDK instead of raw REST calls.
package genaisdk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/forPelevin/vidoc/internal/domain/filestate"
	"github.com/forPelevin/vidoc/internal/ports/adapters/gemini"
	"github.com/forPelevin/vidoc/internal/types"
)

type Adapter struct {
	client      *genai.Client
	model       string
	temperature float64
	poll        filestate.Policy
	log         *zap.Logger
}

// New dials the SDK client. Extra options are appended after the API key,
// so an endpoint override points every call at another server.
func New(ctx context.Context, apiKey, model string, temperature float64, poll filestate.Policy, log *zap.Logger, opts ...option.ClientOption) (*Adapter, error) {
	if model == "" {
		model = gemini.DefaultModel
	}
	if poll.MaxAttempts <= 0 {
		poll = filestate.DefaultPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	c, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Adapter{client: c, model: model, temperature: temperature, poll: poll, log: log}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

func (a *Adapter) Upload(ctx context.Context, path string, onStatus func(msg string)) (types.UploadedFile, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}
	f, err := os.Open(path)
	if err != nil {
		return types.UploadedFile{}, err
	}
	defer f.Close()

	mime := gemini.MIMEType(path)
	onStatus("uploading file")
	a.log.Info("uploading via sdk", zap.String("path", path), zap.String("mime", mime))
	up, err := a.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mime,
	})
	if err != nil {
		return types.UploadedFile{}, fmt.Errorf("genai upload %s: %w", filepath.Base(path), err)
	}

	onStatus("waiting for file processing")
	st, err := filestate.Wait(ctx, a.poll, func(ctx context.Context) (filestate.Status, error) {
		got, err := a.client.GetFile(ctx, up.Name)
		if err != nil {
			return filestate.Status{}, fmt.Errorf("genai get file: %w", err)
		}
		return fileStatus(got), nil
	}, onStatus)
	if err != nil {
		return types.UploadedFile{}, fmt.Errorf("wait for %s: %w", up.Name, err)
	}

	out := types.UploadedFile{Name: up.Name, URI: st.URI, MIMEType: mime}
	if st.MIMEType != "" {
		out.MIMEType = st.MIMEType
	}
	return out, nil
}

func (a *Adapter) Delete(ctx context.Context, name string) error {
	if err := a.client.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("genai delete %s: %w", name, err)
	}
	return nil
}

func (a *Adapter) Generate(ctx context.Context, prompt string, files []types.UploadedFile) (string, error) {
	m := a.client.GenerativeModel(a.model)
	if a.temperature > 0 {
		m.SetTemperature(float32(a.temperature))
	}

	parts := make([]genai.Part, 0, len(files)+1)
	parts = append(parts, genai.Text(prompt))
	for _, f := range files {
		parts = append(parts, genai.FileData{MIMEType: f.MIMEType, URI: f.URI})
	}

	a.log.Info("requesting generation via sdk", zap.String("model", a.model), zap.Int("files", len(files)))
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return responseText(resp)
}

func fileStatus(f *genai.File) filestate.Status {
	st := filestate.Status{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType}
	switch f.State {
	case genai.FileStateActive:
		st.State = filestate.StateActive
	case genai.FileStateProcessing:
		st.State = filestate.StateProcessing
	case genai.FileStateFailed:
		st.State = filestate.StateFailed
	case genai.FileStateUnspecified:
		// same as an absent state in the REST API
	default:
		st.State = fmt.Sprintf("STATE_%d", int32(f.State))
	}
	return st
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("genai blocked the prompt: %v", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("genai: no candidates in response")
	}
	c := resp.Candidates[0]
	var b strings.Builder
	if c.Content != nil {
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("genai: no text content in response (finish reason %v)", c.FinishReason)
	}
	return b.String(), nil
}
