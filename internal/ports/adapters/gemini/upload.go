package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/forPelevin/vidoc/internal/domain/filestate"
	"github.com/forPelevin/vidoc/internal/types"
)

type fileResource struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	SizeBytes   string `json:"sizeBytes,omitempty"`
	URI         string `json:"uri,omitempty"`
	State       string `json:"state,omitempty"`
}

// Upload runs the resumable upload protocol (start, then upload+finalize in
// one request) and waits until the file is ACTIVE.
func (a *Adapter) Upload(ctx context.Context, path string, onStatus func(msg string)) (types.UploadedFile, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}

	f, err := os.Open(path)
	if err != nil {
		return types.UploadedFile{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return types.UploadedFile{}, err
	}
	if st.IsDir() {
		return types.UploadedFile{}, fmt.Errorf("upload %s: is a directory", path)
	}
	size := st.Size()
	mime := MIMEType(path)
	display := filepath.Base(path)

	a.log.Info("starting resumable upload",
		zap.String("path", path),
		zap.Int64("bytes", size),
		zap.String("mime", mime),
	)
	onStatus("starting upload session")
	session, err := a.startUpload(ctx, display, size, mime)
	if err != nil {
		return types.UploadedFile{}, err
	}

	onStatus(fmt.Sprintf("uploading file (%.1f MB)", float64(size)/1_000_000))
	res, err := a.sendBytes(ctx, session, f, size)
	if err != nil {
		return types.UploadedFile{}, err
	}
	a.log.Info("file registered", zap.String("name", res.Name))

	onStatus("waiting for file processing")
	fs, err := filestate.Wait(ctx, a.poll, func(ctx context.Context) (filestate.Status, error) {
		r, err := a.getFile(ctx, res.Name)
		if err != nil {
			return filestate.Status{}, err
		}
		a.log.Debug("file state", zap.String("name", r.Name), zap.String("state", r.State))
		return filestate.Status{Name: r.Name, URI: r.URI, MIMEType: r.MIMEType, State: r.State}, nil
	}, onStatus)
	if err != nil {
		return types.UploadedFile{}, fmt.Errorf("wait for %s: %w", res.Name, err)
	}

	out := types.UploadedFile{Name: res.Name, URI: fs.URI, MIMEType: mime}
	if fs.MIMEType != "" {
		out.MIMEType = fs.MIMEType
	}
	return out, nil
}

func (a *Adapter) startUpload(ctx context.Context, displayName string, size int64, mime string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": displayName},
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload start: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/upload/v1beta/files", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mime)
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("start resumable upload: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if err := a.checkStatus(resp, "start upload"); err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	session := strings.TrimSpace(resp.Header.Get("X-Goog-Upload-URL"))
	if session == "" {
		return "", errors.New("gemini start upload: did not receive upload URL")
	}
	u, err := url.Parse(session)
	if err != nil {
		return "", fmt.Errorf("gemini start upload: invalid upload URL %q", truncate(redactSecrets(session, a.key), 200))
	}
	if reason := a.sessionProblem(u); reason != "" {
		return "", fmt.Errorf("gemini start upload: refusing upload URL %q: %s", truncate(redactSecrets(u.Redacted(), a.key), 200), reason)
	}
	return session, nil
}

// sendBytes streams the file to the session URL. The session URL carries its
// own upload id, so the API key is not attached here.
func (a *Adapter) sendBytes(ctx context.Context, session string, r io.Reader, size int64) (fileResource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session, r)
	if err != nil {
		return fileResource{}, err
	}
	req.ContentLength = size
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := a.client.Do(req)
	if err != nil {
		return fileResource{}, fmt.Errorf("upload file content: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if err := a.checkStatus(resp, "upload"); err != nil {
		return fileResource{}, err
	}

	var out struct {
		File fileResource `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fileResource{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" {
		return fileResource{}, errors.New("gemini upload: response has no file name")
	}
	return out.File, nil
}

func (a *Adapter) getFile(ctx context.Context, name string) (fileResource, error) {
	if err := validateFileName(name); err != nil {
		return fileResource{}, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return fileResource{}, err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fileResource{}, fmt.Errorf("get file status: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if err := a.checkStatus(resp, "get file"); err != nil {
		return fileResource{}, err
	}

	var out fileResource
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fileResource{}, fmt.Errorf("decode file status: %w", err)
	}
	if out.Name == "" {
		out.Name = name
	}
	return out, nil
}

// Delete removes an uploaded file. Files expire on their own after 48h;
// deleting early frees the project's storage quota.
func (a *Adapter) Delete(ctx context.Context, name string) error {
	if err := validateFileName(name); err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, a.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if err := a.checkStatus(resp, "delete file"); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func validateFileName(name string) error {
	id, ok := strings.CutPrefix(name, "files/")
	if !ok || id == "" || strings.ContainsAny(id, "/?#") || strings.Contains(id, "..") {
		return fmt.Errorf("gemini: invalid file name %q", name)
	}
	return nil
}
