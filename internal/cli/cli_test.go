package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/forPelevin/vidoc/internal/domain/prompt"
	"github.com/forPelevin/vidoc/internal/pipeline"
	"github.com/forPelevin/vidoc/internal/types"
)

func TestResolvePrompt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "presets.yaml")
	yml := "presets:\n" +
		"  - id: meeting\n    prompt: Summarize the meeting.\n    default: true\n" +
		"  - id: howto\n    prompt: Write a how-to guide.\n"
	if err := os.WriteFile(file, []byte(yml), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	cases := []struct {
		name             string
		custom, file, id string
		want             string
		wantErr          error
		wantErrText      string
	}{
		{name: "none", want: ""},
		{name: "custom only", custom: "Be brief.", want: "Be brief."},
		{name: "custom wins", custom: "Be brief.", file: file, id: "howto", want: "Be brief."},
		{name: "default preset", file: file, want: "Summarize the meeting."},
		{name: "preset by id", file: file, id: "howto", want: "Write a how-to guide."},
		{name: "unknown preset", file: file, id: "nope", wantErr: prompt.ErrNoPreset},
		{name: "preset without file", id: "howto", wantErrText: "--preset requires --prompt-file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePrompt(tc.custom, tc.file, tc.id)
			switch {
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			case tc.wantErrText != "":
				if err == nil || !strings.Contains(err.Error(), tc.wantErrText) {
					t.Fatalf("expected %q, got %v", tc.wantErrText, err)
				}
			default:
				if err != nil || got != tc.want {
					t.Fatalf("got %q, %v; want %q", got, err, tc.want)
				}
			}
		})
	}
}

func TestCheck(t *testing.T) {
	var buf bytes.Buffer
	err := check(&buf, func(name string) (string, error) { return "/opt/bin/" + name, nil })
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(buf.String(), "/opt/bin/ffprobe") || !strings.Contains(buf.String(), "all tools available") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	err = check(&buf, func(name string) (string, error) {
		if name == "ffprobe" {
			return "", errors.New("not on PATH")
		}
		return "/usr/bin/ffmpeg", nil
	})
	if err == nil {
		t.Fatalf("expected error when ffprobe is missing")
	}
	if !strings.Contains(buf.String(), "not found (not on PATH)") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestRootCmd_Defaults(t *testing.T) {
	root := newRootCmd()
	f := root.Flags()
	if v, _ := f.GetString("language"); v != "japanese" {
		t.Fatalf("unexpected default language %q", v)
	}
	if v, _ := f.GetDuration("segment"); v != pipeline.DefaultSegment {
		t.Fatalf("unexpected default segment %v", v)
	}
	if fl := f.Lookup("split-threshold"); fl == nil || !fl.Hidden {
		t.Fatalf("split-threshold should be a hidden flag")
	}
	if c, _, err := root.Find([]string{"check"}); err != nil || c.Name() != "check" {
		t.Fatalf("expected check subcommand, got %v %v", c, err)
	}
}

func TestRun_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	root := newRootCmd()
	root.SetArgs([]string{"in.mp4"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY is required") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestRun_ConfigErrorsAreWrapped(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "dummy")
	t.Setenv("GEMINI_BASE_URL", "https://evil.example")
	t.Setenv("GEMINI_ALLOWED_HOSTS", "")
	in := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	root := newRootCmd()
	root.SetArgs([]string{in, "--quiet"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "config: invalid GEMINI_BASE_URL") {
		t.Fatalf("expected wrapped config error, got %v", err)
	}
}

func TestBarSink(t *testing.T) {
	var buf bytes.Buffer
	s := newBarSink(&buf, false)
	s.OnProgress(types.Progress{Step: 0, Total: 3, Message: "starting"})
	s.OnProgress(types.Progress{Step: 2, Total: 5, Message: "uploading file (1/2): a.mp4"})
	if got := s.bar.GetMax(); got != 5 {
		t.Fatalf("expected max 5, got %d", got)
	}
	s.Close()
	if !strings.Contains(buf.String(), "uploading file") {
		t.Fatalf("expected description in output:\n%s", buf.String())
	}
}

func TestBarSink_LogLinesClearTheBar(t *testing.T) {
	var buf bytes.Buffer
	s := newBarSink(&buf, false)
	s.OnProgress(types.Progress{Step: 1, Total: 4, Message: "uploading file (1/1): a.mp4"})

	buf.Reset()
	if _, err := s.Write([]byte("uploaded a.mp4\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	line := strings.Index(out, "uploaded a.mp4\n")
	if line < 0 {
		t.Fatalf("log line missing:\n%q", out)
	}
	if !strings.HasPrefix(out, "\r") || strings.TrimSpace(out[:line]) != "" {
		t.Fatalf("bar not cleared before the log line:\n%q", out)
	}
	if !strings.Contains(out[line:], "uploading file") {
		t.Fatalf("bar not redrawn after the log line:\n%q", out)
	}

	buf.Reset()
	newLogger(s, false, false).Info("deleted files/1")
	if out := buf.String(); !strings.HasPrefix(out, "\r") || !strings.Contains(out, "deleted files/1") {
		t.Fatalf("logger should write through the bar:\n%q", out)
	}

	s.Close()
	buf.Reset()
	_, _ = s.Write([]byte("after exit\n"))
	if buf.String() != "after exit\n" {
		t.Fatalf("closed bar should pass lines through:\n%q", buf.String())
	}
}

func TestBarSink_QuietPassesLinesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := newBarSink(&buf, true)
	s.OnProgress(types.Progress{Step: 1, Total: 2, Message: "working"})
	newLogger(s, false, true).Error("boom")
	if out := buf.String(); !strings.Contains(out, "boom") || strings.Contains(out, "working") {
		t.Fatalf("unexpected quiet output:\n%q", out)
	}
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct{ verbose, quiet bool }{{false, false}, {true, false}, {false, true}} {
		log := newLogger(io.Discard, tc.verbose, tc.quiet)
		if got := log.Core().Enabled(zapcore.DebugLevel); got != (tc.verbose && !tc.quiet) {
			t.Fatalf("newLogger(%v, %v) debug enabled = %v", tc.verbose, tc.quiet, got)
		}
		if tc.quiet && log.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("quiet logger should only log errors")
		}
	}
}
