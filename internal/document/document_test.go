package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWrite_MarkdownOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	got, err := Write(dir, "talk", "# Title\n", false)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if got.HTML != "" {
		t.Fatalf("expected no html path, got %q", got.HTML)
	}
	b, err := os.ReadFile(got.Markdown)
	if err != nil || string(b) != "# Title\n" {
		t.Fatalf("unexpected markdown %q %v", b, err)
	}
}

func TestWrite_HTMLKeepsRelativeImages(t *testing.T) {
	dir := t.TempDir()
	md := "# Setup <guide>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n![Screenshot 1](./images/image-1-14s.png)\n"
	got, err := Write(dir, "guide", md, true)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(got.HTML)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	s := string(b)
	for _, want := range []string{`<img src="./images/image-1-14s.png" alt="Screenshot 1">`, "<table>", "<title>guide</title>"} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %q in html:\n%s", want, s)
		}
	}
}

func TestRenderHTML_EscapesTitle(t *testing.T) {
	b, err := RenderHTML("a<b", "text")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(b), "<title>a&lt;b</title>") {
		t.Fatalf("title not escaped:\n%s", b)
	}
}
