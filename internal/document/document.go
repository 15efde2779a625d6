package document

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

type Written struct {
	Markdown string
	HTML     string
}

// Write stores the markdown as <dir>/<name>.md and, when withHTML is set, a
// standalone HTML rendering next to it so relative image links keep working.
func Write(dir, name, markdown string, withHTML bool) (Written, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, err
	}
	out := Written{Markdown: filepath.Join(dir, name+".md")}
	if err := os.WriteFile(out.Markdown, []byte(markdown), 0o644); err != nil {
		return Written{}, fmt.Errorf("write document: %w", err)
	}
	if !withHTML {
		return out, nil
	}

	page, err := RenderHTML(name, markdown)
	if err != nil {
		return Written{}, err
	}
	out.HTML = filepath.Join(dir, name+".html")
	if err := os.WriteFile(out.HTML, page, 0o644); err != nil {
		return Written{}, fmt.Errorf("write html: %w", err)
	}
	return out, nil
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

func RenderHTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{max-width:860px;margin:2em auto;padding:0 1em;font-family:sans-serif;line-height:1.6}img{max-width:100%}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}
