// Package preview turns the server's document preview HTML into something
// safe to show: sanitized HTML for saving, wrapped text for the terminal.
// The preview is untrusted; scripts, handlers and remote content never
// survive either path.
package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Zuo-Peng/docfill/internal/render"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// documents are styled inline by the converter
	p.AllowAttrs("style").OnElements("p", "span", "div", "td", "th", "table")
	p.AllowStyles("text-align", "font-weight", "font-style", "text-decoration").Globally()
	p.AllowAttrs("class").Globally()
	p.AllowImages()
	p.AllowDataURIImages()
	return p
}

// Sanitize strips everything from raw that could run code or reach out.
func Sanitize(raw string) string {
	return policy.Sanitize(raw)
}

// Save writes the sanitized preview as a standalone HTML page.
func Save(path, title, raw string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}
	page := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s\n</body></html>\n",
		html.EscapeString(title), Sanitize(raw))
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}

// Text renders preview HTML as plain text wrapped to width columns.
func Text(raw string, width int) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse preview: %w", err)
	}

	w := &textWriter{}
	w.walk(doc)
	w.flush()

	out := strings.Join(w.lines, "\n")
	return render.Wrap(strings.TrimRight(out, "\n"), width), nil
}

type textWriter struct {
	lines []string
	cur   strings.Builder
	// list nesting, for bullet indent
	depth int
	// space is owed before the next word
	space bool
}

// flush ends the current line if it has content.
func (w *textWriter) flush() {
	line := strings.TrimRight(w.cur.String(), " ")
	w.cur.Reset()
	w.space = false
	if strings.TrimSpace(line) == "" {
		return
	}
	w.lines = append(w.lines, line)
}

// gap ends the current line and leaves one blank line, never two.
func (w *textWriter) gap() {
	w.flush()
	if n := len(w.lines); n > 0 && w.lines[n-1] != "" {
		w.lines = append(w.lines, "")
	}
}

func (w *textWriter) text(s string) {
	words := strings.Join(strings.Fields(s), " ")
	if words == "" {
		if s != "" && w.cur.Len() > 0 {
			w.space = true
		}
		return
	}
	lead := words[0] != s[0]
	if w.cur.Len() > 0 && (lead || w.space) && !strings.HasSuffix(w.cur.String(), " ") {
		w.cur.WriteByte(' ')
	}
	w.cur.WriteString(words)
	w.space = words[len(words)-1] != s[len(s)-1]
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Iframe, atom.Object:
			return
		case atom.Br:
			w.flush()
			return
		case atom.Hr:
			w.gap()
			w.lines = append(w.lines, "----")
			w.gap()
			return
		case atom.Img:
			if alt := attr(n, "alt"); alt != "" {
				w.text("[" + alt + "]")
			}
			return
		}
	}

	switch n.DataAtom {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Table, atom.Blockquote:
		w.gap()
	case atom.Ul, atom.Ol:
		w.flush()
		w.depth++
	case atom.Li:
		w.flush()
		w.cur.WriteString(strings.Repeat("  ", max(w.depth-1, 0)) + "- ")
	case atom.Tr:
		w.flush()
	case atom.Td, atom.Th:
		if w.cur.Len() > 0 {
			w.cur.WriteString(" | ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}

	switch n.DataAtom {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Table, atom.Blockquote:
		w.gap()
	case atom.Ul, atom.Ol:
		w.flush()
		w.depth--
		if w.depth == 0 {
			w.gap()
		}
	case atom.Li, atom.Tr:
		w.flush()
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
