package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/session"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorError   = "\033[1;31m" // bold red
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // keyword highlights
)

// errorPrefix marks assistant bubbles that carry a failed request.
const errorPrefix = "Error"

type Options struct {
	Header  string // first line, dimmed; "" = none
	Hit     int    // 1-based position of the message to mark, 0 = none
	Context int    // messages before/after the hit to show, <0 = all
	Width   int    // wrap width (0 = no wrap)
	Query   string // terms to highlight
	Plain   bool   // no ANSI colors
}

type printer struct {
	plain bool
}

func (p printer) paint(color, s string) string {
	if p.plain || s == "" {
		return s
	}
	return color + s + colorReset
}

// highlightKeywords wraps case-insensitive matches of each query term.
func (p printer) highlightKeywords(text, query string) string {
	if query == "" || p.plain {
		return text
	}
	for _, term := range strings.Fields(query) {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			replacement := colorBoldRed + text[pos:pos+len(term)] + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// HighlightSnippet replaces search hit markers with color, or drops them
// when plain.
func HighlightSnippet(snippet string, plain bool) string {
	on, off := colorBoldRed, colorReset
	if plain {
		on, off = "", ""
	}
	snippet = strings.ReplaceAll(snippet, history.HitOpen, on)
	return strings.ReplaceAll(snippet, history.HitClose, off)
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Wrap breaks text to maxWidth visible columns, line by line.
func Wrap(text string, maxWidth int) string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		out = append(out, wrapLine(l, maxWidth)...)
	}
	return strings.Join(out, "\n")
}

// wrapLine breaks a single line into lines that fit within maxWidth
// visible columns. ANSI escape sequences take no width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)
		if visW+rw > maxWidth && visW > 0 {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}
		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// window picks the messages around hit.
func window(n, hit, context int) (start, end int) {
	if hit < 0 || hit >= n || context < 0 {
		return 0, n
	}
	return max(hit-context, 0), min(hit+context+1, n)
}

// Transcript renders msgs and returns the text and the 0-based line of the
// hit message header (-1 if none).
func Transcript(msgs []session.Message, opts Options) (string, int) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	p := printer{plain: opts.Plain}

	var b strings.Builder
	lineCount := 0
	hitLine := -1
	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	if opts.Header != "" {
		writeLine(p.paint(colorDim, "--- "+opts.Header+" ---"))
	}
	if len(msgs) == 0 {
		writeLine(p.paint(colorDim, "(empty session)"))
		return b.String(), -1
	}

	hit := opts.Hit - 1
	start, end := window(len(msgs), hit, opts.Context)
	if start > 0 {
		writeLine(p.paint(colorDim, fmt.Sprintf("... (%d messages before) ...", start)))
	}

	for i := start; i < end; i++ {
		m := msgs[i]
		isHit := i == hit

		label, color := "ASST", colorAssist
		if m.Sender == session.SenderUser {
			label, color = "USER", colorUser
		} else if strings.HasPrefix(m.Text, errorPrefix) {
			color = colorError
		}
		ts := ""
		if !m.At.IsZero() {
			ts = m.At.Local().Format("2006-01-02 15:04:05")
		}

		if isHit {
			hitLine = lineCount
			writeLine(p.paint(colorHit, fmt.Sprintf(">> %s > %s <<", label, ts)))
		} else {
			writeLine(strings.TrimRight(p.paint(color, label+" >")+" "+p.paint(colorDim, ts), " "))
		}

		text := indentLines(p.highlightKeywords(m.Text, opts.Query), "  ")
		for _, tl := range strings.Split(text, "\n") {
			writeLine(tl)
		}
		writeLine("")
	}

	if after := len(msgs) - end; after > 0 {
		writeLine(p.paint(colorDim, fmt.Sprintf("... (%d messages after) ...", after)))
	}
	return b.String(), hitLine
}

// ProgressBar draws "[#####     ] 2/5" with width cells between the
// brackets.
func ProgressBar(pr session.Progress, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(pr.Fraction()*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "] " + pr.String()
}
