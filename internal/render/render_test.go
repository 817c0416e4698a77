package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Zuo-Peng/docfill/internal/session"
)

func msgs(texts ...string) []session.Message {
	var out []session.Message
	for i, t := range texts {
		sender := session.SenderAssistant
		if i%2 == 1 {
			sender = session.SenderUser
		}
		out = append(out, session.Message{Text: t, Sender: sender})
	}
	return out
}

func TestTranscriptPlain(t *testing.T) {
	out, hit := Transcript(msgs("What is your name?", "Ann"), Options{Header: "s1 nda.docx", Plain: true})
	want := strings.Join([]string{
		"--- s1 nda.docx ---",
		"ASST >",
		"  What is your name?",
		"",
		"USER >",
		"  Ann",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, out)
	assert.Equal(t, -1, hit)
}

func TestTranscriptWindow(t *testing.T) {
	m := msgs("q1", "a1", "q2", "a2", "q3", "a3", "q4")
	out, hit := Transcript(m, Options{Hit: 4, Context: 1, Plain: true})

	lines := strings.Split(out, "\n")
	assert.Equal(t, "... (2 messages before) ...", lines[0])
	assert.Equal(t, 4, hit)
	assert.Equal(t, ">> USER >  <<", lines[hit])
	assert.Contains(t, out, "  q2")
	assert.Contains(t, out, "  q3")
	assert.NotContains(t, out, "  q1")
	assert.True(t, strings.HasSuffix(out, "... (2 messages after) ...\n"))
}

func TestTranscriptEmpty(t *testing.T) {
	out, hit := Transcript(nil, Options{Plain: true})
	assert.Equal(t, "(empty session)\n", out)
	assert.Equal(t, -1, hit)
}

func TestTranscriptHighlightsQuery(t *testing.T) {
	out, _ := Transcript(msgs("Which State?"), Options{Query: "state"})
	assert.Contains(t, out, colorBoldRed+"State"+colorReset)
}

func TestTranscriptErrorBubble(t *testing.T) {
	out, _ := Transcript(msgs("Error: connection refused"), Options{})
	assert.Contains(t, out, colorError+"ASST >"+colorReset)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "abc\ndef\ng", Wrap("abcdefg", 3))
	assert.Equal(t, "ab\ncd\n\nxy", Wrap("abcd\n\nxy", 2))
	// double-width runes never split across the limit
	assert.Equal(t, "北京\n科技", Wrap("北京科技", 5))
	// escapes take no width
	assert.Equal(t, colorDim+"ab"+colorReset, Wrap(colorDim+"ab"+colorReset, 2))
	assert.Equal(t, "abc", Wrap("abc", 0))
}

func TestHighlightSnippet(t *testing.T) {
	assert.Equal(t, "the state is", HighlightSnippet("the >>>state<<< is", true))
	assert.Equal(t, "the "+colorBoldRed+"state"+colorReset+" is", HighlightSnippet("the >>>state<<< is", false))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[##        ] 1/5", ProgressBar(session.Progress{Current: 1, Total: 5}, 10))
	assert.Equal(t, "[####      ] 2/5", ProgressBar(session.Progress{Current: 2, Total: 5}, 10))
	assert.Equal(t, "[          ] 1/0", ProgressBar(session.Progress{Current: 1, Total: 0}, 10))
	assert.Equal(t, "[##########] 6/5", ProgressBar(session.Progress{Current: 6, Total: 5}, 10))
	assert.Len(t, ProgressBar(session.Progress{Current: 1, Total: 2}, 0), len("[] 1/2")+20)
}
