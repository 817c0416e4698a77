package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/docfill/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns a fake now that advances one minute per call.
func clock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Minute)
		return cur
	}
}

func seed(t *testing.T, s *Store, id string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.StartSession(ctx, id, id+".docx", "http://localhost:8000"))
	for i, text := range texts {
		sender := session.SenderAssistant
		if i%2 == 1 {
			sender = session.SenderUser
		}
		require.NoError(t, s.AppendMessage(ctx, id, session.Message{Text: text, Sender: sender}))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.now = clock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	seed(t, s, "s1", "What is the full name?", "Ann Lee", "Which city?")
	require.NoError(t, s.SaveProgress(ctx, "s1", session.Progress{Current: 2, Total: 5}, session.PhaseChat))
	require.NoError(t, s.SaveValues(ctx, "s1", map[string]string{"full_name": "Ann", "city": "NYC"}))
	require.NoError(t, s.SaveValues(ctx, "s1", map[string]string{"full_name": "Ann Lee"}))
	require.NoError(t, s.MarkDownloaded(ctx, "s1", "/tmp/completed_s1.docx"))

	row, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "s1.docx", row.Template)
	assert.Equal(t, "chat", row.Phase)
	assert.Equal(t, "2/5", row.Progress.String())
	assert.Equal(t, "/tmp/completed_s1.docx", row.DownloadPath)
	assert.Equal(t, 3, row.Messages)
	assert.True(t, row.UpdatedAt.After(row.CreatedAt))

	msgs, err := s.GetMessages(ctx, "s1")
	require.NoError(t, err)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, string(m.Sender)+": "+m.Text)
	}
	want := []string{"assistant: What is the full name?", "user: Ann Lee", "assistant: Which city?"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	values, err := s.GetValues(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"full_name": "Ann Lee"}, values)

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, v)
}

func TestGetSessionUnknown(t *testing.T) {
	s := openTestStore(t)
	row, err := s.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStartSessionTwiceKeepsMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "s1", "Q1?")
	require.NoError(t, s.StartSession(ctx, "s1", "other.docx", "http://other"))

	row, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "other.docx", row.Template)
	assert.Equal(t, 1, row.Messages)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.now = clock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	seed(t, s, "old", "Q?")
	seed(t, s, "new", "Q?")

	rows, err := s.ListSessions(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].SessionID)
	assert.Equal(t, "old", rows[1].SessionID)

	rows, err = s.ListSessions(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.ListSessions(ctx, ListOptions{Since: rows[0].UpdatedAt})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].SessionID)
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.now = clock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	seed(t, s, "nda", "What is the effective date?", "March first", "What is the governing state?", "Delaware")
	seed(t, s, "lease", "What is the monthly rent?", "1200 dollars", "Which state is the property in?", "Oregon")

	results, err := s.Search(ctx, SearchOptions{Query: "state"})
	require.NoError(t, err)
	require.Len(t, results, 2, "one hit per session")
	for _, r := range results {
		assert.Contains(t, r.Snippet, HitOpen+"state"+HitClose)
	}

	results, err = s.Search(ctx, SearchOptions{Query: "Delaware", Sender: "user"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "nda", results[0].SessionID)
	assert.Equal(t, "nda.docx", results[0].Template)
	assert.Equal(t, 3, results[0].Seq)

	results, err = s.Search(ctx, SearchOptions{Query: "Delaware", Sender: "assistant"})
	require.NoError(t, err)
	assert.Empty(t, results)

	// FTS syntax in user input is taken literally
	results, err = s.Search(ctx, SearchOptions{Query: `rent" OR "x`})
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.Search(ctx, SearchOptions{Query: "  "})
	assert.Error(t, err)
}

func TestSearchCJK(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "s1", "请输入公司名称", "北京科技有限公司")

	results, err := s.Search(ctx, SearchOptions{Query: "科技"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "北京>>>科技<<<有限公司", results[0].Snippet)
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "...ve >>>Date<<< is...", makeSnippet("What is the effective Date is set", "date", 3))
	assert.Equal(t, "abcdef", makeSnippet("abcdef", "zz", 5))
	assert.Equal(t, "ab...", makeSnippet("abcdef", "zz", 1))
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = clock(start)

	seed(t, s, "old", "Q?", "A")
	require.NoError(t, s.SaveValues(ctx, "old", map[string]string{"k": "v"}))
	cutoff := s.now()
	seed(t, s, "new", "Q?")

	n, err := s.Prune(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := s.GetSession(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, row)
	values, err := s.GetValues(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, values)

	results, err := s.Search(ctx, SearchOptions{Query: "Q"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].SessionID)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sessions: 1, Messages: 1, Indexed: 1}, st)
}
