package history

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Hit markers wrap the matched text inside Result.Snippet.
const (
	HitOpen  = ">>>"
	HitClose = "<<<"
)

type Result struct {
	SessionID string
	Template  string
	Seq       int
	Sender    string
	Snippet   string
	UpdatedAt time.Time
	Rank      float64
}

type SearchOptions struct {
	Query  string
	Sender string    // "" = all, "user", "assistant"
	Since  time.Time // zero = no filter
	Limit  int
}

// containsCJK reports whether s has Han characters, which unicode61 does
// not split into words.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// ftsQuery quotes every term so user input is never read as FTS syntax.
// Terms are ANDed.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// makeSnippet cuts contextChars runes either side of the first match of
// query in text and marks the match.
func makeSnippet(text, query string, contextChars int) string {
	runes := []rune(text)
	idx := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if idx < 0 {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	pos := len([]rune(text[:idx]))
	n := len([]rune(query))
	start := max(pos-contextChars, 0)
	end := min(pos+n+contextChars, len(runes))

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:pos]))
	b.WriteString(HitOpen)
	b.WriteString(string(runes[pos : pos+n]))
	b.WriteString(HitClose)
	b.WriteString(string(runes[pos+n : end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

// Search finds messages matching opts.Query and returns the best hit per
// session.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	want := opts.Limit
	// over-fetch so dedup still fills the page
	opts.Limit = want * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = s.searchLike(ctx, opts)
	} else {
		results, err = s.searchFTS(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Result
	for _, r := range results {
		if seen[r.SessionID] {
			continue
		}
		seen[r.SessionID] = true
		out = append(out, r)
		if len(out) >= want {
			break
		}
	}
	return out, nil
}

func filters(opts SearchOptions) ([]string, []any) {
	var conds []string
	var args []any
	if opts.Sender != "" {
		conds = append(conds, "m.sender = ?")
		args = append(args, opts.Sender)
	}
	if !opts.Since.IsZero() {
		conds = append(conds, "s.updated_at >= ?")
		args = append(args, formatTime(opts.Since))
	}
	return conds, args
}

func (s *Store) searchFTS(ctx context.Context, opts SearchOptions) ([]Result, error) {
	conds, args := filters(opts)
	conds = append([]string{"messages_fts MATCH ?"}, conds...)
	args = append([]any{ftsQuery(opts.Query)}, args...)
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT
			m.session_id, s.template, m.seq, m.sender,
			snippet(messages_fts, 0, '%s', '%s', '...', 40),
			s.updated_at,
			bm25(messages_fts) AS rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN sessions s ON m.session_id = s.session_id
		WHERE %s
		ORDER BY rank
		LIMIT ?`, HitOpen, HitClose, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var updated string
		if err := rows.Scan(&r.SessionID, &r.Template, &r.Seq, &r.Sender, &r.Snippet, &updated, &r.Rank); err != nil {
			return nil, err
		}
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) searchLike(ctx context.Context, opts SearchOptions) ([]Result, error) {
	conds, args := filters(opts)
	conds = append([]string{"m.text LIKE ?"}, conds...)
	args = append([]any{"%" + opts.Query + "%"}, args...)
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
		SELECT m.session_id, s.template, m.seq, m.sender, m.text, s.updated_at
		FROM messages m
		JOIN sessions s ON m.session_id = s.session_id
		WHERE %s
		ORDER BY s.updated_at DESC, m.seq
		LIMIT ?`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var text, updated string
		if err := rows.Scan(&r.SessionID, &r.Template, &r.Seq, &r.Sender, &text, &updated); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(text, opts.Query, 30)
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}
