package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Progress is the question cursor as reported by the server. Well-formed
// values satisfy 0 < Current <= Total, but nothing here enforces it.
type Progress struct {
	Current int
	Total   int
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}

// Percent is Current/Total as a percentage, 0 when Total is 0.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) * 100 / float64(p.Total)
}

// Fraction is Percent clamped to [0, 1], for drawing bars.
func (p Progress) Fraction() float64 {
	f := p.Percent() / 100
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ParseProgress accepts the two shapes servers send: a "C/T" token, or no
// token at all, in which case the cursor is on question 1 of total.
func ParseProgress(token string, total int) (Progress, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Progress{Current: 1, Total: total}, nil
	}

	cur, tot, ok := strings.Cut(token, "/")
	if !ok {
		return Progress{}, fmt.Errorf("progress %q: want current/total", token)
	}
	c, err := strconv.Atoi(strings.TrimSpace(cur))
	if err != nil {
		return Progress{}, fmt.Errorf("progress %q: %w", token, err)
	}
	t, err := strconv.Atoi(strings.TrimSpace(tot))
	if err != nil {
		return Progress{}, fmt.Errorf("progress %q: %w", token, err)
	}
	return Progress{Current: c, Total: t}, nil
}
