// Package pagerange turns user page expressions such as "1-3,5,7-9" into
// zero-based page index sets.
package pagerange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseError reports a token that is neither an integer nor an integer pair.
type ParseError struct {
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid page token %q", e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts a comma separated list of 1-based pages and inclusive ranges
// into ascending, distinct zero-based indices within [0, pageCount).
// Indices outside the document are dropped without error; an empty result is
// left for the caller to judge.
func Parse(expr string, pageCount int) ([]int, error) {
	seen := make(map[int]struct{})
	for _, raw := range strings.Split(expr, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		start, end, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		// clamp first so the loop is bounded by the document, not the input
		lo, hi := max(start, 1), min(end, pageCount)
		for p := lo; p <= hi; p++ {
			seen[p-1] = struct{}{}
		}
	}

	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// parseToken returns the inclusive 1-based bounds of a single token.
func parseToken(tok string) (int, int, error) {
	// a leading '-' would be a negative number, not a range separator
	if i := strings.Index(tok[1:], "-"); i >= 0 {
		i++
		a, err := strconv.Atoi(strings.TrimSpace(tok[:i]))
		if err != nil {
			return 0, 0, &ParseError{Token: tok, Err: err}
		}
		b, err := strconv.Atoi(strings.TrimSpace(tok[i+1:]))
		if err != nil {
			return 0, 0, &ParseError{Token: tok, Err: err}
		}
		return a, b, nil
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, 0, &ParseError{Token: tok, Err: err}
	}
	return n, n, nil
}

// Format renders zero-based indices as a compact 1-based expression,
// collapsing consecutive runs: [0 1 2 4] -> "1-3,5". Input order is kept;
// only adjacent ascending neighbours are merged.
func Format(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	var b strings.Builder
	start, prev := indices[0], indices[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == prev {
			b.WriteString(strconv.Itoa(start + 1))
			return
		}
		fmt.Fprintf(&b, "%d-%d", start+1, prev+1)
	}
	for _, idx := range indices[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush()
		start, prev = idx, idx
	}
	flush()
	return b.String()
}
