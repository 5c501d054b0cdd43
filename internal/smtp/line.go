package smtp

import "strings"

// lineBuffer accumulates reply fragments until a CRLF-terminated line is
// complete. It is kept separate from the session so fragmentation handling
// can be tested without protocol semantics.
type lineBuffer struct {
	b strings.Builder
}

// Push appends a fragment. Once the buffered text ends in CRLF it returns
// the accumulated line with the terminator stripped, resets the buffer,
// and reports true. Until then it reports false.
func (lb *lineBuffer) Push(fragment string) (string, bool) {
	lb.b.WriteString(fragment)
	s := lb.b.String()
	if !strings.HasSuffix(s, "\r\n") {
		return "", false
	}
	lb.b.Reset()
	return strings.TrimSuffix(s, "\r\n"), true
}

// Len returns the number of buffered bytes awaiting a terminator.
func (lb *lineBuffer) Len() int { return lb.b.Len() }
