// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package scanner

import (
	"fmt"
	"strconv"
	"strings"
)

// A Span describes a contiguous span of a source input.
type Span struct {
	Pos int // the start offset, 0-based
	End int // the end offset, 0-based (noninclusive)
}

func (s Span) String() string {
	if s.End <= s.Pos {
		return strconv.Itoa(s.Pos)
	}
	return fmt.Sprintf("%d..%d", s.Pos, s.End)
}

// Join returns the smallest span that covers both s and t.
func (s Span) Join(t Span) Span {
	return Span{Pos: min(s.Pos, t.Pos), End: max(s.End, t.End)}
}

// Caret renders src on one line followed by a second line that marks the
// location of s with carets, for diagnostics. Offsets past the end of src
// are marked just after the last byte.
func (s Span) Caret(src string) string {
	pos := min(max(s.Pos, 0), len(src))
	n := max(s.End-pos, 1)
	var sb strings.Builder
	sb.WriteString(src)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", pos))
	sb.WriteString(strings.Repeat("^", n))
	return sb.String()
}
