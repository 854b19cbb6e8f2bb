// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package extract splits lines of text into numeric fields and the text that
// surrounds them, so that the line can be rebuilt with some or all of the
// numbers annotated or replaced.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/creachadair/numtools/value"
)

// A Pattern selects how numbers are recognized in a line.
type Pattern byte

const (
	// Plain recognizes numbers that form an entire whitespace-delimited word,
	// optionally followed by a unit suffix (for example "12" or "12ms").
	Plain Pattern = iota

	// Aggressive recognizes numbers delimited by any punctuation, for example
	// both numbers in "x=10,y=20". A number may not be glued to a preceding
	// letter or digit, so "cpu0" contains no numbers.
	Aggressive
)

func (p Pattern) String() string {
	if p == Aggressive {
		return "aggressive"
	}
	return "plain"
}

// numberRE matches a candidate numeric literal with an optional unit suffix.
// The boundary rules of the pattern are checked separately.
var numberRE = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?([A-Za-z%µ]*)`)

// A Field is a single number extracted from a line.
type Field struct {
	Prefix string      // text between the previous field (or start of line) and this one
	Raw    string      // the number as written, without its unit
	Unit   string      // the unit suffix glued to the number, if any
	Value  value.Value // the parsed value of Raw (Int or Float)
	Column int         // 0-based index of this field in its line
}

// Token returns the complete token text of f, including its unit.
func (f Field) Token() string { return f.Raw + f.Unit }

// A Line is a line of input split into numeric fields.
type Line struct {
	Fields []Field
	Tail   string // text after the last field

	Number int    // 1-based line number in the source
	Source string // name of the source, if known
}

// Split splits text into fields according to p. A line without any numbers
// has no fields, and its entire text is the Tail.
func Split(text string, p Pattern) Line {
	var line Line
	last := 0
	for _, m := range numberRE.FindAllStringSubmatchIndex(text, -1) {
		start, end, ustart := m[0], m[1], m[2]
		if start < len(text) && (text[start] == '-' || text[start] == '+') && isWordByteBefore(text, start) {
			start++ // a sign glued to a word is a separator, not a sign
			if start >= ustart || !isDigitOrDot(text[start]) {
				continue
			}
		}
		if !boundaryOK(text, start, end, p) {
			continue
		}
		line.Fields = append(line.Fields, Field{
			Prefix: text[last:start],
			Raw:    text[start:ustart],
			Unit:   text[ustart:end],
			Value:  value.Parse(text[start:ustart]),
			Column: len(line.Fields),
		})
		last = end
	}
	line.Tail = text[last:]
	return line
}

// boundaryOK reports whether the token spanning text[start:end] is delimited
// correctly for p.
func boundaryOK(text string, start, end int, p Pattern) bool {
	before, _ := utf8.DecodeLastRuneInString(text[:start])
	after, _ := utf8.DecodeRuneInString(text[end:])
	if p == Plain {
		return (start == 0 || unicode.IsSpace(before)) && (end == len(text) || unicode.IsSpace(after))
	}
	okBefore := start == 0 || !(isWordRune(before) || before == '.')
	okAfter := end == len(text) || !(isWordRune(after) || after == '.')
	return okBefore && okAfter
}

func isWordRune(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func isWordByteBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWordRune(r) || r == '.'
}

func isDigitOrDot(b byte) bool { return b == '.' || ('0' <= b && b <= '9') }

// String reconstructs the original text of the line.
func (ln Line) String() string {
	return ln.Render(func(f Field) string { return f.Token() })
}

// Render reconstructs the line, replacing the token text of each field with
// the string returned by repl. All other text is preserved.
func (ln Line) Render(repl func(Field) string) string {
	var sb strings.Builder
	for _, f := range ln.Fields {
		sb.WriteString(f.Prefix)
		sb.WriteString(repl(f))
	}
	sb.WriteString(ln.Tail)
	return sb.String()
}

// Cells splits the line into one cell per field, where each cell holds the
// field's prefix and its token as rendered by repl. The tail of the line is
// the final cell. Cells are the unit of column alignment.
func (ln Line) Cells(repl func(Field) string) []string {
	cells := make([]string, 0, len(ln.Fields)+1)
	for _, f := range ln.Fields {
		cells = append(cells, f.Prefix+repl(f))
	}
	return append(cells, ln.Tail)
}

// Shape returns the non-numeric text of the line: the line with its numeric
// tokens removed, trimmed of surrounding whitespace. Units are kept.
func (ln Line) Shape() string {
	return strings.TrimSpace(ln.Render(func(f Field) string { return f.Unit }))
}

// Values returns the values of the fields of ln in order.
func (ln Line) Values() []value.Value {
	out := make([]value.Value, len(ln.Fields))
	for i, f := range ln.Fields {
		out[i] = f.Value
	}
	return out
}

// ParsePattern parses the name of a pattern.
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(s) {
	case "", "plain", "space":
		return Plain, nil
	case "aggressive", "punct":
		return Aggressive, nil
	}
	return 0, fmt.Errorf("unknown pattern %q", s)
}
