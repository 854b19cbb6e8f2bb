// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package keying maps records and fields to the identity keys used to
// correlate them across records and across runs.
package keying

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/value"
)

// A Mode selects how records are keyed.
type Mode byte

const (
	// Line keys a record by its 1-based line number. This assumes the input
	// has the same structure from one run to the next.
	Line Mode = iota

	// Text keys a record by its shape: its text with numbers removed.
	Text

	// Count keys a record by the number of numeric fields it contains.
	Count

	// Expr keys a record by the values of one or more user expressions.
	// Expression keys are built with Values.
	Expr
)

var modeNames = [...]string{Line: "line", Text: "text", Count: "count", Expr: "expr"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// ParseMode parses the name of a keying mode. The empty string denotes Line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "line", "lineno", "position":
		return Line, nil
	case "text", "shape":
		return Text, nil
	case "count", "colcount":
		return Count, nil
	case "expr":
		return Expr, nil
	}
	return 0, fmt.Errorf("unknown keying mode %q", s)
}

// ErrExprMode is reported by Of when asked to key a line in Expr mode.
var ErrExprMode = errors.New("expression keys require evaluated values")

// Of returns the identity key of ln under mode m.
func (m Mode) Of(ln extract.Line) (string, error) {
	switch m {
	case Line:
		return strconv.Itoa(ln.Number), nil
	case Text:
		return ln.Shape(), nil
	case Count:
		return strconv.Itoa(len(ln.Fields)), nil
	case Expr:
		return "", ErrExprMode
	}
	return "", fmt.Errorf("invalid mode %v", m)
}

// Field returns the identity key of the field in column col of a record whose
// key is rec.
func Field(rec string, col int) string { return rec + "#" + strconv.Itoa(col) }

// Values returns an identity key for a tuple of evaluated values. Distinct
// tuples yield distinct keys.
func Values(vs ...value.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Kind().String() + ":" + v.String()
	}
	return strings.Join(parts, "\x1f")
}

// A Filter selects which records and fields take part in processing.
// The zero Filter accepts everything.
type Filter struct {
	Columns  mapset.Set[int] // if non-empty, only these 0-based columns
	ColCount int             // if positive, only records with exactly this many fields
}

// AcceptLine reports whether a record with n fields is accepted. A rejected
// record is skipped entirely.
func (f Filter) AcceptLine(n int) bool { return f.ColCount <= 0 || n == f.ColCount }

// AcceptColumn reports whether the field in column col is eligible.
func (f Filter) AcceptColumn(col int) bool { return f.Columns.Len() == 0 || f.Columns.Has(col) }

// ParseColumns parses a comma-separated list of 0-based column indices and
// inclusive ranges, for example "0,2,4-6".
func ParseColumns(s string) (mapset.Set[int], error) {
	out := mapset.New[int]()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(lo)
		if err != nil || a < 0 {
			return nil, fmt.Errorf("invalid column %q", part)
		}
		b := a
		if isRange {
			b, err = strconv.Atoi(hi)
			if err != nil || b < a {
				return nil, fmt.Errorf("invalid column range %q", part)
			}
		}
		for c := a; c <= b; c++ {
			out.Add(c)
		}
	}
	return out, nil
}
