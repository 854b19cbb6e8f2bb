// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package csvrow reads delimited tabular input as rows of named, typed
// fields.
package csvrow

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/numtools/value"
)

// Options control how input is split into rows.
type Options struct {
	Delim    rune // field delimiter (default ',')
	Trim     bool // trim whitespace around each field
	NoHeader bool // the input has no header; columns are named c1, c2, ...
}

// A Reader reads rows from delimited input.
type Reader struct {
	cr      *csv.Reader
	opts    Options
	header  []string
	index   map[string]int
	pending []string // a data row read while synthesizing a header
	done    bool
}

// NewReader constructs a Reader that consumes input from r.
func NewReader(r io.Reader, opts Options) *Reader {
	cr := csv.NewReader(r)
	if opts.Delim != 0 {
		cr.Comma = opts.Delim
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	cr.TrimLeadingSpace = opts.Trim
	return &Reader{cr: cr, opts: opts}
}

// Header returns the column names of the input, reading the header row if it
// has not already been read. Duplicate names are an error.
func (r *Reader) Header() ([]string, error) {
	if r.header != nil {
		return r.header, nil
	}
	rec, err := r.cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	} else if err != nil {
		return nil, err
	}
	rec = r.clean(rec)
	if r.opts.NoHeader {
		r.pending = rec
		rec = Names(len(rec))
	}
	r.index = make(map[string]int, len(rec))
	for i, name := range rec {
		if _, ok := r.index[name]; ok {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		r.index[name] = i
	}
	r.header = rec
	return rec, nil
}

// Names returns the synthetic column names c1, ..., cn.
func Names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "c" + strconv.Itoa(i+1)
	}
	return out
}

func (r *Reader) clean(rec []string) []string {
	if r.opts.Trim {
		for i, s := range rec {
			rec[i] = strings.TrimSpace(s)
		}
	}
	return rec
}

// Next returns the next row of input, or io.EOF when no further rows are
// available.
func (r *Reader) Next() (*Row, error) {
	if _, err := r.Header(); err != nil {
		return nil, err
	}
	rec := r.pending
	r.pending = nil
	if rec == nil {
		var err error
		rec, err = r.cr.Read()
		if err != nil {
			return nil, err
		}
		rec = r.clean(rec)
	}
	line, _ := r.cr.FieldPos(0)
	return &Row{Line: line, Cells: rec, header: r.header, index: r.index}, nil
}

// A Row is a single row of tabular input.
type Row struct {
	Line  int      // 1-based line number of the row in its input
	Cells []string // the raw cells of the row

	header []string
	index  map[string]int
}

// Header returns the column names for r.
func (r *Row) Header() []string { return r.header }

// Get returns the typed value of the named column. A column missing from a
// short row has empty text.
func (r *Row) Get(name string) (value.Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return value.Value{}, false
	}
	if i >= len(r.Cells) {
		return value.Text(""), true
	}
	return value.Parse(r.Cells[i]), true
}

// Values returns the typed values of r in header order.
func (r *Row) Values() []value.Value {
	out := make([]value.Value, len(r.header))
	for i := range r.header {
		if i < len(r.Cells) {
			out[i] = value.Parse(r.Cells[i])
		} else {
			out[i] = value.Text("")
		}
	}
	return out
}

// Select returns the names in header that match any of the shell glob
// patterns, in header order. Each name is reported at most once.
func Select(header, patterns []string) ([]string, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	var out []string
	seen := mapset.New[string]()
	for _, name := range header {
		for _, p := range patterns {
			if ok, _ := path.Match(p, name); ok && !seen.Has(name) {
				seen.Add(name)
				out = append(out, name)
			}
		}
	}
	return out, nil
}

// ParseDelim parses a delimiter specification: a single character, or one
// of the names "tab", "space", or the escape "\t".
func ParseDelim(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	case "space":
		return ' ', nil
	}
	r, n := utf8.DecodeRuneInString(s)
	if n != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}
