// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package format

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// An Aligner pads the cells of rendered rows so that columns line up.
// Widths are measured in display cells, so wide and combining runes are
// accounted for.
//
// With a positive Width, every cell is padded to at least that width and
// rows can be emitted as they arrive. With Auto set, each column is padded to
// the width of its widest cell, which requires buffering rows until Flush.
type Aligner struct {
	Width     int  // fixed column width, if positive
	Auto      bool // pad each column to its widest cell
	SkipFirst bool // do not pad the first column
	SkipLast  bool // do not pad the last column of each row
	Sep       string

	rows   [][]string
	widths []int
}

// Enabled reports whether a performs any padding.
func (a *Aligner) Enabled() bool { return a != nil && (a.Width > 0 || a.Auto) }

// Add buffers a row of cells for a later Flush.
func (a *Aligner) Add(cells []string) {
	a.rows = append(a.rows, cells)
	a.measure(cells)
}

func (a *Aligner) measure(cells []string) {
	for i, c := range cells {
		for len(a.widths) <= i {
			a.widths = append(a.widths, 0)
		}
		if w := runewidth.StringWidth(c); w > a.widths[i] {
			a.widths[i] = w
		}
	}
}

// Line renders a single row immediately. In Auto mode, column widths are the
// widest seen so far, including this row.
func (a *Aligner) Line(cells []string) string {
	if a.Auto {
		a.measure(cells)
	}
	var sb strings.Builder
	for i, c := range cells {
		if i > 0 {
			sb.WriteString(a.Sep)
		}
		sb.WriteString(a.pad(i, len(cells), c))
	}
	return sb.String()
}

func (a *Aligner) pad(i, n int, c string) string {
	if (i == 0 && a.SkipFirst) || (i == n-1 && a.SkipLast) {
		return c
	}
	w := a.Width
	if a.Auto && i < len(a.widths) && a.widths[i] > w {
		w = a.widths[i]
	}
	if w <= 0 {
		return c
	}
	return runewidth.FillRight(c, w)
}

// Flush writes all buffered rows to w, one per line, and resets a.
func (a *Aligner) Flush(w io.Writer) error {
	defer func() { a.rows = nil }()
	for _, row := range a.rows {
		if _, err := io.WriteString(w, a.Line(row)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of buffered rows.
func (a *Aligner) Pending() int { return len(a.rows) }
