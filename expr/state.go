// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"fmt"
	"slices"

	"github.com/creachadair/numtools/value"
)

// State holds evaluation state that persists across records within a single
// run, such as sliding windows. A State is owned by one run and is not safe
// for concurrent use.
type State struct {
	row     int64
	windows map[string]*window
}

// NewState constructs an empty run state.
func NewState() *State { return &State{windows: make(map[string]*window)} }

// Advance marks the start of a new record. Sliding windows advance at most
// once between consecutive calls to Advance.
func (s *State) Advance() { s.row++ }

// Row reports the number of times Advance has been called.
func (s *State) Row() int64 { return s.row }

type window struct {
	vals []value.Value
	row  int64 // the row at which vals was last advanced
}

// slide pushes v into the window identified by id, unless that window has
// already advanced during the current row, and returns the current contents
// of the window, oldest first.
func (s *State) slide(id string, size int, v value.Value) ([]value.Value, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive (got %d)", size)
	}
	w, ok := s.windows[id]
	if !ok {
		w = &window{row: -1}
		s.windows[id] = w
	}
	if w.row != s.row {
		w.vals = append(w.vals, v)
		w.row = s.row
	}
	if n := len(w.vals); n > size {
		w.vals = append(w.vals[:0], w.vals[n-size:]...)
	}
	return slices.Clone(w.vals), nil
}
