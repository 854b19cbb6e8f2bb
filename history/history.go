// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package history implements a persistent store of keyed numeric statistics,
// carried from one run of a program to the next.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/atomicfile"
	"github.com/creachadair/numtools/value"
	"github.com/gofrs/flock"
)

// An Entry records statistics about the values observed for a single key.
type Entry struct {
	Last  value.Value `json:"last"`
	Min   value.Value `json:"min"`
	Max   value.Value `json:"max"`
	Sum   value.Value `json:"sum"`
	Count int64       `json:"count"`

	First time.Time `json:"first"` // when the key was first observed
	Seen  time.Time `json:"seen"`  // when the key was last observed
}

// Avg returns the arithmetic mean of the values recorded in e, or NaN if e
// is empty.
func (e *Entry) Avg() value.Value {
	if e.Count == 0 {
		return value.Float(math.NaN())
	}
	sum, _ := e.Sum.AsFloat()
	return value.Float(sum / float64(e.Count))
}

// Update records v as observed at time t, and reports whether e changed.
// Only numeric values are recorded; other values are ignored.
func (e *Entry) Update(v value.Value, t time.Time) bool {
	if !v.IsNumeric() {
		return false
	}
	if e.Count == 0 {
		e.Min, e.Max, e.Sum = v, v, v
		e.First = t
	} else {
		if value.Less(v, e.Min) {
			e.Min = v
		}
		if value.Less(e.Max, v) {
			e.Max = v
		}
		sum, err := value.Add(e.Sum, v)
		if err != nil {
			return false
		}
		e.Sum = sum
	}
	e.Last = v
	e.Count++
	e.Seen = t
	return true
}

// A Store is a collection of entries indexed by identity key.
type Store struct {
	Updated time.Time         `json:"updated"` // when the store was last saved
	Entries map[string]*Entry `json:"entries"`
}

// NewStore constructs an empty store stamped with the given time.
func NewStore(now time.Time) *Store {
	return &Store{Updated: now, Entries: make(map[string]*Entry)}
}

// Lookup returns a copy of the entry for key, and reports whether it exists.
func (s *Store) Lookup(key string) (Entry, bool) {
	if e, ok := s.Entries[key]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Update records v for key at time t, creating an entry if necessary, and
// returns the updated entry. Updates are never deduplicated: recording the
// same value twice counts it twice.
func (s *Store) Update(key string, v value.Value, t time.Time) *Entry {
	e, ok := s.Entries[key]
	if !ok {
		if !v.IsNumeric() {
			return nil
		}
		e = new(Entry)
		s.Entries[key] = e
	}
	e.Update(v, t)
	return e
}

// Len reports the number of keys in s.
func (s *Store) Len() int { return len(s.Entries) }

// Locate returns the storage path for the named memory of the given tool.
// If name contains a path separator it is used literally. Otherwise the path
// is in a per-user directory under the system temporary directory.
func Locate(tool, name string) string {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if name == "" {
		name = "default"
	}
	dir := fmt.Sprintf("%s-%s", tool, strconv.Itoa(os.Getuid()))
	return filepath.Join(os.TempDir(), dir, "memory", name+".json")
}

// Options control how a store is opened.
type Options struct {
	// Discard any previously-stored data.
	Fresh bool

	// Do not save changes when the handle is saved.
	ReadOnly bool

	// The current time. If zero, the wall clock is used.
	Now time.Time
}

// A Handle is an open store held under an advisory lock.
type Handle struct {
	*Store

	// The time of the previous save of the store, or zero if none.
	Previous time.Time

	path string
	opts Options
	lock *flock.Flock
	now  time.Time
}

// Open opens the store at path, creating its directory if necessary. The
// caller holds an advisory lock on the store until the handle is closed.
//
// A store that does not exist or cannot be decoded is treated as empty.
func Open(path string, opts Options) (*Handle, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	lk := flock.New(path + ".lock")
	var err error
	if opts.ReadOnly {
		err = lk.RLock()
	} else {
		err = lk.Lock()
	}
	if err != nil {
		return nil, fmt.Errorf("lock history: %w", err)
	}
	h := &Handle{path: path, opts: opts, lock: lk, now: now}
	if !opts.Fresh {
		h.Store, h.Previous = load(path)
	}
	if h.Store == nil {
		h.Store = NewStore(now)
	}
	return h, nil
}

func load(path string) (*Store, time.Time) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}
	}
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, time.Time{}
	}
	if s.Entries == nil {
		s.Entries = make(map[string]*Entry)
	}
	for key, e := range s.Entries {
		if e == nil {
			delete(s.Entries, key)
		}
	}
	return &s, s.Updated
}

// Path reports the storage path of h.
func (h *Handle) Path() string { return h.path }

// Save writes the contents of the store to disk, replacing the previous
// contents atomically. If h was opened read-only, Save does nothing.
func (h *Handle) Save() error {
	if h.opts.ReadOnly {
		return nil
	}
	if h.lock == nil {
		return errors.New("history is closed")
	}
	h.Store.Updated = h.now
	f, err := atomicfile.New(h.path, 0600)
	if err != nil {
		return err
	}
	defer f.Cancel()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h.Store); err != nil {
		return err
	}
	return f.Close()
}

// Close releases the lock held by h. It does not save the store.
func (h *Handle) Close() error {
	if h.lock == nil {
		return nil
	}
	err := h.lock.Unlock()
	h.lock = nil
	return err
}
