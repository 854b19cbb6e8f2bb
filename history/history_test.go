// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package history_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/numtools/history"
	"github.com/creachadair/numtools/value"
	"github.com/google/go-cmp/cmp"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func asFloat(t *testing.T, v value.Value) float64 {
	t.Helper()
	f, err := v.AsFloat()
	if err != nil {
		t.Fatalf("AsFloat(%v): %v", v, err)
	}
	return f
}

func TestEntryUpdate(t *testing.T) {
	var e history.Entry
	if !math.IsNaN(asFloat(t, e.Avg())) {
		t.Errorf("Avg of empty entry: got %v, want NaN", e.Avg())
	}
	if e.Update(value.Text("x"), epoch) {
		t.Error("Update with text changed the entry")
	}

	e.Update(value.Int(100), epoch)
	if e.Count != 1 || !value.Equal(e.Min, value.Int(100)) || !value.Equal(e.Max, value.Int(100)) {
		t.Errorf("After first update: %+v", e)
	}
	if !e.First.Equal(epoch) {
		t.Errorf("First: got %v, want %v", e.First, epoch)
	}

	later := epoch.Add(time.Minute)
	e.Update(value.Int(150), later)
	want := history.Entry{
		Last: value.Int(150), Min: value.Int(100), Max: value.Int(150), Sum: value.Int(250),
		Count: 2, First: epoch, Seen: later,
	}
	if diff := cmp.Diff(want, e, cmp.Comparer(value.Equal)); diff != "" {
		t.Errorf("After second update (-want, +got):\n%s", diff)
	}
	if got := asFloat(t, e.Avg()); got != 125 {
		t.Errorf("Avg: got %v, want 125", got)
	}
}

func TestReplayCountsTwice(t *testing.T) {
	s := history.NewStore(epoch)
	s.Update("k", value.Float(2.5), epoch)
	s.Update("k", value.Float(2.5), epoch)
	e, ok := s.Lookup("k")
	if !ok {
		t.Fatal("Lookup(k): not found")
	}
	if e.Count != 2 || asFloat(t, e.Sum) != 5 {
		t.Errorf("Replay: count=%d sum=%v, want count=2 sum=5", e.Count, e.Sum)
	}
	if s.Update("t", value.Text("abc"), epoch) != nil || s.Len() != 1 {
		t.Errorf("Text update created an entry: %v", s.Entries)
	}
}

func TestStatisticsOrdering(t *testing.T) {
	s := history.NewStore(epoch)
	inputs := []value.Value{
		value.Int(5), value.Float(-2.25), value.Int(17), value.Float(3.5), value.Int(0), value.Int(-40),
	}
	for i, v := range inputs {
		e := s.Update("k", v, epoch.Add(time.Duration(i)*time.Second))
		min, max, avg := asFloat(t, e.Min), asFloat(t, e.Max), asFloat(t, e.Avg())
		if !(min <= avg && avg <= max) {
			t.Errorf("Step %d: min=%v avg=%v max=%v out of order", i, min, avg, max)
		}
		if want := asFloat(t, e.Sum) / float64(e.Count); math.Abs(avg-want) > 1e-9 {
			t.Errorf("Step %d: avg=%v, want %v", i, avg, want)
		}
		if e.Count != int64(i+1) {
			t.Errorf("Step %d: count=%d, want %d", i, e.Count, i+1)
		}
	}
}

func TestLargeCounters(t *testing.T) {
	s := history.NewStore(epoch)
	big := value.Int(5e18)
	s.Update("k", big, epoch)
	e := s.Update("k", big, epoch)
	if e.Sum.Kind() != value.FloatKind || asFloat(t, e.Sum) != 1e19 {
		t.Errorf("Sum: got %v (%v), want float 1e19", e.Sum, e.Sum.Kind())
	}
	min, max, avg := asFloat(t, e.Min), asFloat(t, e.Max), asFloat(t, e.Avg())
	if !(min <= avg && avg <= max) {
		t.Errorf("min=%v avg=%v max=%v out of order", min, avg, max)
	}
}

func TestLocate(t *testing.T) {
	if got := history.Locate("numdelta", "./here.json"); got != "./here.json" {
		t.Errorf("Locate literal: got %q", got)
	}
	got := history.Locate("numdelta", "cpu")
	if !strings.HasPrefix(got, os.TempDir()) || !strings.HasSuffix(got, filepath.Join("memory", "cpu.json")) {
		t.Errorf("Locate named: got %q", got)
	}
	if !strings.Contains(got, "numdelta-") {
		t.Errorf("Locate named: %q does not mention the tool", got)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "mem.json")

	h, err := history.Open(path, history.Options{Now: epoch})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.Len() != 0 || !h.Previous.IsZero() {
		t.Errorf("New store: len=%d previous=%v", h.Len(), h.Previous)
	}
	h.Update("1#0", value.Int(100), epoch)
	h.Update("1#1", value.Float(0.5), epoch)
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	later := epoch.Add(time.Hour)
	h2, err := history.Open(path, history.Options{Now: later})
	if err != nil {
		t.Fatalf("Open again: %v", err)
	}
	defer h2.Close()
	if !h2.Previous.Equal(epoch) {
		t.Errorf("Previous: got %v, want %v", h2.Previous, epoch)
	}
	e, ok := h2.Lookup("1#0")
	if !ok || e.Last.Kind() != value.IntKind || !value.Equal(e.Last, value.Int(100)) {
		t.Errorf("Reloaded 1#0: got %+v, %v", e, ok)
	}
	f, ok := h2.Lookup("1#1")
	if !ok || f.Last.Kind() != value.FloatKind {
		t.Errorf("Reloaded 1#1: got %+v, %v", f, ok)
	}
}

func TestCorruptAndFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	h, err := history.Open(path, history.Options{Now: epoch})
	if err != nil {
		t.Fatalf("Open corrupt: %v", err)
	}
	if h.Len() != 0 || !h.Updated.Equal(epoch) {
		t.Errorf("Corrupt store: len=%d updated=%v", h.Len(), h.Updated)
	}
	h.Update("x", value.Int(1), epoch)
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	h.Close()

	h, err = history.Open(path, history.Options{Fresh: true, Now: epoch})
	if err != nil {
		t.Fatalf("Open fresh: %v", err)
	}
	defer h.Close()
	if h.Len() != 0 {
		t.Errorf("Fresh store has %d entries", h.Len())
	}
}

func TestReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.json")
	h, err := history.Open(path, history.Options{ReadOnly: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h.Update("x", value.Int(1), epoch)
	if err := h.Save(); err != nil {
		t.Errorf("Save: %v", err)
	}
	h.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Read-only save wrote %q (err=%v)", path, err)
	}
}
