// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package delta_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/numtools/delta"
	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/history"
	"github.com/creachadair/numtools/keying"
	"github.com/creachadair/numtools/value"
	"github.com/google/go-cmp/cmp"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// clock returns a function that reports successive seconds from start.
func clock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

type runner struct {
	t     *testing.T
	store *history.Store
	logs  []string
}

func newRunner(t *testing.T) *runner {
	return &runner{t: t, store: history.NewStore(epoch)}
}

func (r *runner) run(cfg delta.Config, input string) string {
	r.t.Helper()
	var buf bytes.Buffer
	if cfg.Now == nil {
		cfg.Now = clock(epoch)
	}
	cfg.Logf = func(msg string, args ...any) { r.logs = append(r.logs, fmt.Sprintf(msg, args...)) }
	e, err := delta.New(cfg, r.store, &buf)
	if err != nil {
		r.t.Fatalf("New: unexpected error: %v", err)
	}
	if err := e.Process(strings.NewReader(input), "test"); err != nil {
		r.t.Fatalf("Process: unexpected error: %v", err)
	}
	if err := e.Finish(); err != nil {
		r.t.Fatalf("Finish: unexpected error: %v", err)
	}
	return buf.String()
}

func (r *runner) entry(key string) history.Entry {
	r.t.Helper()
	e, ok := r.store.Lookup(key)
	if !ok {
		r.t.Fatalf("Lookup(%q): not found", key)
	}
	return e
}

func TestDeltaAcrossRuns(t *testing.T) {
	r := newRunner(t)
	if got := r.run(delta.Config{}, "cpu 100\n"); got != "cpu 100\n" {
		t.Errorf("Run 1: got %q, want %q", got, "cpu 100\n")
	}
	if got := r.run(delta.Config{}, "cpu 150\n"); got != "cpu 150 (+50)\n" {
		t.Errorf("Run 2: got %q, want %q", got, "cpu 150 (+50)\n")
	}
	e := r.entry(keying.Field("1", 0))
	if !value.Equal(e.Last, value.Int(150)) || !value.Equal(e.Max, value.Int(150)) ||
		!value.Equal(e.Min, value.Int(100)) || e.Count != 2 {
		t.Errorf("History: got %+v", e)
	}
	if len(r.logs) != 0 {
		t.Errorf("Unexpected diagnostics: %q", r.logs)
	}
}

func TestPersistedRuns(t *testing.T) {
	path := t.TempDir() + "/mem.json"
	run := func(input string, now time.Time) string {
		h, err := history.Open(path, history.Options{Now: now})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer h.Close()
		var buf bytes.Buffer
		e, err := delta.New(delta.Config{Now: func() time.Time { return now }}, h.Store, &buf)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := e.Process(strings.NewReader(input), "test"); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if err := e.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}
		if err := h.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}
		return buf.String()
	}
	run("cpu 100\nmem 2.5\n", epoch)
	if got, want := run("cpu 150\nmem 2.0\n", epoch.Add(time.Minute)), "cpu 150 (+50)\nmem 2.0 (-0.5)\n"; got != want {
		t.Errorf("Second run: got %q, want %q", got, want)
	}
}

func TestColumnCountFilter(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{Filter: keying.Filter{ColCount: 2}}
	if got := r.run(cfg, "a 1 b 2\nc 3 d 4 e 5\n"); got != "a 1 b 2\n" {
		t.Errorf("Output: got %q, want only the two-column line", got)
	}
	if _, ok := r.store.Lookup(keying.Field("2", 0)); ok {
		t.Error("Skipped line was recorded in history")
	}
	if r.store.Len() != 2 {
		t.Errorf("History has %d entries, want 2", r.store.Len())
	}
}

func TestColumnsAndReplace(t *testing.T) {
	r := newRunner(t)
	r.run(delta.Config{}, "x 10 y 20\n")

	cfg := delta.Config{
		Filter:  keying.Filter{Columns: mapset.New(1)},
		Replace: true,
		Format:  format.MustParse("%((delta))d"),
	}
	got := r.run(cfg, "x 15 y 26\n")
	if want := "x 15 y 6\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
	if strings.Contains(got, "26") {
		t.Errorf("Replaced token still present in %q", got)
	}
	if e := r.entry(keying.Field("1", 0)); e.Count != 1 {
		t.Errorf("Filtered column was updated: %+v", e)
	}
}

func TestMatchText(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{Match: keying.Text}
	r.run(cfg, "rx 10\ntx 20\n")
	got := r.run(cfg, "tx 25\nnew 1\nrx 7\n")
	if want := "tx 25 (+5)\nnew 1\nrx 7 (-3)\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
}

func TestFormatVariables(t *testing.T) {
	r := newRunner(t)
	r.run(delta.Config{}, "load 4ms\n")
	cfg := delta.Config{
		Format:  format.MustParse(" [%((prev))v%((unit))s->%((v))v%((unit))s %((pct)).0f%% n=%((count))d max=%((max))v r=%((rate))v]"),
		Execute: expr.MustCompile("twice = v * 2"),
		ShowIf:  expr.MustCompile("twice > 0"),
		Now:     clock(epoch.Add(time.Second)),
	}
	got := r.run(cfg, "load 6ms\n")
	if want := "load 6ms [4ms->6ms 50% n=2 max=6 r=2.0]\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
}

func TestShowIfSuppresses(t *testing.T) {
	r := newRunner(t)
	r.run(delta.Config{}, "a 1 b 2\n")
	cfg := delta.Config{ShowIf: expr.MustCompile("delta != 0")}
	if got, want := r.run(cfg, "a 1 b 5\n"), "a 1 b 5 (+3)\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
}

func TestEvalErrorSkipsRecord(t *testing.T) {
	r := newRunner(t)
	r.run(delta.Config{}, "a 1\nb 2\n")
	cfg := delta.Config{Format: format.MustParse(" %((v > 3 ? nonesuch : delta))v")}
	got := r.run(cfg, "a 3\nb 4\n")
	if want := "a 3 2\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
	if len(r.logs) != 1 {
		t.Errorf("Diagnostics: got %q, want one", r.logs)
	}
	if e := r.entry(keying.Field("2", 0)); e.Count != 1 {
		t.Errorf("Failed record updated history: %+v", e)
	}
}

func TestRowFormat(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{
		RowFormat: format.MustParse("%((lineno))d:%((ncols))d:%((first ? 'new' : str(d0)))s"),
	}
	if got, want := r.run(cfg, "a 1 b 2\n"), "1:2:new\n"; got != want {
		t.Errorf("Run 1: got %q, want %q", got, want)
	}
	if got, want := r.run(cfg, "a 4 b 2\n"), "1:2:3\n"; got != want {
		t.Errorf("Run 2: got %q, want %q", got, want)
	}
}

func TestGrouped(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{Grouped: true, GroupBy: keying.Text}
	input := "disk 10 r\nnet 1 r\ndisk 5 r\nnet 2 r\n"
	if got, want := r.run(cfg, input), "disk 15 r\nnet 3 r\n"; got != want {
		t.Errorf("Run 1: got %q, want %q", got, want)
	}
	if got, want := r.run(cfg, "net 4 r\ndisk 1 r\n"), "net 4 (+1) r\ndisk 1 (-14) r\n"; got != want {
		t.Errorf("Run 2: got %q, want %q", got, want)
	}

	cfg.GroupAgg = "max"
	cfg.RowFormat = format.MustParse("%((group))s\t%((nlines))d\t%((join(c0, '+')))s\t%((f0))v")
	got := r.run(cfg, "disk 3 r\ndisk 9 r\n")
	if want := "disk  r\t2\t3+9\t9\n"; got != want {
		t.Errorf("Run 3: got %q, want %q", got, want)
	}
}

func TestAligned(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{Align: &format.Aligner{Auto: true, SkipLast: true}}
	got := r.run(cfg, "a 1 b 2\nlonger 100 c 3\n")
	want := "a 1        b 2\nlonger 100 c 3\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Output (-want, +got):\n%s", diff)
	}
}

func TestAggressive(t *testing.T) {
	r := newRunner(t)
	cfg := delta.Config{Pattern: extract.Aggressive}
	r.run(cfg, "x=10,y=20\n")
	if got, want := r.run(cfg, "x=11,y=18\n"), "x=11 (+1),y=18 (-2)\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}
}

func TestConfigErrors(t *testing.T) {
	store := history.NewStore(epoch)
	for _, cfg := range []delta.Config{
		{Match: keying.Count},
		{Grouped: true, GroupBy: keying.Line},
		{Grouped: true, GroupBy: keying.Text, GroupAgg: "abs"},
	} {
		if _, err := delta.New(cfg, store, new(bytes.Buffer)); err == nil {
			t.Errorf("New(%+v): got nil, want error", cfg)
		}
	}
}
