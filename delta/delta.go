// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package delta implements a stream filter that annotates the numbers in
// lines of text with how they have changed since they were last seen, using
// a history store that persists between runs.
//
// Each input line is split into numeric fields and assigned an identity key.
// Each field of the line is then compared with the history entry for the same
// key and column, and the line is rendered with the result: either by
// annotating (or replacing) each number in place, or by synthesizing a new
// line from a row template. In grouped mode, lines sharing a key are
// accumulated and one line is rendered per group when input ends.
package delta

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/extract"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/history"
	"github.com/creachadair/numtools/keying"
	"github.com/creachadair/numtools/value"
)

// DefaultFormat is the inline format used when none is given. It is appended
// after each number that has a previous value.
const DefaultFormat = " (%((delta))+v)"

// Config carries the settings for an Engine.
type Config struct {
	Pattern extract.Pattern // how numbers are recognized
	Match   keying.Mode     // how lines are keyed (Line or Text)
	Filter  keying.Filter   // which lines and columns take part

	// If GroupBy is Text or Count, lines sharing a key are grouped, and one
	// line is rendered per group at the end of input. Otherwise each line is
	// rendered as it is read.
	GroupBy  keying.Mode
	Grouped  bool
	GroupAgg string // aggregate applied to each column of a group (default "sum")

	Format    *format.Template // inline format (default DefaultFormat)
	Replace   bool             // replace numbers with the format instead of appending
	RowFormat *format.Template // if set, synthesize one line per record
	ShowIf    *expr.Expr       // if set, only annotate when true
	Execute   *expr.Expr       // if set, statements run before formatting

	Align      *format.Aligner // if set, align output columns
	Unbuffered bool            // flush output after each record
	Debug      bool            // log expression errors in detail

	// If set, report the current time. The default is time.Now.
	Now func() time.Time

	// If set, log diagnostics. The default is log.Printf.
	Logf func(string, ...any)
}

// An Engine processes lines of input against a history store.
type Engine struct {
	cfg   Config
	store *history.Store
	out   *bufio.Writer
	root  *expr.Env
	agg   *expr.Expr

	nrec   int    // records read, across all inputs
	sep    string // joins output cells when not aligned
	groups []*group
	byKey  map[string]*group

	// Counters, reported by Stats.
	nread, nskip, nfail int
}

type group struct {
	key   string
	first extract.Line
	lines []string
	cols  [][]value.Value
}

// New constructs an engine that records history in store and writes its
// output to w. The caller is responsible for saving the store.
func New(cfg Config, store *history.Store, w io.Writer) (*Engine, error) {
	if cfg.Format == nil {
		cfg.Format = format.MustParse(DefaultFormat)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	if cfg.Match != keying.Line && cfg.Match != keying.Text {
		return nil, fmt.Errorf("invalid match mode %v", cfg.Match)
	}
	e := &Engine{
		cfg:   cfg,
		store: store,
		out:   bufio.NewWriter(w),
		root:  expr.NewEnv(nil),
		byKey: make(map[string]*group),
	}
	if cfg.RowFormat != nil {
		e.sep = "\t"
		if cfg.Align != nil && cfg.Align.Sep == "" {
			cfg.Align.Sep = " "
		}
	}
	if cfg.Grouped {
		if cfg.GroupBy != keying.Text && cfg.GroupBy != keying.Count {
			return nil, fmt.Errorf("invalid group mode %v", cfg.GroupBy)
		}
		agg := cfg.GroupAgg
		if agg == "" {
			agg = "sum"
		}
		if !expr.IsAggregateFunc(agg) {
			return nil, fmt.Errorf("%q is not an aggregate function", agg)
		}
		x, err := expr.Compile(agg + "(c)")
		if err != nil {
			return nil, fmt.Errorf("group aggregate: %w", err)
		}
		e.agg = x
	}
	return e, nil
}

// Process reads lines from r until EOF and processes each in turn. Errors in
// individual records are logged and the records skipped; Process reports
// only errors reading input or writing output.
func (e *Engine) Process(r io.Reader, source string) error {
	br := bufio.NewReader(r)
	for ln := 1; ; ln++ {
		text, err := br.ReadString('\n')
		if text == "" && err == io.EOF {
			return nil
		} else if err != nil && err != io.EOF {
			return fmt.Errorf("%s: line %d: %w", source, ln, err)
		}
		if err := e.Line(strings.TrimRight(text, "\r\n"), ln, source); err != nil {
			return err
		}
	}
}

// Line processes a single line of input. It reports an error only if the
// output cannot be written.
func (e *Engine) Line(text string, lineno int, source string) error {
	e.nrec++
	e.nread++
	e.root.State().Advance()

	ln := extract.Split(text, e.cfg.Pattern)
	ln.Number = e.nrec
	ln.Source = source
	if !e.cfg.Filter.AcceptLine(len(ln.Fields)) {
		e.nskip++
		return nil
	}
	if e.cfg.Grouped {
		e.addToGroup(ln)
		return nil
	}

	key, err := e.cfg.Match.Of(ln)
	if err != nil {
		return err
	}
	rendered, err := e.render(ln, key, nil)
	if err != nil {
		e.fail(fmt.Sprintf("%s: line %d", source, lineno), err)
		return nil
	}
	return e.emit(rendered)
}

func (e *Engine) fail(where string, err error) {
	e.nfail++
	if e.cfg.Debug {
		e.cfg.Logf("%s: %s", where, expr.Detail(err))
	} else {
		e.cfg.Logf("%s: %v", where, err)
	}
}

// An update is a pending history update for one field.
type update struct {
	key string
	v   value.Value
}

// render processes the fields of ln keyed by key, and returns the rendered
// cells of the output. History is updated only if rendering succeeds. If g is
// not nil, ln is the synthesized line for group g.
func (e *Engine) render(ln extract.Line, key string, g *group) ([]string, error) {
	now := e.cfg.Now()
	var pending []update
	var fields []fieldVars
	for _, f := range ln.Fields {
		if !e.cfg.Filter.AcceptColumn(f.Column) {
			continue
		}
		fkey := keying.Field(key, f.Column)
		old, had := e.store.Lookup(fkey)
		cur := old
		if !cur.Update(f.Value, now) {
			continue
		}
		pending = append(pending, update{key: fkey, v: f.Value})
		fields = append(fields, fieldVars{
			field: f, key: fkey, old: old, cur: cur, had: had, now: now,
		})
	}

	var cells []string
	var err error
	if e.cfg.RowFormat != nil {
		cells, err = e.renderRow(ln, key, fields, g)
	} else {
		cells, err = e.renderInline(ln, fields)
	}
	if err != nil {
		return nil, err
	}
	for _, u := range pending {
		e.store.Update(u.key, u.v, now)
	}
	return cells, nil
}

// fieldVars carries the state of one field for the expression environment.
type fieldVars struct {
	field    extract.Field
	key      string
	old, cur history.Entry
	had      bool
	now      time.Time
}

func (fv *fieldVars) bind(env *expr.Env, line string) error {
	v := fv.field.Value
	env.Set("v", v)
	env.Set("value", v)
	env.Set("unit", value.Text(fv.field.Unit))
	env.Set("col", value.Int(int64(fv.field.Column)))
	env.Set("line", value.Text(line))
	env.Set("key", value.Text(fv.key))
	env.Set("first", value.Bool(!fv.had))
	env.Set("min", fv.cur.Min)
	env.Set("max", fv.cur.Max)
	env.Set("sum", fv.cur.Sum)
	env.Set("avg", fv.cur.Avg())
	env.Set("count", value.Int(fv.cur.Count))
	if !fv.had {
		return nil
	}
	d, err := value.Sub(v, fv.old.Last)
	if err != nil {
		return err
	}
	env.Set("prev", fv.old.Last)
	env.Set("delta", d)
	env.Set("d", d)
	env.Set("sign", value.Text(sign(d)))

	df, _ := d.AsFloat()
	pf, _ := fv.old.Last.AsFloat()
	env.Set("pct", value.Float(ratio(df*100, pf)))
	secs := fv.now.Sub(fv.old.Seen).Seconds()
	env.Set("elapsed", value.Float(secs))
	env.Set("rate", value.Float(ratio(df, secs)))
	return nil
}

func sign(d value.Value) string {
	switch c, _ := value.Compare(d, value.Int(0)); c {
	case 1:
		return "+"
	case -1:
		return "-"
	}
	return ""
}

func ratio(x, y float64) float64 {
	if y == 0 {
		return math.NaN()
	}
	return x / y
}

func (e *Engine) renderInline(ln extract.Line, fields []fieldVars) ([]string, error) {
	repl := make(map[int]string)
	for i := range fields {
		fv := &fields[i]
		if !fv.had {
			continue // nothing to compare with
		}
		env := e.root.Child().WithKey(fv.key)
		if err := fv.bind(env, ln.String()); err != nil {
			return nil, err
		}
		if x := e.cfg.Execute; x != nil {
			if _, err := x.Eval(env); err != nil {
				return nil, err
			}
		}
		if x := e.cfg.ShowIf; x != nil {
			if ok, err := x.EvalBool(env); err != nil || !ok {
				continue
			}
		}
		s, err := e.cfg.Format.Render(env)
		if err != nil {
			return nil, err
		}
		if e.cfg.Replace {
			repl[fv.field.Column] = s
		} else {
			repl[fv.field.Column] = fv.field.Token() + s
		}
	}
	return ln.Cells(func(f extract.Field) string {
		if s, ok := repl[f.Column]; ok {
			return s
		}
		return f.Token()
	}), nil
}

func (e *Engine) renderRow(ln extract.Line, key string, fields []fieldVars, g *group) ([]string, error) {
	env := e.root.Child().WithKey(key)
	vals := ln.Values()
	for i, v := range vals {
		env.Set("f"+strconv.Itoa(i), v)
	}
	env.Set("fields", value.List(vals))
	env.Set("ncols", value.Int(int64(len(vals))))
	env.Set("lineno", value.Int(int64(ln.Number)))
	env.Set("key", value.Text(key))

	first := false
	for _, fv := range fields {
		col := strconv.Itoa(fv.field.Column)
		if !fv.had {
			first = true
			continue
		}
		env.Set("p"+col, fv.old.Last)
		if d, err := value.Sub(fv.field.Value, fv.old.Last); err == nil {
			env.Set("d"+col, d)
		}
	}
	env.Set("first", value.Bool(first))

	if g == nil {
		env.Set("line", value.Text(ln.String()))
	} else {
		env.Set("line", value.Text(g.first.String()))
		env.Set("group", value.Text(g.key))
		env.Set("nlines", value.Int(int64(len(g.lines))))
		lines := make([]value.Value, len(g.lines))
		for i, s := range g.lines {
			lines[i] = value.Text(s)
		}
		env.Set("lines", value.List(lines))
		for i, col := range g.cols {
			env.Set("c"+strconv.Itoa(i), value.List(col))
		}
	}

	if x := e.cfg.Execute; x != nil {
		if _, err := x.Eval(env); err != nil {
			return nil, err
		}
	}
	if x := e.cfg.ShowIf; x != nil {
		if ok, err := x.EvalBool(env); err != nil || !ok {
			return nil, nil
		}
	}
	s, err := e.cfg.RowFormat.Render(env)
	if err != nil {
		return nil, err
	}
	return strings.Split(s, "\t"), nil
}

func (e *Engine) addToGroup(ln extract.Line) {
	key, _ := e.cfg.GroupBy.Of(ln)
	g, ok := e.byKey[key]
	if !ok {
		g = &group{key: key, first: ln}
		e.byKey[key] = g
		e.groups = append(e.groups, g)
	}
	g.lines = append(g.lines, ln.String())
	for i, f := range ln.Fields {
		for len(g.cols) <= i {
			g.cols = append(g.cols, nil)
		}
		g.cols[i] = append(g.cols[i], f.Value)
	}
}

// flushGroups renders one line for each group, in the order the groups were
// first seen.
func (e *Engine) flushGroups() error {
	for _, g := range e.groups {
		e.root.State().Advance()
		ln, err := e.synthesize(g)
		if err == nil {
			var cells []string
			cells, err = e.render(ln, g.key, g)
			if err == nil {
				if err := e.emit(cells); err != nil {
					return err
				}
				continue
			}
		}
		e.fail(fmt.Sprintf("group %q", g.key), err)
	}
	e.groups = nil
	clear(e.byKey)
	return nil
}

// synthesize returns a copy of the first line of g, with the value of each
// column replaced by the group aggregate of that column.
func (e *Engine) synthesize(g *group) (extract.Line, error) {
	ln := g.first
	ln.Fields = make([]extract.Field, len(g.first.Fields))
	for i, f := range g.first.Fields {
		env := e.root.Child().WithKey(g.key)
		env.Set("c", value.List(g.cols[i]))
		v, err := e.agg.Eval(env)
		if err != nil {
			return ln, err
		}
		f.Value = v
		f.Raw = v.String()
		ln.Fields[i] = f
	}
	return ln, nil
}

// emit writes a rendered record. A nil record was suppressed.
func (e *Engine) emit(cells []string) error {
	if cells == nil {
		return nil
	}
	al := e.cfg.Align
	if al.Enabled() && al.Auto && !e.cfg.Unbuffered {
		al.Add(cells)
		return nil
	}
	var line string
	if al.Enabled() {
		line = al.Line(cells)
	} else {
		line = strings.Join(cells, e.sep)
	}
	if _, err := e.out.WriteString(line + "\n"); err != nil {
		return err
	}
	if e.cfg.Unbuffered {
		return e.out.Flush()
	}
	return nil
}

// Finish renders any pending groups and flushes all buffered output. It must
// be called once after all input has been processed.
func (e *Engine) Finish() error {
	if err := e.flushGroups(); err != nil {
		return err
	}
	if al := e.cfg.Align; al.Enabled() && al.Pending() != 0 {
		if err := al.Flush(e.out); err != nil {
			return err
		}
	}
	return e.out.Flush()
}

// Stats reports the number of records read, the number skipped by the column
// count filter, and the number that failed.
func (e *Engine) Stats() (read, skipped, failed int) { return e.nread, e.nskip, e.nfail }
