// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package query evaluates filter, projection, and grouping expressions over
// rows of tabular data.
//
// A query without groups or aggregate functions produces one output row for
// each input row that passes its filter. Otherwise, rows are accumulated into
// groups keyed by the values of the group expressions (one implicit group if
// there are none), and the select expressions are evaluated once per group.
// Within a group, each input column is bound to the list of its values across
// the group, and each group expression name is bound to its key value.
package query

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"slices"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/numtools/csvrow"
	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/keying"
	"github.com/creachadair/numtools/value"
)

// ErrConfig is reported for a query that cannot be compiled.
var ErrConfig = errors.New("invalid query")

// A Column is a named output expression.
type Column struct {
	Name string
	X    *expr.Expr
}

var namedRE = regexp.MustCompile(`^\s*([A-Za-z_$][\w.$]*)\s*=([^=].*)$`)

// ParseColumn parses a column specification of the form "[name=]expr". If no
// name is given, the column is named by the source text of the expression.
func ParseColumn(spec string) (Column, error) {
	name, src := "", spec
	if m := namedRE.FindStringSubmatch(spec); m != nil {
		name, src = m[1], m[2]
	}
	x, err := expr.Compile(src)
	if err != nil {
		return Column{}, err
	}
	if name == "" {
		name = strings.TrimSpace(src)
	}
	return Column{Name: name, X: x}, nil
}

// Config describes a query.
type Config struct {
	Where   *expr.Expr // if set, only rows for which this is true
	Select  []Column   // output expressions
	Group   []Column   // group expressions
	Fields  []string   // glob patterns selecting input columns for output
	ShowIf  *expr.Expr // if set, suppress output rows for which this is false
	Execute *expr.Expr // if set, statements run before other expressions
	Sort    *expr.Expr // if set, order output rows by this value
	Desc    bool       // sort in descending order
	Limit   int        // if positive, emit at most this many rows

	Debug bool                  // log expression errors in detail
	Logf  func(string, ...any) // log diagnostics (default log.Printf)
}

// A Query is a compiled query bound to the header of its input.
type Query struct {
	cfg       Config
	header    []string
	fields    []string // input columns selected by Config.Fields
	columns   []string // output column names
	aggregate bool
	keep      []bool // in aggregate mode, which header columns are retained
	root      *expr.Env

	rows   []output // non-aggregate results
	groups []*group
	byKey  map[string]*group

	nread, nfail int
}

type output struct {
	vals []value.Value
	sort value.Value
}

type group struct {
	key  []value.Value
	cols [][]value.Value // per header column
	rows int
}

// Compile checks cfg against the header of the input and returns a query
// ready to accept rows. Configuration errors wrap ErrConfig.
func Compile(cfg Config, header []string) (*Query, error) {
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	fields, err := csvrow.Select(header, cfg.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	q := &Query{
		cfg:    cfg,
		header: header,
		fields: fields,
		root:   expr.NewEnv(nil),
		byKey:  make(map[string]*group),
	}

	q.aggregate = len(cfg.Group) != 0
	for _, c := range cfg.Select {
		if c.X.IsAggregate() {
			q.aggregate = true
		}
	}
	if cfg.Sort != nil && cfg.Sort.IsAggregate() {
		q.aggregate = true
	}
	for _, c := range cfg.Group {
		if c.X.IsAggregate() {
			return nil, fmt.Errorf("%w: group expression %q uses an aggregate", ErrConfig, c.X)
		}
	}

	// Output columns are the groups, then selected fields, then selects.
	wild := mapset.New(fields...)
	seen := mapset.New[string]()
	add := func(name string, isField bool) error {
		switch {
		case !seen.Has(name):
			seen.Add(name)
			q.columns = append(q.columns, name)
			return nil
		case isField || wild.Has(name):
			return fmt.Errorf("%w: output column %q collides with a selected field", ErrConfig, name)
		}
		return fmt.Errorf("%w: duplicate output column %q", ErrConfig, name)
	}
	for _, c := range cfg.Group {
		if err := add(c.Name, false); err != nil {
			return nil, err
		}
	}
	for _, f := range fields {
		if err := add(f, true); err != nil {
			return nil, err
		}
	}
	for _, c := range cfg.Select {
		if err := add(c.Name, false); err != nil {
			return nil, err
		}
	}
	if len(q.columns) == 0 {
		q.fields = header
		q.columns = slices.Clone(header)
	}
	if q.aggregate {
		q.keep = q.usedColumns()
	}
	return q, nil
}

// usedColumns reports which columns of the header are mentioned by the
// expressions evaluated for each group, or selected for output. Only these
// need to be kept while rows are grouped.
func (q *Query) usedColumns() []bool {
	used := mapset.New(q.fields...)
	for _, c := range q.cfg.Select {
		used.Add(c.X.Names()...)
	}
	for _, x := range []*expr.Expr{q.cfg.ShowIf, q.cfg.Sort} {
		if x != nil {
			used.Add(x.Names()...)
		}
	}
	keep := make([]bool, len(q.header))
	for i, name := range q.header {
		keep[i] = used.Has(name)
	}
	return keep
}

// Columns returns the names of the output columns.
func (q *Query) Columns() []string { return q.columns }

// IsAggregate reports whether q groups its input.
func (q *Query) IsAggregate() bool { return q.aggregate }

func (q *Query) fail(row *csvrow.Row, err error) {
	q.nfail++
	where := "group"
	if row != nil {
		where = fmt.Sprintf("line %d", row.Line)
	}
	if q.cfg.Debug {
		q.cfg.Logf("%s: %s", where, expr.Detail(err))
	} else {
		q.cfg.Logf("%s: %v", where, err)
	}
}

// rowEnv returns an environment binding the columns of row, after running
// any statements and checking the filter. It returns nil if the row was
// filtered out or failed.
func (q *Query) rowEnv(row *csvrow.Row) *expr.Env {
	env := q.root.Child()
	for i, v := range row.Values() {
		env.Set(q.header[i], v)
	}
	if x := q.cfg.Execute; x != nil {
		if _, err := x.Eval(env); err != nil {
			q.fail(row, err)
			return nil
		}
	}
	if x := q.cfg.Where; x != nil {
		ok, err := x.EvalBool(env)
		if err != nil {
			q.fail(row, err)
			return nil
		} else if !ok {
			return nil
		}
	}
	return env
}

// Add processes a single row of input.
func (q *Query) Add(row *csvrow.Row) {
	q.nread++
	q.root.State().Advance()
	env := q.rowEnv(row)
	if env == nil {
		return
	}
	if !q.aggregate {
		if out, ok := q.project(env, row); ok {
			q.rows = append(q.rows, out)
		}
		return
	}

	key := make([]value.Value, len(q.cfg.Group))
	for i, c := range q.cfg.Group {
		v, err := c.X.Eval(env)
		if err != nil {
			q.fail(row, err)
			return
		}
		key[i] = v
	}
	id := keying.Values(key...)
	g, ok := q.byKey[id]
	if !ok {
		g = &group{key: key, cols: make([][]value.Value, len(q.header))}
		q.byKey[id] = g
		q.groups = append(q.groups, g)
	}
	for i, v := range row.Values() {
		if q.keep[i] {
			g.cols[i] = append(g.cols[i], v)
		}
	}
	g.rows++
}

// project evaluates the output columns of q in env. It reports false if the
// row is suppressed or fails.
func (q *Query) project(env *expr.Env, row *csvrow.Row) (output, bool) {
	var out output
	for _, c := range q.cfg.Group {
		v, _ := env.Lookup(c.Name)
		out.vals = append(out.vals, v)
	}
	for _, f := range q.fields {
		v, _ := env.Lookup(f)
		out.vals = append(out.vals, v)
	}
	for _, c := range q.cfg.Select {
		v, err := c.X.Eval(env)
		if err != nil {
			q.fail(row, err)
			return out, false
		}
		out.vals = append(out.vals, v)
		env.Set(c.Name, v)
	}
	if x := q.cfg.ShowIf; x != nil {
		if ok, err := x.EvalBool(env); err != nil || !ok {
			return out, false
		}
	}
	if x := q.cfg.Sort; x != nil {
		v, err := x.Eval(env)
		if err != nil {
			q.fail(row, err)
			return out, false
		}
		out.sort = v
	}
	return out, true
}

// Result finishes the query and returns its output table.
func (q *Query) Result() *format.Table {
	rows := q.rows
	if q.aggregate {
		if len(q.groups) == 0 && len(q.cfg.Group) == 0 {
			// An aggregate over no rows still yields one row.
			q.groups = append(q.groups, &group{cols: make([][]value.Value, len(q.header))})
		}
		for _, g := range q.groups {
			q.root.State().Advance()
			env := q.root.Child().WithKey(keying.Values(g.key...))
			for i, name := range q.header {
				env.Set(name, value.List(g.cols[i]))
			}
			for i, c := range q.cfg.Group {
				env.Set(c.Name, g.key[i])
			}
			if out, ok := q.project(env, nil); ok {
				rows = append(rows, out)
			}
		}
	}
	if q.cfg.Sort != nil {
		slices.SortStableFunc(rows, func(a, b output) int {
			c := compare(a.sort, b.sort)
			if q.cfg.Desc {
				return -c
			}
			return c
		})
	}
	if n := q.cfg.Limit; n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	tab := &format.Table{Columns: q.columns}
	for _, r := range rows {
		tab.Add(r.vals)
	}
	return tab
}

// compare orders values of the same kind naturally, and values of different
// kinds by their text.
func compare(a, b value.Value) int {
	if c, err := value.Compare(a, b); err == nil {
		return c
	}
	return strings.Compare(a.AsText(), b.AsText())
}

// Stats reports the number of rows read and the number that failed.
func (q *Query) Stats() (read, failed int) { return q.nread, q.nfail }

// Run compiles cfg against the header of r, adds every row of r to the
// query, and returns the query and its result. Errors reading the input are
// reported; errors in individual rows are logged and the rows skipped.
func Run(r *csvrow.Reader, cfg Config) (*Query, *format.Table, error) {
	header, err := r.Header()
	if err != nil {
		return nil, nil, err
	}
	q, err := Compile(cfg, header)
	if err != nil {
		return nil, nil, err
	}
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return q, nil, err
		}
		q.Add(row)
	}
	return q, q.Result(), nil
}
