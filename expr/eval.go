// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creachadair/numtools/value"
)

// An Env binds names to values for the evaluation of an expression. An Env
// may have a parent, whose bindings are visible unless shadowed.
//
// Callers are expected to build a fresh Env for each unit of evaluation (a
// record, a field, or a group), typically as a child of a long-lived Env
// holding run-wide bindings, so that no bindings leak between units.
type Env struct {
	parent *Env
	vars   map[string]value.Value
	state  *State
	key    string
}

// NewEnv constructs an empty root environment sharing run state st.
// If st == nil, a new State is created.
func NewEnv(st *State) *Env {
	if st == nil {
		st = NewState()
	}
	return &Env{vars: make(map[string]value.Value), state: st}
}

// Child returns a new empty environment whose parent is e. The child shares
// the state and identity key of e.
func (e *Env) Child() *Env {
	return &Env{parent: e, vars: make(map[string]value.Value), state: e.state, key: e.key}
}

// WithKey sets the identity key of e, which distinguishes per-series state
// such as sliding windows, and returns e.
func (e *Env) WithKey(key string) *Env { e.key = key; return e }

// Key returns the identity key of e.
func (e *Env) Key() string { return e.key }

// State returns the run state shared by e.
func (e *Env) State() *State { return e.state }

// Set binds name to v in e, shadowing any binding in a parent.
func (e *Env) Set(name string, v value.Value) { e.vars[name] = v }

// Lookup returns the value bound to name in e or its ancestors.
func (e *Env) Lookup(name string) (value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// Eval evaluates the statements of x in order in env, and returns the value
// of the last. Assignment statements bind their result in env.
func (x *Expr) Eval(env *Env) (value.Value, error) {
	f := &frame{env: env, src: x.src}
	var last value.Value
	for _, st := range x.stmts {
		v, err := st.x.eval(f)
		if err != nil {
			var eerr *EvalError
			if errors.As(err, &eerr) {
				return value.Value{}, err
			}
			return value.Value{}, &EvalError{Src: x.src, Span: st.x.span(), Err: err}
		}
		if st.name != "" {
			env.Set(st.name, v)
		}
		last = v
	}
	return last, nil
}

// EvalBool evaluates x in env and reports the truth of its value.
func (x *Expr) EvalBool(env *Env) (bool, error) {
	v, err := x.Eval(env)
	if err != nil {
		return false, err
	}
	return v.AsBool(), nil
}

// frame carries the context of one evaluation.
type frame struct {
	env *Env
	src string
}

func (f *frame) fail(n node, err error) error {
	return &EvalError{Src: f.src, Span: n.span(), Err: err}
}

func (n *literal) eval(*frame) (value.Value, error) { return n.v, nil }

func (n *nameRef) eval(f *frame) (value.Value, error) {
	v, ok := f.env.Lookup(n.name)
	if !ok {
		return value.Value{}, f.fail(n, fmt.Errorf("%w %q", ErrUndefined, n.name))
	}
	return v, nil
}

func (n *unaryOp) eval(f *frame) (value.Value, error) {
	x, err := n.x.eval(f)
	if err != nil {
		return x, err
	}
	switch n.op {
	case "!":
		return value.Bool(!x.AsBool()), nil
	case "+":
		if !x.IsNumeric() {
			return value.Value{}, f.fail(n, &value.OpError{Op: "+", X: x})
		}
		return x, nil
	}
	v, err := value.Neg(x)
	if err != nil {
		return v, f.fail(n, err)
	}
	return v, nil
}

var arith = map[string]func(x, y value.Value) (value.Value, error){
	"+":  value.Add,
	"-":  value.Sub,
	"*":  value.Mul,
	"/":  value.Div,
	"//": value.FloorDiv,
	"%":  value.Mod,
	"**": value.Pow,
}

func (n *binaryOp) eval(f *frame) (value.Value, error) {
	x, err := n.x.eval(f)
	if err != nil {
		return x, err
	}
	y, err := n.y.eval(f)
	if err != nil {
		return y, err
	}
	if op, ok := arith[n.op]; ok {
		v, err := op(x, y)
		if err != nil {
			return v, f.fail(n, err)
		}
		return v, nil
	}
	switch n.op {
	case "==":
		return value.Bool(value.Equal(x, y)), nil
	case "!=":
		return value.Bool(!value.Equal(x, y)), nil
	case "in":
		return contains(f, n, x, y)
	}
	c, err := value.Compare(x, y)
	if err != nil {
		return value.Value{}, f.fail(n, err)
	}
	switch n.op {
	case "<":
		return value.Bool(c < 0), nil
	case "<=":
		return value.Bool(c <= 0), nil
	case ">":
		return value.Bool(c > 0), nil
	case ">=":
		return value.Bool(c >= 0), nil
	}
	return value.Value{}, f.fail(n, fmt.Errorf("unknown operator %q", n.op))
}

// contains implements "x in y": substring for texts, membership for lists.
func contains(f *frame, n node, x, y value.Value) (value.Value, error) {
	switch y.Kind() {
	case value.TextKind:
		if x.Kind() != value.TextKind {
			return value.Value{}, f.fail(n, &value.OpError{Op: "in", X: x, Y: y})
		}
		return value.Bool(strings.Contains(y.AsText(), x.AsText())), nil
	case value.ListKind:
		for _, e := range y.AsList() {
			if value.Equal(x, e) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return value.Value{}, f.fail(n, &value.OpError{Op: "in", X: x, Y: y})
}

func (n *logicalOp) eval(f *frame) (value.Value, error) {
	x, err := n.x.eval(f)
	if err != nil {
		return x, err
	}
	if x.AsBool() != n.and {
		return value.Bool(x.AsBool()), nil // short circuit
	}
	y, err := n.y.eval(f)
	if err != nil {
		return y, err
	}
	return value.Bool(y.AsBool()), nil
}

func (n *condOp) eval(f *frame) (value.Value, error) {
	c, err := n.c.eval(f)
	if err != nil {
		return c, err
	} else if c.AsBool() {
		return n.yes.eval(f)
	}
	return n.no.eval(f)
}

func (n *callOp) eval(f *frame) (value.Value, error) {
	args := make([]value.Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(f)
		if err != nil {
			return v, err
		}
		args[i] = v
	}
	v, err := n.fn.impl(&call{env: f.env, site: f.src, at: n.at}, args)
	if err != nil {
		return v, f.fail(n, fmt.Errorf("%s: %w", n.name, err))
	}
	return v, nil
}

func (n *indexOp) eval(f *frame) (value.Value, error) {
	x, err := n.x.eval(f)
	if err != nil {
		return x, err
	}
	iv, err := n.idx.eval(f)
	if err != nil {
		return iv, err
	}
	if iv.Kind() != value.IntKind {
		return value.Value{}, f.fail(n.idx, fmt.Errorf("index must be an integer, not %s", iv.Kind()))
	}
	i, _ := iv.AsInt()

	var length int
	switch x.Kind() {
	case value.ListKind:
		length = len(x.AsList())
	case value.TextKind:
		length = len(x.AsText())
	default:
		return value.Value{}, f.fail(n, fmt.Errorf("cannot index %s", x.Kind()))
	}
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return value.Value{}, f.fail(n, fmt.Errorf("index %v out of range (length %d)", iv, length))
	}
	if x.Kind() == value.TextKind {
		return value.Text(x.AsText()[i : i+1]), nil
	}
	return x.AsList()[i], nil
}

func (n *listLit) eval(f *frame) (value.Value, error) {
	out := make([]value.Value, len(n.elems))
	for i, e := range n.elems {
		v, err := e.eval(f)
		if err != nil {
			return v, err
		}
		out[i] = v
	}
	return value.List(out), nil
}
