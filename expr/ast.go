// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"github.com/creachadair/numtools/scanner"
	"github.com/creachadair/numtools/value"
)

// A node is an element of a parsed expression tree.
type node interface {
	eval(*frame) (value.Value, error)
	span() scanner.Span
}

type literal struct {
	at scanner.Span
	v  value.Value
}

type nameRef struct {
	at   scanner.Span
	name string
}

type unaryOp struct {
	at scanner.Span
	op string
	x  node
}

type binaryOp struct {
	at   scanner.Span
	op   string
	x, y node
}

// logicalOp is a short-circuiting "&&" or "||".
type logicalOp struct {
	at   scanner.Span
	and  bool
	x, y node
}

type condOp struct {
	at         scanner.Span
	c, yes, no node
}

type callOp struct {
	at   scanner.Span
	name string // normalized to lower case
	fn   *builtin
	args []node
}

type indexOp struct {
	at  scanner.Span
	x   node
	idx node
}

type listLit struct {
	at    scanner.Span
	elems []node
}

func (n *literal) span() scanner.Span   { return n.at }
func (n *nameRef) span() scanner.Span   { return n.at }
func (n *unaryOp) span() scanner.Span   { return n.at }
func (n *binaryOp) span() scanner.Span  { return n.at }
func (n *logicalOp) span() scanner.Span { return n.at }
func (n *condOp) span() scanner.Span    { return n.at }
func (n *callOp) span() scanner.Span    { return n.at }
func (n *indexOp) span() scanner.Span   { return n.at }
func (n *listLit) span() scanner.Span   { return n.at }

// walk calls f for n and each of its descendants in preorder. If f returns
// false, the descendants of that node are skipped.
func walk(n node, f func(node) bool) {
	if !f(n) {
		return
	}
	switch t := n.(type) {
	case *unaryOp:
		walk(t.x, f)
	case *binaryOp:
		walk(t.x, f)
		walk(t.y, f)
	case *logicalOp:
		walk(t.x, f)
		walk(t.y, f)
	case *condOp:
		walk(t.c, f)
		walk(t.yes, f)
		walk(t.no, f)
	case *callOp:
		for _, a := range t.args {
			walk(a, f)
		}
	case *indexOp:
		walk(t.x, f)
		walk(t.idx, f)
	case *listLit:
		for _, e := range t.elems {
			walk(e, f)
		}
	}
}
