// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creachadair/numtools/scanner"
	"github.com/creachadair/numtools/value"
)

// An Expr is a compiled program of one or more statements separated by
// semicolons. Each statement is an expression, optionally assigned to a
// name. The value of the program is the value of its last statement.
type Expr struct {
	src   string
	stmts []*stmt
}

type stmt struct {
	name string // if non-empty, bind the result to this name
	x    node
}

// Compile parses src into an expression program. Syntax errors, calls to
// unknown functions, and calls with the wrong number of arguments are
// reported as a *SyntaxError.
func Compile(src string) (*Expr, error) {
	p := &parser{src: src, s: scanner.NewString(src)}
	p.advance()

	var stmts []*stmt
	for {
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		if p.atEOF() {
			break
		} else if !p.isPunct(";") {
			return nil, p.errorf("unexpected %s", p.describe())
		}
		p.advance()
		if p.atEOF() {
			break // allow a trailing semicolon
		}
	}
	return &Expr{src: src, stmts: stmts}, nil
}

// MustCompile is as Compile, but panics if src does not compile.
func MustCompile(src string) *Expr {
	x, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return x
}

// String returns the source text of x.
func (x *Expr) String() string { return x.src }

// IsAggregate reports whether x applies an aggregate function to a free
// name, so that it must be evaluated over a group of rows. An aggregate of a
// row-level list, such as a sliding window or a list literal, is evaluated
// once per row and does not count.
func (x *Expr) IsAggregate() bool {
	bound := make(map[string]bool)
	for _, st := range x.stmts {
		var agg bool
		walk(st.x, func(n node) bool {
			if c, ok := n.(*callOp); ok && c.fn.isAggregate(len(c.args)) {
				for _, a := range c.args {
					agg = agg || refersToColumn(a, bound)
				}
			}
			return !agg
		})
		if agg {
			return true
		}
		if st.name != "" {
			bound[st.name] = true
		}
	}
	return false
}

// refersToColumn reports whether n mentions a name not in bound, other than
// inside a sliding window or a list literal.
func refersToColumn(n node, bound map[string]bool) bool {
	var found bool
	walk(n, func(n node) bool {
		switch t := n.(type) {
		case *nameRef:
			found = found || !bound[t.name]
		case *listLit:
			return false
		case *callOp:
			return t.name != "sw"
		}
		return !found
	})
	return found
}

// Names returns the free names referenced by x, in order of first use.
// Names bound by an earlier statement of x are not included.
func (x *Expr) Names() []string {
	var out []string
	seen := make(map[string]bool)
	for _, st := range x.stmts {
		walk(st.x, func(n node) bool {
			if r, ok := n.(*nameRef); ok && !seen[r.name] {
				seen[r.name] = true
				out = append(out, r.name)
			}
			return true
		})
		if st.name != "" {
			seen[st.name] = true
		}
	}
	return out
}

type parser struct {
	src string
	s   *scanner.Scanner

	tok  scanner.Token
	text string // decoded text of the current token
	at   scanner.Span
	eof  bool
	err  error // scanner error, if any
}

func (p *parser) advance() {
	if p.s.Next() {
		p.tok, p.text, p.at = p.s.Token(), p.s.Value(), p.s.Span()
		return
	}
	p.eof = true
	p.tok, p.text = scanner.Invalid, ""
	p.at = scanner.Span{Pos: len(p.src), End: len(p.src)}
	p.err = p.s.Err()
}

func (p *parser) atEOF() bool { return p.eof && p.err == nil }

func (p *parser) isPunct(op string) bool { return p.tok == scanner.Punct && p.text == op }

func (p *parser) isKeyword(kw string) bool { return p.tok == scanner.Name && p.text == kw }

func (p *parser) describe() string {
	if p.eof {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", p.tok, p.text)
}

func (p *parser) errorf(msg string, args ...any) error {
	if p.err != nil {
		var perr *scanner.PosError
		at := p.at
		if errors.As(p.err, &perr) {
			at = scanner.Span{Pos: perr.Pos, End: perr.Pos}
		}
		return &SyntaxError{Src: p.src, Span: at, Err: p.err}
	}
	return &SyntaxError{Src: p.src, Span: p.at, Err: fmt.Errorf(msg, args...)}
}

func (p *parser) expect(op string) error {
	if !p.isPunct(op) {
		return p.errorf("want %q, got %s", op, p.describe())
	}
	p.advance()
	return nil
}

func (p *parser) parseStmt() (*stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("=") {
		return &stmt{x: x}, nil
	}
	ref, ok := x.(*nameRef)
	if !ok {
		return nil, p.errorf("cannot assign to this expression")
	}
	p.advance()
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &stmt{name: ref.name, x: rhs}, nil
}

func (p *parser) parseExpr() (node, error) {
	c, err := p.parseOr()
	if err != nil || !p.isPunct("?") {
		return c, err
	}
	p.advance()
	yes, err := p.parseExpr()
	if err != nil {
		return nil, err
	} else if err := p.expect(":"); err != nil {
		return nil, err
	}
	no, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &condOp{at: c.span().Join(no.span()), c: c, yes: yes, no: no}, nil
}

func (p *parser) parseOr() (node, error) {
	x, err := p.parseAnd()
	for err == nil && (p.isPunct("||") || p.isKeyword("or")) {
		p.advance()
		var y node
		if y, err = p.parseAnd(); err == nil {
			x = &logicalOp{at: x.span().Join(y.span()), x: x, y: y}
		}
	}
	return x, err
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseNot()
	for err == nil && (p.isPunct("&&") || p.isKeyword("and")) {
		p.advance()
		var y node
		if y, err = p.parseNot(); err == nil {
			x = &logicalOp{at: x.span().Join(y.span()), and: true, x: x, y: y}
		}
	}
	return x, err
}

func (p *parser) parseNot() (node, error) {
	if p.isPunct("!") || p.isKeyword("not") {
		at := p.at
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryOp{at: at.Join(x.span()), op: "!", x: x}, nil
	}
	return p.parseCmp()
}

var cmpOps = []string{"==", "!=", "<", "<=", ">", ">="}

func (p *parser) parseCmp() (node, error) {
	x, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	op := ""
	if p.isKeyword("in") {
		op = "in"
	} else if p.tok == scanner.Punct {
		for _, c := range cmpOps {
			if p.text == c {
				op = c
			}
		}
	}
	if op == "" {
		return x, nil
	}
	p.advance()
	y, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &binaryOp{at: x.span().Join(y.span()), op: op, x: x, y: y}, nil
}

func (p *parser) parseSum() (node, error) {
	x, err := p.parseProd()
	for err == nil && (p.isPunct("+") || p.isPunct("-")) {
		op := p.text
		p.advance()
		var y node
		if y, err = p.parseProd(); err == nil {
			x = &binaryOp{at: x.span().Join(y.span()), op: op, x: x, y: y}
		}
	}
	return x, err
}

func (p *parser) parseProd() (node, error) {
	x, err := p.parseUnary()
	for err == nil && (p.isPunct("*") || p.isPunct("/") || p.isPunct("//") || p.isPunct("%")) {
		op := p.text
		p.advance()
		var y node
		if y, err = p.parseUnary(); err == nil {
			x = &binaryOp{at: x.span().Join(y.span()), op: op, x: x, y: y}
		}
	}
	return x, err
}

func (p *parser) parseUnary() (node, error) {
	if p.isPunct("-") || p.isPunct("+") {
		at, op := p.at, p.text
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryOp{at: at.Join(x.span()), op: op, x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	x, err := p.parsePostfix()
	if err != nil || !p.isPunct("**") {
		return x, err
	}
	p.advance()
	y, err := p.parseUnary() // right-associative
	if err != nil {
		return nil, err
	}
	return &binaryOp{at: x.span().Join(y.span()), op: "**", x: x, y: y}, nil
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	for err == nil {
		switch {
		case p.isPunct("("):
			ref, ok := x.(*nameRef)
			if !ok {
				return nil, p.errorf("only named functions can be called")
			}
			x, err = p.parseCall(ref)
		case p.isPunct("["):
			p.advance()
			var idx node
			if idx, err = p.parseExpr(); err != nil {
				return nil, err
			}
			end := p.at
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &indexOp{at: x.span().Join(end), x: x, idx: idx}
		default:
			return x, nil
		}
	}
	return nil, err
}

func (p *parser) parseCall(ref *nameRef) (node, error) {
	name := strings.ToLower(ref.name)
	fn, ok := builtins[name]
	if !ok {
		return nil, &SyntaxError{Src: p.src, Span: ref.at, Err: fmt.Errorf("unknown function %q", ref.name)}
	}
	p.advance() // consume "("
	args, err := p.parseList(")")
	if err != nil {
		return nil, err
	}
	at := ref.at.Join(p.at)
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(args) < fn.min || (fn.max >= 0 && len(args) > fn.max) {
		return nil, &SyntaxError{Src: p.src, Span: at, Err: fmt.Errorf("wrong number of arguments to %s: %s", name, fn.arity())}
	}
	return &callOp{at: at, name: name, fn: fn, args: args}, nil
}

// parseList parses a possibly-empty comma-separated list of expressions
// ending before the closing punctuation.
func (p *parser) parseList(closer string) ([]node, error) {
	var out []node
	if p.isPunct(closer) {
		return nil, nil
	}
	for {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		if !p.isPunct(",") {
			return out, nil
		}
		p.advance()
	}
}

func (p *parser) parsePrimary() (node, error) {
	at := p.at
	switch p.tok {
	case scanner.Integer:
		n, err := strconv.ParseInt(p.text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer: %w", err)
		}
		p.advance()
		return &literal{at: at, v: value.Int(n)}, nil

	case scanner.Float:
		f, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number: %w", err)
		}
		p.advance()
		return &literal{at: at, v: value.Float(f)}, nil

	case scanner.String:
		s := p.text
		p.advance()
		return &literal{at: at, v: value.Text(s)}, nil

	case scanner.Name:
		name := p.text
		p.advance()
		switch name {
		case "true", "false":
			return &literal{at: at, v: value.Bool(name == "true")}, nil
		case "and", "or", "not", "in":
			return nil, &SyntaxError{Src: p.src, Span: at, Err: fmt.Errorf("unexpected keyword %q", name)}
		}
		return &nameRef{at: at, name: name}, nil

	case scanner.Punct:
		if p.isPunct("(") {
			p.advance()
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			} else if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		} else if p.isPunct("[") {
			p.advance()
			elems, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			end := p.at
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			return &listLit{at: at.Join(end), elems: elems}, nil
		}
	}
	return nil, p.errorf("unexpected %s", p.describe())
}
