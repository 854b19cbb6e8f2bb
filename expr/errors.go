// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"errors"
	"fmt"

	"github.com/creachadair/numtools/scanner"
)

// ErrUndefined is wrapped by an *EvalError for a reference to a name that is
// not bound in the environment.
var ErrUndefined = errors.New("undefined name")

// A SyntaxError reports an expression that does not compile.
type SyntaxError struct {
	Src  string       // the complete source text
	Span scanner.Span // the location of the problem
	Err  error        // the underlying error
}

func (s *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %v in %q: %v", s.Span, s.Src, s.Err)
}

func (s *SyntaxError) Unwrap() error { return s.Err }

// Detail returns a multi-line description of the error, marking its location
// in the source text.
func (s *SyntaxError) Detail() string { return s.Err.Error() + "\n" + s.Span.Caret(s.Src) }

// An EvalError reports a failure evaluating an expression.
type EvalError struct {
	Src  string       // the complete source text
	Span scanner.Span // the location of the failing subexpression
	Err  error        // the underlying error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q at %v: %v", e.Src, e.Span, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Detail returns a multi-line description of the error, marking its location
// in the source text.
func (e *EvalError) Detail() string { return e.Err.Error() + "\n" + e.Span.Caret(e.Src) }

// Detail returns a detailed description of err, including the location in
// the source for syntax and evaluation errors. Other errors are described by
// their Error method.
func Detail(err error) string {
	var serr *SyntaxError
	var eerr *EvalError
	if errors.As(err, &eerr) {
		return eerr.Detail()
	} else if errors.As(err, &serr) {
		return serr.Detail()
	}
	return err.Error()
}
