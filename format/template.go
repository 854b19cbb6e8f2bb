// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package format renders evaluated expressions into text: templates with
// embedded expressions, column alignment, and tabular output encodings.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/value"
)

// A Template is a compiled format string. Literal text is copied to the
// output, and each directive of the form
//
//	%((expr))spec
//
// is replaced by the value of expr formatted according to spec, which is a
// printf-style run of flags, width, and precision ending in one of the verbs
//
//	d x    integer (the value must convert to an integer)
//	f g e  floating-point
//	s q    text
//	v      the natural form of the value
//
// The sequence "%%" denotes a literal "%", and the escapes "\t", "\n", and
// "\\" denote a tab, newline, and backslash respectively.
type Template struct {
	src   string
	parts []part
}

type part struct {
	text string     // literal text, if x == nil
	x    *expr.Expr // expression to evaluate
	spec string     // printf flags, width, precision, without "%" or verb
	verb byte
}

const verbs = "dxfgesqv"

// Parse compiles a template string.
func Parse(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() != 0 {
			t.parts = append(t.parts, part{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '\\' && i+1 < len(src):
			switch src[i+1] {
			case 't':
				lit.WriteByte('\t')
			case 'n':
				lit.WriteByte('\n')
			case '\\':
				lit.WriteByte('\\')
			default:
				lit.WriteString(src[i : i+2])
			}
			i += 2

		case c == '%' && strings.HasPrefix(src[i:], "%%"):
			lit.WriteByte('%')
			i += 2

		case c == '%' && strings.HasPrefix(src[i:], "%(("):
			end, err := closeDirective(src, i+3)
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", i, err)
			}
			x, err := expr.Compile(src[i+3 : end])
			if err != nil {
				return nil, err
			}
			j := end + 2
			k := j
			for k < len(src) && strings.IndexByte("+-# 0123456789.", src[k]) >= 0 {
				k++
			}
			if k == len(src) || strings.IndexByte(verbs, src[k]) < 0 {
				return nil, fmt.Errorf("offset %d: missing or invalid verb after %q", k, src[i:k])
			}
			flush()
			t.parts = append(t.parts, part{x: x, spec: src[j:k], verb: src[k]})
			i = k + 1

		case c == '%':
			return nil, fmt.Errorf("offset %d: invalid directive (use %%%% for a literal %%)", i)

		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return t, nil
}

// MustParse is as Parse, but panics if src is invalid.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("format.Parse: %v", err))
	}
	return t
}

// closeDirective returns the offset of the "))" that closes the expression
// beginning at src[pos:]. Parentheses inside the expression must balance, and
// quoted strings are skipped.
func closeDirective(src string, pos int) (int, error) {
	depth := 0
	for i := pos; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'', '`':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' && c != '`' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return 0, errors.New("unterminated string in directive")
			}
			i = j
		case '(':
			depth++
		case ')':
			if depth == 0 {
				if i+1 < len(src) && src[i+1] == ')' {
					return i, nil
				}
				return 0, errors.New("unbalanced parentheses in directive")
			}
			depth--
		}
	}
	return 0, errors.New("unterminated directive")
}

// String returns the source text of t.
func (t *Template) String() string { return t.src }

// Render evaluates the directives of t in env and returns the resulting text.
// Evaluation stops at the first error.
func (t *Template) Render(env *expr.Env) (string, error) {
	var sb strings.Builder
	for _, p := range t.parts {
		if p.x == nil {
			sb.WriteString(p.text)
			continue
		}
		v, err := p.x.Eval(env)
		if err != nil {
			return "", err
		}
		s, err := Verb(p.spec, p.verb, v)
		if err != nil {
			return "", fmt.Errorf("format %q: %w", p.x.String(), err)
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Verb formats v using the printf flags in spec and the given verb, applying
// the conversion the verb requires.
func Verb(spec string, verb byte, v value.Value) (string, error) {
	f := "%" + spec + string(verb)
	switch verb {
	case 'd', 'x':
		n, err := v.AsInt()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(f, n), nil
	case 'f', 'g', 'e':
		x, err := v.AsFloat()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(f, x), nil
	case 's', 'q':
		return fmt.Sprintf(f, v.AsText()), nil
	case 'v':
		return natural(spec, v), nil
	}
	return "", fmt.Errorf("unknown verb %q", verb)
}

// natural formats v in its natural form, as value.String does. For numbers
// the sign and padding flags of spec apply as they do for %d, since fmt does
// not honor "+" with %v.
func natural(spec string, v value.Value) string {
	switch v.Kind() {
	case value.IntKind:
		n, _ := v.AsInt()
		return fmt.Sprintf("%"+spec+"d", n)
	case value.FloatKind:
		fl, width, prec := splitSpec(spec)
		s := v.String()
		if prec >= 0 {
			f, _ := v.AsFloat()
			s = strconv.FormatFloat(f, 'g', prec, 64)
		}
		if !strings.HasPrefix(s, "-") && !strings.HasPrefix(s, "+") {
			if strings.Contains(fl, "+") {
				s = "+" + s
			} else if strings.Contains(fl, " ") {
				s = " " + s
			}
		}
		return pad(s, fl, width)
	case value.BoolKind:
		return fmt.Sprintf("%"+spec+"v", v.AsBool())
	}
	return fmt.Sprintf("%"+spec+"s", v.AsText())
}

// splitSpec splits a printf spec into its flags, width, and precision. The
// width is 0 and the precision -1 when absent.
func splitSpec(spec string) (flags string, width, prec int) {
	i := 0
	for i < len(spec) && strings.IndexByte("+-# 0", spec[i]) >= 0 {
		i++
	}
	flags, spec = spec[:i], spec[i:]
	ws, ps, hasPrec := strings.Cut(spec, ".")
	width, _ = strconv.Atoi(ws)
	prec = -1
	if hasPrec {
		prec, _ = strconv.Atoi(ps) // "." alone is precision 0
	}
	return flags, width, prec
}

// pad pads s to width according to the "-" and "0" flags.
func pad(s, flags string, width int) string {
	n := width - len(s)
	switch {
	case n <= 0:
		return s
	case strings.Contains(flags, "-"):
		return s + strings.Repeat(" ", n)
	case strings.Contains(flags, "0"):
		sign := ""
		if s != "" && strings.IndexByte("+- ", s[0]) >= 0 {
			sign, s = s[:1], s[1:]
		}
		return sign + strings.Repeat("0", n) + s
	}
	return strings.Repeat(" ", n) + s
}
