// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package value defines the tagged scalar values extracted from input records
// and manipulated by expressions.
//
// A field extracted from input is always an integer, a floating-point number,
// or a text string. Expressions may additionally produce Booleans and lists.
// There is no implicit coercion between kinds except for the numeric tower,
// in which an integer combined with a float promotes to a float. All other
// conversions are explicit, and report a *ConversionError when the source
// value is not representable in the target kind.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type tag of a Value.
type Kind byte

// Constants defining the valid Kind values.
const (
	Invalid   Kind = iota // the zero Value
	IntKind               // signed 64-bit integer
	FloatKind             // 64-bit IEEE 754 float
	TextKind              // string
	BoolKind              // Boolean, produced by comparisons
	ListKind              // ordered list of values
)

var kindStr = [...]string{
	Invalid:   "invalid",
	IntKind:   "int",
	FloatKind: "float",
	TextKind:  "text",
	BoolKind:  "bool",
	ListKind:  "list",
}

func (k Kind) String() string {
	if int(k) >= len(kindStr) {
		return kindStr[Invalid]
	}
	return kindStr[k]
}

// A Value is a tagged scalar or list value. The zero Value is Invalid.
// Values are immutable; the List accessor returns a slice the caller must not
// modify.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	l    []Value
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: IntKind, i: v} }

// Float returns a floating-point value.
func Float(v float64) Value { return Value{kind: FloatKind, f: v} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: TextKind, s: s} }

// Bool returns a Boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: BoolKind, i: 1}
	}
	return Value{kind: BoolKind}
}

// List returns a list value holding vs. The list takes ownership of vs.
func List(vs []Value) Value { return Value{kind: ListKind, l: vs} }

// Floats returns a list value holding a Float for each element of fs.
func Floats(fs []float64) Value {
	vs := make([]Value, len(fs))
	for i, f := range fs {
		vs[i] = Float(f)
	}
	return List(vs)
}

// Kind reports the type tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v is not the zero Value.
func (v Value) IsValid() bool { return v.kind != Invalid }

// IsNumeric reports whether v is an Int or a Float.
func (v Value) IsNumeric() bool { return v.kind == IntKind || v.kind == FloatKind }

// AsInt converts v to an integer. Floats are truncated toward zero; text is
// parsed as a numeric literal. Non-finite floats and out-of-range values are
// not representable.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case IntKind:
		return v.i, nil
	case BoolKind:
		return v.i, nil
	case FloatKind:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) || math.Abs(v.f) >= math.MaxInt64 {
			return 0, &ConversionError{From: v, To: IntKind}
		}
		return int64(v.f), nil
	case TextKind:
		p := Parse(v.s)
		if p.kind == TextKind {
			return 0, &ConversionError{From: v, To: IntKind}
		}
		return p.AsInt()
	}
	return 0, &ConversionError{From: v, To: IntKind}
}

// AsFloat converts v to a floating-point value. Text is parsed as a numeric
// literal.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case IntKind, BoolKind:
		return float64(v.i), nil
	case FloatKind:
		return v.f, nil
	case TextKind:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, &ConversionError{From: v, To: FloatKind}
		}
		return f, nil
	}
	return 0, &ConversionError{From: v, To: FloatKind}
}

// AsText returns the text form of v. Every value has a text form.
func (v Value) AsText() string {
	if v.kind == TextKind {
		return v.s
	}
	return v.String()
}

// AsBool reports the truth of v: false, zero, empty text, empty lists, and
// the invalid value are false; everything else is true.
func (v Value) AsBool() bool {
	switch v.kind {
	case IntKind, BoolKind:
		return v.i != 0
	case FloatKind:
		return v.f != 0 && !math.IsNaN(v.f)
	case TextKind:
		return v.s != ""
	case ListKind:
		return len(v.l) != 0
	}
	return false
}

// AsList returns the elements of a list value. Any other valid value is
// treated as a list of one element.
func (v Value) AsList() []Value {
	switch v.kind {
	case ListKind:
		return v.l
	case Invalid:
		return nil
	}
	return []Value{v}
}

// AsFloats converts the elements of v (as reported by AsList) to floats.
func (v Value) AsFloats() ([]float64, error) {
	elts := v.AsList()
	out := make([]float64, len(elts))
	for i, e := range elts {
		f, err := e.AsFloat()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// String renders v in its natural form. Integral floats keep a trailing ".0"
// so that they remain distinguishable from integers.
func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		return formatFloat(v.f)
	case TextKind:
		return v.s
	case BoolKind:
		return strconv.FormatBool(v.i != 0)
	case ListKind:
		parts := make([]string, len(v.l))
		for i, e := range v.l {
			if e.kind == TextKind {
				parts[i] = strconv.Quote(e.s)
			} else {
				parts[i] = e.String()
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

// Parse classifies s as a numeric literal or text. Leading and trailing
// whitespace is ignored for classification. A literal with no decimal point
// or exponent is an Int (unless it overflows, in which case it is a Float);
// other numeric literals are Floats. Everything else, including the words
// "inf" and "nan", is Text holding s unmodified.
func Parse(s string) Value {
	t := strings.TrimSpace(s)
	if !isNumeric(t) {
		return Text(s)
	}
	if !strings.ContainsAny(t, ".eE") {
		if n, err := strconv.ParseInt(strings.TrimPrefix(t, "+"), 10, 64); err == nil {
			return Int(n)
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return Text(s)
	}
	return Float(f)
}

// isNumeric reports whether s has the shape of a decimal numeric literal:
// an optional sign, digits with an optional fraction, and an optional
// exponent. At least one digit is required.
func isNumeric(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// A ConversionError reports a value that could not be converted to the
// requested kind.
type ConversionError struct {
	From Value
	To   Kind
}

func (c *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s %s to %s", c.From.kind, quoteIfText(c.From), c.To)
}

func quoteIfText(v Value) string {
	if v.kind == TextKind {
		return strconv.Quote(v.s)
	}
	return v.String()
}
