// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package value

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDivideByZero is reported for integer division or remainder by zero.
var ErrDivideByZero = errors.New("integer division by zero")

// An OpError reports an operator applied to operands of unsupported kinds.
type OpError struct {
	Op   string
	X, Y Value
}

func (o *OpError) Error() string {
	if !o.Y.IsValid() {
		return fmt.Sprintf("invalid operand for %s: %s", o.Op, o.X.kind)
	}
	return fmt.Sprintf("invalid operands for %s: %s and %s", o.Op, o.X.kind, o.Y.kind)
}

// numeric reports whether both x and y are numeric, and if so whether both
// are integers.
func numeric(x, y Value) (ok, ints bool) {
	if !x.IsNumeric() || !y.IsNumeric() {
		return false, false
	}
	return true, x.kind == IntKind && y.kind == IntKind
}

// Add returns x + y. Two texts concatenate, two lists append; numeric
// operands follow the numeric tower. Integer results that overflow are
// promoted to Float, as Parse does for literals out of range.
func Add(x, y Value) (Value, error) {
	if x.kind == TextKind && y.kind == TextKind {
		return Text(x.s + y.s), nil
	} else if x.kind == ListKind && y.kind == ListKind {
		out := make([]Value, 0, len(x.l)+len(y.l))
		return List(append(append(out, x.l...), y.l...)), nil
	}
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "+", X: x, Y: y}
	} else if ints {
		if n, ok := addInt(x.i, y.i); ok {
			return Int(n), nil
		}
	}
	return Float(x.float() + y.float()), nil
}

// Sub returns x - y.
func Sub(x, y Value) (Value, error) {
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "-", X: x, Y: y}
	} else if ints {
		if n, ok := subInt(x.i, y.i); ok {
			return Int(n), nil
		}
	}
	return Float(x.float() - y.float()), nil
}

// Mul returns x * y. Text times a non-negative integer repeats the text.
func Mul(x, y Value) (Value, error) {
	if x.kind == TextKind && y.kind == IntKind && y.i >= 0 {
		return Text(strings.Repeat(x.s, int(y.i))), nil
	}
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "*", X: x, Y: y}
	} else if ints {
		if n, ok := mulInt(x.i, y.i); ok {
			return Int(n), nil
		}
	}
	return Float(x.float() * y.float()), nil
}

// Div returns x / y. Division always produces a Float; division by zero
// follows IEEE 754.
func Div(x, y Value) (Value, error) {
	if ok, _ := numeric(x, y); !ok {
		return Value{}, &OpError{Op: "/", X: x, Y: y}
	}
	return Float(x.float() / y.float()), nil
}

// FloorDiv returns the floor of x / y. Integer operands give an Int.
func FloorDiv(x, y Value) (Value, error) {
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "//", X: x, Y: y}
	} else if ints {
		if y.i == 0 {
			return Value{}, ErrDivideByZero
		}
		if x.i == math.MinInt64 && y.i == -1 {
			return Float(-float64(x.i)), nil
		}
		q := x.i / y.i
		if (x.i%y.i != 0) && ((x.i < 0) != (y.i < 0)) {
			q--
		}
		return Int(q), nil
	}
	return Float(math.Floor(x.float() / y.float())), nil
}

// Mod returns x modulo y, with the sign of y.
func Mod(x, y Value) (Value, error) {
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "%", X: x, Y: y}
	} else if ints {
		if y.i == 0 {
			return Value{}, ErrDivideByZero
		}
		m := x.i % y.i
		if m != 0 && (m < 0) != (y.i < 0) {
			m += y.i
		}
		return Int(m), nil
	}
	m := math.Mod(x.float(), y.float())
	if m != 0 && (m < 0) != (y.float() < 0) {
		m += y.float()
	}
	return Float(m), nil
}

// Pow returns x raised to the power y. Integer operands with a non-negative
// exponent give an Int, unless the result overflows.
func Pow(x, y Value) (Value, error) {
	ok, ints := numeric(x, y)
	if !ok {
		return Value{}, &OpError{Op: "**", X: x, Y: y}
	} else if ints && y.i >= 0 {
		if r, ok := powInt(x.i, y.i); ok {
			return Int(r), nil
		}
	}
	return Float(math.Pow(x.float(), y.float())), nil
}

// The integer helpers below report false if the result overflows.

func addInt(x, y int64) (int64, bool) {
	s := x + y
	return s, (x >= 0) != (y >= 0) || (s >= 0) == (x >= 0)
}

func subInt(x, y int64) (int64, bool) {
	d := x - y
	return d, (x >= 0) == (y >= 0) || (d >= 0) == (x >= 0)
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	p := x * y
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) || p/y != x {
		return p, false
	}
	return p, true
}

func powInt(x, e int64) (int64, bool) {
	r, b := int64(1), x
	for ; e > 0; e >>= 1 {
		var ok bool
		if e&1 == 1 {
			if r, ok = mulInt(r, b); !ok {
				return 0, false
			}
		}
		if e > 1 {
			if b, ok = mulInt(b, b); !ok {
				return 0, false
			}
		}
	}
	return r, true
}

// Neg returns -x.
func Neg(x Value) (Value, error) {
	switch x.kind {
	case IntKind:
		if x.i == math.MinInt64 {
			return Float(-float64(x.i)), nil
		}
		return Int(-x.i), nil
	case FloatKind:
		return Float(-x.f), nil
	}
	return Value{}, &OpError{Op: "-", X: x}
}

// Compare returns -1, 0, or +1 as x is less than, equal to, or greater than
// y. Numbers compare numerically, texts lexicographically, Booleans with
// false < true. Comparing other combinations is an error. NaN compares equal
// to nothing, and is reported as greater than any number.
func Compare(x, y Value) (int, error) {
	if ok, ints := numeric(x, y); ok {
		if ints {
			return cmp3(x.i < y.i, x.i > y.i), nil
		}
		a, b := x.float(), y.float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return 1, nil
		}
		return cmp3(a < b, a > b), nil
	}
	if x.kind != y.kind {
		return 0, &OpError{Op: "compare", X: x, Y: y}
	}
	switch x.kind {
	case TextKind:
		return strings.Compare(x.s, y.s), nil
	case BoolKind:
		return cmp3(x.i < y.i, x.i > y.i), nil
	}
	return 0, &OpError{Op: "compare", X: x, Y: y}
}

// Equal reports whether x and y are equal. Values of incomparable kinds are
// unequal rather than an error; lists are equal when their elements are.
func Equal(x, y Value) bool {
	if x.kind == ListKind && y.kind == ListKind {
		if len(x.l) != len(y.l) {
			return false
		}
		for i := range x.l {
			if !Equal(x.l[i], y.l[i]) {
				return false
			}
		}
		return true
	}
	c, err := Compare(x, y)
	if err != nil {
		return false
	}
	if x.kind == FloatKind && math.IsNaN(x.f) || y.kind == FloatKind && math.IsNaN(y.f) {
		return false
	}
	return c == 0
}

// Less reports whether x orders before y, for sorting. Incomparable values
// order by kind.
func Less(x, y Value) bool {
	c, err := Compare(x, y)
	if err != nil {
		return x.kind < y.kind
	}
	return c < 0
}

func (v Value) float() float64 {
	if v.kind == FloatKind {
		return v.f
	}
	return float64(v.i)
}

func cmp3(lt, gt bool) int {
	if lt {
		return -1
	} else if gt {
		return 1
	}
	return 0
}
