// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package expr

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/creachadair/numtools/aggregate"
	"github.com/creachadair/numtools/scanner"
	"github.com/creachadair/numtools/value"
)

// call is the context of a single built-in function call.
type call struct {
	env  *Env
	site string // source text of the enclosing expression
	at   scanner.Span
}

// aggMode says when a call to a built-in makes its expression an aggregate.
type aggMode byte

const (
	scalar   aggMode = iota // never an aggregate
	always                  // always an aggregate
	unaryAgg                // an aggregate when called with one argument
)

type builtin struct {
	min, max int // argument count bounds; max < 0 means no upper bound
	agg      aggMode
	impl     func(*call, []value.Value) (value.Value, error)
}

func (b *builtin) arity() string {
	switch {
	case b.max < 0:
		return fmt.Sprintf("want at least %d", b.min)
	case b.min == b.max:
		return fmt.Sprintf("want %d", b.min)
	}
	return fmt.Sprintf("want %d to %d", b.min, b.max)
}

func (b *builtin) isAggregate(nargs int) bool {
	return b.agg == always || (b.agg == unaryAgg && nargs == 1)
}

// Functions lists the names of the built-in functions, for documentation.
func Functions() []string {
	var out []string
	for name := range builtins {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// IsAggregateFunc reports whether name is an aggregate built-in.
func IsAggregateFunc(name string) bool {
	b, ok := builtins[strings.ToLower(name)]
	return ok && b.agg != scalar
}

var builtins = map[string]*builtin{
	// Scalar casts apply elementwise to lists.
	"int": {min: 1, max: 1, impl: elementwise(func(v value.Value) (value.Value, error) {
		n, err := v.AsInt()
		return value.Int(n), err
	})},
	"float": {min: 1, max: 1, impl: elementwise(func(v value.Value) (value.Value, error) {
		f, err := v.AsFloat()
		return value.Float(f), err
	})},
	"str": {min: 1, max: 1, impl: elementwise(func(v value.Value) (value.Value, error) {
		return value.Text(v.AsText()), nil
	})},
	"abs": {min: 1, max: 1, impl: elementwise(func(v value.Value) (value.Value, error) {
		if c, err := value.Compare(v, value.Int(0)); err != nil {
			return v, err
		} else if c < 0 {
			return value.Neg(v)
		}
		return v, nil
	})},
	"floor": {min: 1, max: 1, impl: elementwise(roundWith(math.Floor))},
	"ceil":  {min: 1, max: 1, impl: elementwise(roundWith(math.Ceil))},
	"sqrt":  {min: 1, max: 1, impl: elementwise(floatFunc(math.Sqrt))},
	"log":   {min: 1, max: 1, impl: elementwise(floatFunc(math.Log))},
	"round": {min: 1, max: 2, impl: callRound},
	"len":   {min: 1, max: 1, impl: callLen},
	"if": {min: 3, max: 3, impl: func(_ *call, args []value.Value) (value.Value, error) {
		if args[0].AsBool() {
			return args[1], nil
		}
		return args[2], nil
	}},
	"sw": {min: 2, max: 2, impl: callSlidingWindow},

	// Aggregates take a list (or several scalars).
	"sum":        {min: 1, max: -1, agg: always, impl: callSum},
	"count":      {min: 1, max: -1, agg: always, impl: callCount},
	"avg":        {min: 1, max: -1, agg: always, impl: floatAgg(aggregate.Mean)},
	"mean":       {min: 1, max: -1, agg: always, impl: floatAgg(aggregate.Mean)},
	"median":     {min: 1, max: -1, agg: always, impl: floatAgg(median)},
	"var":        {min: 1, max: -1, agg: always, impl: floatAgg(sampled(aggregate.Variance, true))},
	"pvar":       {min: 1, max: -1, agg: always, impl: floatAgg(sampled(aggregate.Variance, false))},
	"stdev":      {min: 1, max: -1, agg: always, impl: floatAgg(sampled(aggregate.Stdev, true))},
	"pstdev":     {min: 1, max: -1, agg: always, impl: floatAgg(sampled(aggregate.Stdev, false))},
	"cov":        {min: 2, max: 2, agg: always, impl: pairAgg(covariance(true))},
	"pcov":       {min: 2, max: 2, agg: always, impl: pairAgg(covariance(false))},
	"corr":       {min: 2, max: 2, agg: always, impl: pairAgg(aggregate.Correlation)},
	"percentile": {min: 2, max: 2, agg: always, impl: callPercentile},
	"pct":        {min: 2, max: 2, agg: always, impl: callPercentile},
	"min":        {min: 1, max: -1, agg: unaryAgg, impl: extremum(-1)},
	"max":        {min: 1, max: -1, agg: unaryAgg, impl: extremum(1)},
	"sort":       {min: 1, max: 1, agg: always, impl: callSort},
	"unique":     {min: 1, max: 1, agg: always, impl: callUnique},
	"join":       {min: 1, max: 2, agg: always, impl: callJoin},
	"first":      {min: 1, max: 1, agg: always, impl: endpoint(true)},
	"last":       {min: 1, max: 1, agg: always, impl: endpoint(false)},
}

// elementwise lifts a scalar function to apply to each element of a list.
func elementwise(f func(value.Value) (value.Value, error)) func(*call, []value.Value) (value.Value, error) {
	return func(_ *call, args []value.Value) (value.Value, error) {
		if args[0].Kind() != value.ListKind {
			return f(args[0])
		}
		elts := args[0].AsList()
		out := make([]value.Value, len(elts))
		for i, e := range elts {
			v, err := f(e)
			if err != nil {
				return v, err
			}
			out[i] = v
		}
		return value.List(out), nil
	}
}

func floatFunc(f func(float64) float64) func(value.Value) (value.Value, error) {
	return func(v value.Value) (value.Value, error) {
		x, err := v.AsFloat()
		return value.Float(f(x)), err
	}
}

func roundWith(f func(float64) float64) func(value.Value) (value.Value, error) {
	return func(v value.Value) (value.Value, error) {
		if v.Kind() == value.IntKind {
			return v, nil
		}
		x, err := v.AsFloat()
		if err != nil {
			return v, err
		}
		n, err := value.Float(f(x)).AsInt()
		return value.Int(n), err
	}
}

func callRound(c *call, args []value.Value) (value.Value, error) {
	if len(args) == 1 {
		return elementwise(roundWith(math.Round))(c, args)
	}
	nd, err := args[1].AsInt()
	if err != nil {
		return value.Value{}, err
	}
	scale := math.Pow(10, float64(nd))
	return elementwise(func(v value.Value) (value.Value, error) {
		x, err := v.AsFloat()
		return value.Float(math.Round(x*scale) / scale), err
	})(c, args[:1])
}

func callLen(_ *call, args []value.Value) (value.Value, error) {
	switch args[0].Kind() {
	case value.ListKind:
		return value.Int(int64(len(args[0].AsList()))), nil
	case value.TextKind:
		return value.Int(int64(len(args[0].AsText()))), nil
	}
	return value.Value{}, fmt.Errorf("no length for %s", args[0].Kind())
}

func callSlidingWindow(c *call, args []value.Value) (value.Value, error) {
	size, err := args[0].AsInt()
	if err != nil {
		return value.Value{}, err
	}
	id := fmt.Sprintf("%s@%d|%s", c.site, c.at.Pos, c.env.key)
	vals, err := c.env.state.slide(id, int(size), args[1])
	if err != nil {
		return value.Value{}, err
	}
	return value.List(vals), nil
}

// samples returns the elements an aggregate ranges over: the elements of a
// single list argument, or else the arguments themselves.
func samples(args []value.Value) []value.Value {
	if len(args) == 1 {
		return args[0].AsList()
	}
	return args
}

func callSum(_ *call, args []value.Value) (value.Value, error) {
	sum := value.Int(0)
	for _, v := range samples(args) {
		if !v.IsNumeric() {
			return value.Value{}, &value.ConversionError{From: v, To: value.FloatKind}
		}
		var err error
		if sum, err = value.Add(sum, v); err != nil {
			return value.Value{}, err
		}
	}
	return sum, nil
}

func callCount(_ *call, args []value.Value) (value.Value, error) {
	return value.Int(int64(len(samples(args)))), nil
}

func floatAgg(f func([]float64) float64) func(*call, []value.Value) (value.Value, error) {
	return func(_ *call, args []value.Value) (value.Value, error) {
		xs, err := value.List(samples(args)).AsFloats()
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f(xs)), nil
	}
}

func sampled(f func([]float64, bool) float64, sample bool) func([]float64) float64 {
	return func(xs []float64) float64 { return f(xs, sample) }
}

func median(xs []float64) float64 {
	v, _ := aggregate.Percentile(50, xs)
	return v
}

func covariance(sample bool) func(xs, ys []float64) (float64, error) {
	return func(xs, ys []float64) (float64, error) { return aggregate.Covariance(xs, ys, sample) }
}

func pairAgg(f func(xs, ys []float64) (float64, error)) func(*call, []value.Value) (value.Value, error) {
	return func(_ *call, args []value.Value) (value.Value, error) {
		xs, err := args[0].AsFloats()
		if err != nil {
			return value.Value{}, err
		}
		ys, err := args[1].AsFloats()
		if err != nil {
			return value.Value{}, err
		}
		r, err := f(xs, ys)
		return value.Float(r), err
	}
}

func callPercentile(_ *call, args []value.Value) (value.Value, error) {
	n, err := args[0].AsFloat()
	if err != nil {
		return value.Value{}, err
	}
	xs, err := args[1].AsFloats()
	if err != nil {
		return value.Value{}, err
	}
	p, err := aggregate.Percentile(n, xs)
	return value.Float(p), err
}

// extremum returns the smallest (sign < 0) or largest (sign > 0) sample,
// preserving its kind. An empty sample gives NaN.
func extremum(sign int) func(*call, []value.Value) (value.Value, error) {
	return func(_ *call, args []value.Value) (value.Value, error) {
		vs := samples(args)
		if len(vs) == 0 {
			return value.Float(math.NaN()), nil
		}
		best := vs[0]
		for _, v := range vs[1:] {
			c, err := value.Compare(v, best)
			if err != nil {
				return value.Value{}, err
			} else if c*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

func sortedCopy(v value.Value) []value.Value {
	out := slices.Clone(v.AsList())
	slices.SortStableFunc(out, func(a, b value.Value) int {
		if value.Less(a, b) {
			return -1
		} else if value.Less(b, a) {
			return 1
		}
		return 0
	})
	return out
}

func callSort(_ *call, args []value.Value) (value.Value, error) {
	return value.List(sortedCopy(args[0])), nil
}

func callUnique(_ *call, args []value.Value) (value.Value, error) {
	vs := sortedCopy(args[0])
	out := vs[:0]
	for i, v := range vs {
		if i == 0 || !value.Equal(v, out[len(out)-1]) {
			out = append(out, v)
		}
	}
	return value.List(out), nil
}

func callJoin(_ *call, args []value.Value) (value.Value, error) {
	sep := ","
	if len(args) == 2 {
		if args[1].Kind() != value.TextKind {
			return value.Value{}, errors.New("separator must be text")
		}
		sep = args[1].AsText()
	}
	elts := args[0].AsList()
	parts := make([]string, len(elts))
	for i, e := range elts {
		parts[i] = e.AsText()
	}
	return value.Text(strings.Join(parts, sep)), nil
}

func endpoint(first bool) func(*call, []value.Value) (value.Value, error) {
	return func(_ *call, args []value.Value) (value.Value, error) {
		elts := args[0].AsList()
		if len(elts) == 0 {
			return value.Value{}, errors.New("empty list")
		} else if first {
			return elts[0], nil
		}
		return elts[len(elts)-1], nil
	}
}
