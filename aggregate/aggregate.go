// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package aggregate implements numeric aggregate functions over samples.
//
// Functions that are undefined for their input report NaN rather than an
// error: the mean and percentiles of an empty sample, and the variance,
// standard deviation, covariance, and correlation of fewer than two samples.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrLength is reported by the two-sample functions when their inputs have
// different lengths.
var ErrLength = errors.New("samples have different lengths")

// Sum returns the sum of xs, or 0 if xs is empty.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return Sum(xs) / float64(len(xs))
}

// Variance returns the variance of xs. If sample is true it is the unbiased
// sample variance (divisor n-1), otherwise the population variance (divisor
// n).
func Variance(xs []float64, sample bool) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	// Welford's method, as used for the streaming statistics.
	var mean, sq float64
	for i, x := range xs {
		d := x - mean
		mean += d / float64(i+1)
		sq += d * (x - mean)
	}
	return sq / divisor(len(xs), sample)
}

// Stdev returns the standard deviation of xs; see Variance.
func Stdev(xs []float64, sample bool) float64 { return math.Sqrt(Variance(xs, sample)) }

// Covariance returns the covariance of xs and ys, which must have the same
// length. If sample is true the divisor is n-1, otherwise n.
func Covariance(xs, ys []float64, sample bool) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("covariance: %w (%d, %d)", ErrLength, len(xs), len(ys))
	} else if len(xs) < 2 {
		return math.NaN(), nil
	}
	mx, my := Mean(xs), Mean(ys)
	var s float64
	for i := range xs {
		s += (xs[i] - mx) * (ys[i] - my)
	}
	return s / divisor(len(xs), sample), nil
}

// Correlation returns the Pearson correlation coefficient of xs and ys, which
// must have the same length. The result is NaN if either sample is constant.
func Correlation(xs, ys []float64) (float64, error) {
	cov, err := Covariance(xs, ys, true)
	if err != nil {
		return 0, err
	} else if math.IsNaN(cov) {
		return cov, nil
	}
	return cov / (Stdev(xs, true) * Stdev(ys, true)), nil
}

// Percentile returns the nth percentile of xs, for 0 ≤ n ≤ 100. The result is
// the element at index floor(len*n/100) of the sorted sample, clamped to the
// last element; it is NaN if xs is empty. The input is not modified.
func Percentile(n float64, xs []float64) (float64, error) {
	if n < 0 || n > 100 || math.IsNaN(n) {
		return 0, fmt.Errorf("percentile %v out of range [0, 100]", n)
	} else if len(xs) == 0 {
		return math.NaN(), nil
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	i := int(math.Floor(float64(len(s)) * n / 100))
	return s[min(i, len(s)-1)], nil
}

func divisor(n int, sample bool) float64 {
	if sample {
		return float64(n - 1)
	}
	return float64(n)
}
