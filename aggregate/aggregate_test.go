// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package aggregate_test

import (
	"errors"
	"math"
	"testing"

	"github.com/creachadair/numtools/aggregate"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPercentile(t *testing.T) {
	xs := []float64{5, 3, 1, 4, 2}
	tests := []struct {
		n    float64
		want float64
	}{
		{0, 1},
		{20, 2},
		{50, 3},
		{99, 5},
		{100, 5},
	}
	for _, test := range tests {
		got, err := aggregate.Percentile(test.n, xs)
		if err != nil {
			t.Errorf("Percentile(%v): unexpected error: %v", test.n, err)
		} else if got != test.want {
			t.Errorf("Percentile(%v): got %v, want %v", test.n, got, test.want)
		}
	}
	if xs[0] != 5 {
		t.Errorf("Percentile modified its input: %v", xs)
	}

	if got, err := aggregate.Percentile(50, nil); err != nil || !math.IsNaN(got) {
		t.Errorf("Percentile(50, []): got %v, %v; want NaN, nil", got, err)
	}
	for _, bad := range []float64{-1, 100.5, math.NaN()} {
		if _, err := aggregate.Percentile(bad, xs); err == nil {
			t.Errorf("Percentile(%v): got nil, want error", bad)
		}
	}
}

func TestVariance(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := aggregate.Variance(xs, false); !near(got, 4) {
		t.Errorf("Variance(population): got %v, want 4", got)
	}
	if got := aggregate.Variance(xs, true); !near(got, 32.0/7) {
		t.Errorf("Variance(sample): got %v, want %v", got, 32.0/7)
	}
	if got := aggregate.Stdev(xs, false); !near(got, 2) {
		t.Errorf("Stdev(population): got %v, want 2", got)
	}
	for _, sample := range []bool{true, false} {
		if got := aggregate.Variance([]float64{1}, sample); !math.IsNaN(got) {
			t.Errorf("Variance([1], %v): got %v, want NaN", sample, got)
		}
		if got := aggregate.Stdev(nil, sample); !math.IsNaN(got) {
			t.Errorf("Stdev([], %v): got %v, want NaN", sample, got)
		}
	}
}

func TestCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	ys := []float64{2, 4, 6, 8}
	zs := []float64{8, 6, 4, 2}

	if got, err := aggregate.Covariance(xs, ys, true); err != nil || !near(got, 10.0/3) {
		t.Errorf("Covariance: got %v, %v; want %v", got, err, 10.0/3)
	}
	if got, err := aggregate.Correlation(xs, ys); err != nil || !near(got, 1) {
		t.Errorf("Correlation(xs, ys): got %v, %v; want 1", got, err)
	}
	if got, err := aggregate.Correlation(xs, zs); err != nil || !near(got, -1) {
		t.Errorf("Correlation(xs, zs): got %v, %v; want -1", got, err)
	}
	if got, err := aggregate.Correlation(xs[:1], ys[:1]); err != nil || !math.IsNaN(got) {
		t.Errorf("Correlation(1 sample): got %v, %v; want NaN", got, err)
	}
	if _, err := aggregate.Covariance(xs, ys[:2], true); !errors.Is(err, aggregate.ErrLength) {
		t.Errorf("Covariance(mismatched): got %v, want %v", err, aggregate.ErrLength)
	}
}

func TestBasic(t *testing.T) {
	xs := []float64{3, 4.5, -1}
	if got := aggregate.Sum(xs); got != 6.5 {
		t.Errorf("Sum: got %v, want 6.5", got)
	}
	if got := aggregate.Mean([]float64{4, 5}); got != 4.5 {
		t.Errorf("Mean: got %v, want 4.5", got)
	}
	if got := aggregate.Mean(nil); !math.IsNaN(got) {
		t.Errorf("Mean([]): got %v, want NaN", got)
	}
}
