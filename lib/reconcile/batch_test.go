// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"
	"time"
)

func TestNextBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		previous BatchMetrics
		current  int
		want     int
	}{
		{"fast success grows", BatchMetrics{BatchSize: 10, Successful: 10, Elapsed: time.Second}, 10, 15},
		{"growth capped at max", BatchMetrics{BatchSize: 20, Successful: 20, Elapsed: time.Second}, 20, 25},
		{"any failure halves", BatchMetrics{BatchSize: 10, Successful: 9, Failed: 1, Elapsed: time.Second}, 10, 5},
		{"slow batch halves", BatchMetrics{BatchSize: 10, Successful: 10, Elapsed: 11 * time.Second}, 10, 5},
		{"halving floored at min", BatchMetrics{BatchSize: 1, Failed: 1, Elapsed: time.Second}, 1, 1},
		{"growth recovers from min", BatchMetrics{BatchSize: 1, Successful: 1, Elapsed: 100 * time.Millisecond}, 1, 2},
		{"moderate pace holds", BatchMetrics{BatchSize: 10, Successful: 10, Elapsed: 5 * time.Second}, 10, 10},
		{"failure beats fast pace", BatchMetrics{BatchSize: 10, Successful: 9, Failed: 1, Elapsed: time.Millisecond}, 10, 5},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := NextBatchSize(test.previous, test.current); got != test.want {
				t.Errorf("NextBatchSize(%+v, %d) = %d, want %d", test.previous, test.current, got, test.want)
			}
		})
	}
}

func TestNextBatchSize_RecoversFromMinimum(t *testing.T) {
	// A run that collapsed to the minimum must climb back to the
	// maximum under sustained fast successes.
	size := MinBatchSize
	for steps := 0; size < MaxBatchSize; steps++ {
		if steps > 20 {
			t.Fatalf("size stuck at %d after %d clean fast batches", size, steps)
		}
		next := NextBatchSize(BatchMetrics{BatchSize: size, Successful: size, Elapsed: 100 * time.Millisecond}, size)
		if next <= size {
			t.Fatalf("clean fast batch did not grow the size: %d -> %d", size, next)
		}
		size = next
	}
}

func TestNextBatchSize_Bounds(t *testing.T) {
	// Whatever the inputs, the result stays within [min, max].
	for current := 0; current <= 2*MaxBatchSize; current++ {
		for _, metrics := range []BatchMetrics{
			{},
			{Failed: 100},
			{Successful: 100, Elapsed: time.Nanosecond},
			{Successful: 100, Elapsed: time.Hour},
		} {
			got := NextBatchSize(metrics, current)
			if got < MinBatchSize || got > MaxBatchSize {
				t.Fatalf("NextBatchSize(%+v, %d) = %d, out of bounds", metrics, current, got)
			}
		}
	}
}
