// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import "time"

// Adaptive batch sizing bounds. The scheduler starts at
// InitialBatchSize and adjusts between MinBatchSize and MaxBatchSize
// based on each batch's outcome.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 25
	InitialBatchSize = 10

	// slowBatchThreshold: a batch slower than this halves the next
	// batch, even without failures. The tracker is struggling;
	// smaller batches reduce pressure and shrink the blast radius of
	// a timeout.
	slowBatchThreshold = 10 * time.Second

	// fastBatchThreshold: a fully successful batch faster than this
	// grows the next batch by half again.
	fastBatchThreshold = 2 * time.Second
)

// BatchMetrics records the outcome of one dispatched batch.
type BatchMetrics struct {
	BatchSize  int           `cbor:"batch_size"`
	Successful int           `cbor:"successful"`
	Failed     int           `cbor:"failed"`
	Elapsed    time.Duration `cbor:"elapsed"`
}

// NextBatchSize computes the size of the next batch from the previous
// batch's metrics. Pure.
//
// Any failure or a slow batch halves the size; a fully successful
// fast batch grows it by 1.5x, always by at least one so the size can
// climb back from the minimum; anything in between holds. The result
// is clamped to [MinBatchSize, MaxBatchSize].
func NextBatchSize(previous BatchMetrics, current int) int {
	next := current
	switch {
	case previous.Failed > 0 || previous.Elapsed > slowBatchThreshold:
		next = current / 2
	case previous.Failed == 0 && previous.Elapsed < fastBatchThreshold:
		next = current * 3 / 2
		if next == current {
			next = current + 1
		}
	}

	if next < MinBatchSize {
		return MinBatchSize
	}
	if next > MaxBatchSize {
		return MaxBatchSize
	}
	return next
}
