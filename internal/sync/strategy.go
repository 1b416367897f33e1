// Package sync implements the delivery policies that move captured samples
// from the device to the server. Each policy trades latency against
// robustness; all of them treat a delivery failure as non-fatal to capture.
package sync

import (
	"context"
	"log"
	"sync"

	"github.com/arpatil-dev/TrackORoute/internal/capture"
	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
)

// BatchSize is the fixed number of unsent samples delivered per batch call.
const BatchSize = 10

// Deliverer sends samples over the network. Implemented by the API client.
type Deliverer interface {
	DeliverLive(ctx context.Context, sample samplestore.Sample) error
	DeliverBatch(ctx context.Context, samples []samplestore.Sample) error
}

// Strategy consumes one filter-accepted fix per call. OnSample must not
// block the capture callback beyond a bounded network timeout; delivery
// errors are recorded, never propagated as fatal.
type Strategy interface {
	OnSample(ctx context.Context, fix capture.Fix) error
}

// New selects the strategy implementation for a mode. Selection happens
// once at session start and never changes mid-session.
func New(mode Mode, store *samplestore.Store, deliverer Deliverer) Strategy {
	switch mode {
	case ModeLive:
		return NewLive(deliverer)
	case ModeBatch:
		return &batchStrategy{store: store, deliverer: deliverer}
	case ModeCheckout:
		return &checkoutStrategy{store: store}
	default:
		return &robustBatchStrategy{store: store, deliverer: deliverer}
	}
}

// Attempt is one live-mode delivery outcome, kept for diagnostic display.
type Attempt struct {
	Fix   capture.Fix
	Sent  bool
	Error string
}

const maxAttemptLog = 50

// LiveStrategy delivers each sample immediately and alone. Failures are
// logged for the diagnostic view but not retried; this is the lowest
// latency and weakest durability mode.
type LiveStrategy struct {
	deliverer Deliverer

	mu       sync.Mutex
	attempts []Attempt
}

func NewLive(deliverer Deliverer) *LiveStrategy {
	return &LiveStrategy{deliverer: deliverer}
}

func (s *LiveStrategy) OnSample(ctx context.Context, fix capture.Fix) error {
	sample := samplestore.Sample{
		Latitude:        fix.Latitude,
		Longitude:       fix.Longitude,
		TimestampMillis: fix.TimestampMillis,
	}

	err := s.deliverer.DeliverLive(ctx, sample)

	attempt := Attempt{Fix: fix, Sent: err == nil}
	if err != nil {
		attempt.Error = err.Error()
	}

	s.mu.Lock()
	s.attempts = append(s.attempts, attempt)
	if len(s.attempts) > maxAttemptLog {
		s.attempts = s.attempts[len(s.attempts)-maxAttemptLog:]
	}
	s.mu.Unlock()

	return err
}

// Recent returns a copy of the delivery attempt log, newest last.
func (s *LiveStrategy) Recent() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// batchStrategy stores every sample and ships one batch whenever exactly
// BatchSize unsent samples have accumulated. A failed batch is not retried
// until the next accepted sample re-triggers the check.
type batchStrategy struct {
	store     *samplestore.Store
	deliverer Deliverer
}

func (s *batchStrategy) OnSample(ctx context.Context, fix capture.Fix) error {
	if _, err := s.store.Insert(ctx, fix.Latitude, fix.Longitude, fix.TimestampMillis); err != nil {
		return err
	}

	batch, err := s.store.Unsent(ctx, BatchSize)
	if err != nil {
		return err
	}
	if len(batch) != BatchSize {
		return nil
	}

	if err := s.deliverer.DeliverBatch(ctx, batch); err != nil {
		log.Printf("batch delivery failed, retrying on next sample: %v", err)
		return err
	}
	return s.store.MarkSent(ctx, sampleIDs(batch))
}

// checkoutStrategy only accumulates; everything ships at session stop.
type checkoutStrategy struct {
	store *samplestore.Store
}

func (s *checkoutStrategy) OnSample(ctx context.Context, fix capture.Fix) error {
	_, err := s.store.Insert(ctx, fix.Latitude, fix.Longitude, fix.TimestampMillis)
	return err
}

// robustBatchStrategy stores the sample and then drains every full unsent
// batch. A failed delivery stops the drain without error; the next accepted
// sample, or the periodic background drain, picks it back up. This is the
// only mode that eventually delivers everything under flaky connectivity.
type robustBatchStrategy struct {
	store     *samplestore.Store
	deliverer Deliverer
}

func (s *robustBatchStrategy) OnSample(ctx context.Context, fix capture.Fix) error {
	if _, err := s.store.Insert(ctx, fix.Latitude, fix.Longitude, fix.TimestampMillis); err != nil {
		return err
	}
	return DrainFullBatches(ctx, s.store, s.deliverer)
}

// DrainFullBatches delivers full batches of unsent samples until fewer than
// BatchSize remain or a delivery fails. A delivery failure is logged and
// swallowed; a store error is returned.
func DrainFullBatches(ctx context.Context, store *samplestore.Store, deliverer Deliverer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := store.Unsent(ctx, BatchSize)
		if err != nil {
			return err
		}
		if len(batch) < BatchSize {
			return nil
		}

		if err := deliverer.DeliverBatch(ctx, batch); err != nil {
			log.Printf("robust batch delivery failed, will retry: %v", err)
			return nil
		}
		if err := store.MarkSent(ctx, sampleIDs(batch)); err != nil {
			return err
		}
	}
}

// FlushAll delivers every remaining unsent sample, including a trailing
// partial batch. Unlike DrainFullBatches, a delivery failure is returned so
// callers know the flush is incomplete.
func FlushAll(ctx context.Context, store *samplestore.Store, deliverer Deliverer) error {
	for {
		batch, err := store.Unsent(ctx, BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := deliverer.DeliverBatch(ctx, batch); err != nil {
			return err
		}
		if err := store.MarkSent(ctx, sampleIDs(batch)); err != nil {
			return err
		}
	}
}

func sampleIDs(samples []samplestore.Sample) []int64 {
	ids := make([]int64, len(samples))
	for i, s := range samples {
		ids[i] = s.ID
	}
	return ids
}
