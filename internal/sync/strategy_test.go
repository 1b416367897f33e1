package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/arpatil-dev/TrackORoute/internal/capture"
	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
)

type fakeDeliverer struct {
	live    []samplestore.Sample
	batches [][]samplestore.Sample
	// failures is consumed one per DeliverBatch call; true means fail.
	failures []bool
	liveErr  error
}

func (f *fakeDeliverer) DeliverLive(_ context.Context, s samplestore.Sample) error {
	if f.liveErr != nil {
		return f.liveErr
	}
	f.live = append(f.live, s)
	return nil
}

func (f *fakeDeliverer) DeliverBatch(_ context.Context, samples []samplestore.Sample) error {
	if len(f.failures) > 0 {
		fail := f.failures[0]
		f.failures = f.failures[1:]
		if fail {
			return errors.New("network down")
		}
	}
	batch := make([]samplestore.Sample, len(samples))
	copy(batch, samples)
	f.batches = append(f.batches, batch)
	return nil
}

func openStore(t *testing.T) *samplestore.Store {
	t.Helper()
	store, err := samplestore.Open(filepath.Join(t.TempDir(), "samples.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func fixAt(i int) capture.Fix {
	return capture.Fix{Latitude: float64(i), Longitude: float64(i), TimestampMillis: int64(i * 1000)}
}

func TestParseMode(t *testing.T) {
	for _, raw := range []string{"live", "batch", "checkout", "robustbatch"} {
		if _, err := ParseMode(raw); err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
	}
	if _, err := ParseMode("turbo"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLiveDeliversImmediately(t *testing.T) {
	d := &fakeDeliverer{}
	s := NewLive(d)

	if err := s.OnSample(context.Background(), fixAt(1)); err != nil {
		t.Fatalf("on sample: %v", err)
	}
	if len(d.live) != 1 {
		t.Fatalf("expected one live delivery, got %d", len(d.live))
	}

	attempts := s.Recent()
	if len(attempts) != 1 || !attempts[0].Sent {
		t.Fatalf("expected one sent attempt, got %+v", attempts)
	}
}

func TestLiveFailureLoggedNotRetried(t *testing.T) {
	d := &fakeDeliverer{liveErr: errors.New("timeout")}
	s := NewLive(d)

	_ = s.OnSample(context.Background(), fixAt(1))

	attempts := s.Recent()
	if len(attempts) != 1 || attempts[0].Sent || attempts[0].Error == "" {
		t.Fatalf("expected one failed attempt with error, got %+v", attempts)
	}
	if len(d.live) != 0 {
		t.Fatalf("expected no successful deliveries")
	}
}

func TestBatchShipsExactlyAtTen(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{}
	s := New(ModeBatch, store, d)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		if err := s.OnSample(ctx, fixAt(i)); err != nil {
			t.Fatalf("on sample %d: %v", i, err)
		}
	}
	if len(d.batches) != 0 {
		t.Fatalf("expected no batch before the 10th sample")
	}

	if err := s.OnSample(ctx, fixAt(9)); err != nil {
		t.Fatalf("on sample 10: %v", err)
	}
	if len(d.batches) != 1 || len(d.batches[0]) != 10 {
		t.Fatalf("expected one batch of 10, got %+v", d.batches)
	}

	n, _ := store.UnsentCount(ctx)
	if n != 0 {
		t.Fatalf("expected all samples marked sent, %d left", n)
	}
}

func TestBatchFailureRetainsSamples(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{failures: []bool{true}}
	s := New(ModeBatch, store, d)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = s.OnSample(ctx, fixAt(i))
	}

	n, _ := store.UnsentCount(ctx)
	if n != 10 {
		t.Fatalf("expected 10 retained after failed batch, got %d", n)
	}

	// the 11th sample re-triggers the check; now 11 unsent so Unsent(10)
	// returns a full batch again and this time delivery succeeds
	if err := s.OnSample(ctx, fixAt(10)); err != nil {
		t.Fatalf("on sample 11: %v", err)
	}
	n, _ = store.UnsentCount(ctx)
	if n != 1 {
		t.Fatalf("expected 1 unsent after recovery, got %d", n)
	}
}

func TestCheckoutOnlyAccumulates(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{}
	s := New(ModeCheckout, store, d)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := s.OnSample(ctx, fixAt(i)); err != nil {
			t.Fatalf("on sample: %v", err)
		}
	}
	if len(d.batches) != 0 || len(d.live) != 0 {
		t.Fatalf("expected no deliveries in checkout mode")
	}
	n, _ := store.UnsentCount(ctx)
	if n != 25 {
		t.Fatalf("expected 25 accumulated, got %d", n)
	}
}

func TestRobustBatchDrainsAllFullBatches(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{}
	s := New(ModeRobustBatch, store, d)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := s.OnSample(ctx, fixAt(i)); err != nil {
			t.Fatalf("on sample: %v", err)
		}
	}

	// 25 samples: two full batches shipped, 5 remain for the next drain
	if len(d.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(d.batches))
	}
	n, _ := store.UnsentCount(ctx)
	if n != 5 {
		t.Fatalf("expected 5 unsent, got %d", n)
	}
}

func TestRobustBatchEventuallyDeliversDespiteFailures(t *testing.T) {
	store := openStore(t)
	// first two delivery attempts fail, everything after succeeds
	d := &fakeDeliverer{failures: []bool{true, true}}
	s := New(ModeRobustBatch, store, d)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if err := s.OnSample(ctx, fixAt(i)); err != nil {
			t.Fatalf("on sample: %v", err)
		}
	}

	// 30 samples with 2 failed attempts along the way: drain self-heals
	// on later samples, so all three full batches eventually land
	if len(d.batches) != 3 {
		t.Fatalf("expected 3 delivered batches, got %d", len(d.batches))
	}
	n, _ := store.UnsentCount(ctx)
	if n != 0 {
		t.Fatalf("expected all delivered, %d left", n)
	}
}

func TestDrainFullBatchesStopsOnCancel(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 10; i++ {
		store.Insert(context.Background(), 1, 1, int64(i))
	}

	if err := DrainFullBatches(ctx, store, d); err == nil {
		t.Fatalf("expected context error")
	}
	if len(d.batches) != 0 {
		t.Fatalf("expected no deliveries after cancel")
	}
}

func TestFlushAllIncludesPartialBatch(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{}
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		store.Insert(ctx, 1, 1, int64(i))
	}

	if err := FlushAll(ctx, store, d); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(d.batches) != 2 || len(d.batches[1]) != 5 {
		t.Fatalf("expected a full batch then a partial of 5, got %+v", d.batches)
	}
	n, _ := store.UnsentCount(ctx)
	if n != 0 {
		t.Fatalf("expected nothing unsent after flush, got %d", n)
	}
}

func TestFlushAllSurfacesFailure(t *testing.T) {
	store := openStore(t)
	d := &fakeDeliverer{failures: []bool{true}}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Insert(ctx, 1, 1, int64(i))
	}

	if err := FlushAll(ctx, store, d); err == nil {
		t.Fatalf("expected flush failure surfaced")
	}
	n, _ := store.UnsentCount(ctx)
	if n != 5 {
		t.Fatalf("expected samples retained after failed flush, got %d", n)
	}
}
