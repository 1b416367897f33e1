// Package lifecycle owns the capture registrations as the host process
// moves between foreground and background execution. At most one of the
// two registrations is the authoritative writer to the sample store at any
// instant, enforced through a persisted flag rather than in-memory state,
// because the background registration can run while the foreground is
// fully suspended.
package lifecycle

import (
	"context"
	"errors"
	"log"
	stdsync "sync"
	"time"

	"github.com/arpatil-dev/TrackORoute/internal/apiclient"
	"github.com/arpatil-dev/TrackORoute/internal/capture"
	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
	"github.com/arpatil-dev/TrackORoute/internal/sync"
)

type State int

const (
	Inactive State = iota
	ForegroundActive
	BackgroundActive
)

func (s State) String() string {
	switch s {
	case ForegroundActive:
		return "foreground-active"
	case BackgroundActive:
		return "background-active"
	default:
		return "inactive"
	}
}

var ErrBadTransition = errors.New("invalid lifecycle transition")

// ForegroundActiveKey is the persisted flag the background registration
// reads before acting. Durable so the check survives process swaps.
const ForegroundActiveKey = "foreground_active"

const (
	drainBaseInterval = 10 * time.Second
	drainMaxInterval  = 80 * time.Second
)

// SourceFactory opens a capture source for a registration.
type SourceFactory func() (capture.Source, error)

// TripFetcher re-fetches the authoritative trip log on resume.
type TripFetcher interface {
	FetchTrip(ctx context.Context, tripID string) (apiclient.TripDetail, error)
}

type registration struct {
	source capture.Source
	cancel context.CancelFunc
	done   chan struct{}
}

type Coordinator struct {
	store     *samplestore.Store
	strategy  sync.Strategy
	deliverer sync.Deliverer
	mode      sync.Mode

	foregroundSource SourceFactory
	backgroundSource SourceFactory

	fetcher TripFetcher
	tripID  func() string
	// onReconcile replaces local display state with the server's view
	// after a background/foreground swap. Never touches the sample store.
	onReconcile func(apiclient.TripDetail)

	mu    stdsync.Mutex
	state State
	fg    *registration
	bg    *registration
}

type Config struct {
	Store            *samplestore.Store
	Strategy         sync.Strategy
	Deliverer        sync.Deliverer
	Mode             sync.Mode
	ForegroundSource SourceFactory
	BackgroundSource SourceFactory
	Fetcher          TripFetcher
	TripID           func() string
	OnReconcile      func(apiclient.TripDetail)
}

func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		store:            cfg.Store,
		strategy:         cfg.Strategy,
		deliverer:        cfg.Deliverer,
		mode:             cfg.Mode,
		foregroundSource: cfg.ForegroundSource,
		backgroundSource: cfg.BackgroundSource,
		fetcher:          cfg.Fetcher,
		tripID:           cfg.TripID,
		onReconcile:      cfg.OnReconcile,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate transitions Inactive -> ForegroundActive and starts foreground
// capture.
func (c *Coordinator) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Inactive {
		return ErrBadTransition
	}

	if err := c.store.SetSetting(ctx, ForegroundActiveKey, "true"); err != nil {
		return err
	}

	reg, err := c.startRegistration(c.foregroundSource, false)
	if err != nil {
		return err
	}
	c.fg = reg
	c.state = ForegroundActive
	return nil
}

// Suspend transitions ForegroundActive -> BackgroundActive: the foreground
// registration is torn down and a background one takes over, feeding the
// same strategy through the same durable store.
func (c *Coordinator) Suspend(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ForegroundActive {
		return ErrBadTransition
	}

	c.stopRegistration(&c.fg)
	if err := c.store.SetSetting(ctx, ForegroundActiveKey, "false"); err != nil {
		return err
	}

	reg, err := c.startRegistration(c.backgroundSource, true)
	if err != nil {
		// restore the flag so a later Resume sees a consistent state
		_ = c.store.SetSetting(ctx, ForegroundActiveKey, "true")
		return err
	}
	c.bg = reg
	c.state = BackgroundActive
	return nil
}

// Resume transitions BackgroundActive -> ForegroundActive. The flag is
// flipped before the background registration is torn down so there is no
// capture gap, then the local display state is reconciled against the
// server's trip log.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != BackgroundActive {
		return ErrBadTransition
	}

	// background callbacks no-op from this point on
	if err := c.store.SetSetting(ctx, ForegroundActiveKey, "true"); err != nil {
		return err
	}

	reg, err := c.startRegistration(c.foregroundSource, false)
	if err != nil {
		_ = c.store.SetSetting(ctx, ForegroundActiveKey, "false")
		return err
	}
	c.fg = reg
	c.stopRegistration(&c.bg)
	c.state = ForegroundActive

	c.reconcile(ctx)
	return nil
}

// Deactivate tears down both registrations. Safe to call when already
// inactive.
func (c *Coordinator) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopRegistration(&c.fg)
	c.stopRegistration(&c.bg)
	if c.state != Inactive {
		_ = c.store.SetSetting(context.Background(), ForegroundActiveKey, "false")
	}
	c.state = Inactive
}

func (c *Coordinator) startRegistration(factory SourceFactory, background bool) (*registration, error) {
	source, err := factory()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &registration{source: source, cancel: cancel, done: make(chan struct{})}

	// each registration carries its own filter state; swapping contexts
	// must not inherit a stale last-accepted fix
	filter := capture.NewFilter()

	go c.consume(ctx, reg, filter, background)
	if background && c.mode == sync.ModeRobustBatch {
		go c.drainLoop(ctx)
	}
	return reg, nil
}

func (c *Coordinator) stopRegistration(reg **registration) {
	if *reg == nil {
		return
	}
	(*reg).cancel()
	(*reg).source.Stop()
	<-(*reg).done
	*reg = nil
}

func (c *Coordinator) consume(ctx context.Context, reg *registration, filter *capture.Filter, background bool) {
	defer close(reg.done)

	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-reg.source.Fixes():
			if !ok {
				return
			}
			if background {
				// the foreground registration is authoritative while
				// this flag is set; acting anyway would double-count
				// the same physical motion
				active, err := c.store.GetSetting(ctx, ForegroundActiveKey)
				if err != nil || active == "true" {
					continue
				}
			}
			if !filter.Accept(fix) {
				continue
			}
			if err := c.strategy.OnSample(ctx, fix); err != nil {
				log.Printf("sample delivery deferred: %v", err)
			}
		}
	}
}

// drainLoop is the out-of-band retry task for robust batch mode: it keeps
// attempting full-batch deliveries on a bounded backoff while the process
// is backgrounded, and is cancelled with the registration.
func (c *Coordinator) drainLoop(ctx context.Context) {
	interval := drainBaseInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		before, err := c.store.UnsentCount(ctx)
		if err == nil {
			_ = sync.DrainFullBatches(ctx, c.store, c.deliverer)
		}
		after, _ := c.store.UnsentCount(ctx)

		if err != nil || (after >= sync.BatchSize && after >= before) {
			// no progress: back off
			interval *= 2
			if interval > drainMaxInterval {
				interval = drainMaxInterval
			}
		} else {
			interval = drainBaseInterval
		}
		timer.Reset(interval)
	}
}

func (c *Coordinator) reconcile(ctx context.Context) {
	if c.fetcher == nil || c.onReconcile == nil || c.tripID == nil {
		return
	}
	id := c.tripID()
	if id == "" {
		return
	}
	detail, err := c.fetcher.FetchTrip(ctx, id)
	if err != nil {
		log.Printf("trip reconcile fetch failed: %v", err)
		return
	}
	c.onReconcile(detail)
}
