package capture

import (
	"math/rand"
	"sync"
	"time"
)

// WalkSource emits a simulated random walk of fixes at a fixed interval.
// It stands in for an OS location provider on platforms without one.
type WalkSource struct {
	ch       chan Fix
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWalkSource starts emitting fixes around the given origin every
// interval until Stop is called.
func NewWalkSource(lat, lon float64, interval time.Duration) *WalkSource {
	s := &WalkSource{
		ch:   make(chan Fix),
		stop: make(chan struct{}),
	}
	go s.run(lat, lon, interval)
	return s
}

func (s *WalkSource) run(lat, lon float64, interval time.Duration) {
	defer close(s.ch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// ~10 m steps with jitter, heading roughly northeast
			lat += 0.0001 + rand.Float64()*0.00005
			lon += 0.0001 + rand.Float64()*0.00005
			fix := Fix{
				Latitude:        lat,
				Longitude:       lon,
				TimestampMillis: time.Now().UnixMilli(),
				AccuracyMeters:  5 + rand.Float64()*10,
			}
			select {
			case s.ch <- fix:
			case <-s.stop:
				return
			}
		}
	}
}

func (s *WalkSource) Fixes() <-chan Fix {
	return s.ch
}

func (s *WalkSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
