package capture

import (
	"math"
	"sync"

	"github.com/arpatil-dev/TrackORoute/internal/shared/geo"
)

const (
	maxAccuracyMeters = 50
	maxJumpMeters     = 200
	// ~5 m of latitude; fixes inside this dead band are dropped.
	deadBandDegrees = 0.00005
)

// Filter rejects noisy or redundant fixes before they are persisted. The
// last-accepted fix lives here, not in a package global, so foreground and
// background registrations each carry their own filter state.
type Filter struct {
	mu   sync.Mutex
	last *Fix
}

func NewFilter() *Filter {
	return &Filter{}
}

// Accept reports whether the fix should be captured. Accepted fixes update
// the last-accepted state unconditionally.
func (f *Filter) Accept(fix Fix) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fix.AccuracyMeters > maxAccuracyMeters {
		return false
	}

	if f.last != nil {
		dist := geo.HaversineM(f.last.Latitude, f.last.Longitude, fix.Latitude, fix.Longitude)
		if dist > maxJumpMeters {
			return false
		}

		latDiff := math.Abs(fix.Latitude - f.last.Latitude)
		lonDiff := math.Abs(fix.Longitude - f.last.Longitude)
		if latDiff <= deadBandDegrees && lonDiff <= deadBandDegrees {
			return false
		}
	}

	accepted := fix
	f.last = &accepted
	return true
}

// Reset clears the last-accepted state. Called at session start.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
}
