// Package session binds a trip, a credential, and a sync strategy into one
// start/stop unit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdsync "sync"

	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
	"github.com/arpatil-dev/TrackORoute/internal/sync"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTripStartFailed  = errors.New("trip creation failed")
	ErrAlreadyTracking  = errors.New("session already active")
)

// TripIDKey is where the active trip id is persisted so the background
// registration can read it after a process restart.
const TripIDKey = "trip_id"

// TripAPI is the subset of the API client the session drives.
type TripAPI interface {
	StartTrip(ctx context.Context, name string) (string, error)
	StopTrip(ctx context.Context, tripID string) error
}

// Coordinator is the lifecycle surface the session drives.
type Coordinator interface {
	Activate(ctx context.Context) error
	Deactivate()
}

// PermissionFunc asks the platform for location permission. An error means
// the session cannot start.
type PermissionFunc func(ctx context.Context) error

type Session struct {
	api         TripAPI
	store       *samplestore.Store
	coordinator Coordinator
	permission  PermissionFunc
	mode        sync.Mode
	deliverer   sync.Deliverer

	mu     stdsync.Mutex
	active bool
	tripID string
}

func New(api TripAPI, store *samplestore.Store, coordinator Coordinator, permission PermissionFunc, mode sync.Mode, deliverer sync.Deliverer) *Session {
	return &Session{
		api:         api,
		store:       store,
		coordinator: coordinator,
		permission:  permission,
		mode:        mode,
		deliverer:   deliverer,
	}
}

// TripID returns the active trip id, or "" when no session is running.
func (s *Session) TripID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripID
}

// Start requests permission, opens a trip on the server, persists its id
// and activates capture. No partial state is left behind on failure.
func (s *Session) Start(ctx context.Context, tripName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrAlreadyTracking
	}

	if s.permission != nil {
		if err := s.permission(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}

	tripID, err := s.api.StartTrip(ctx, tripName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTripStartFailed, err)
	}

	if err := s.store.SetSetting(ctx, TripIDKey, tripID); err != nil {
		return err
	}

	if err := s.coordinator.Activate(ctx); err != nil {
		_ = s.store.DeleteSetting(ctx, TripIDKey)
		return err
	}

	s.tripID = tripID
	s.active = true
	return nil
}

// Stop tears down capture, flushes buffered samples for the modes that
// accumulate them, clears the store and notifies the server. Calling Stop
// on an inactive session is a no-op. A failed flush keeps the session
// active and bound to its trip: the retained samples must not be delivered
// into whatever trip a later session opens, so a retried Stop targets the
// same trip.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	s.coordinator.Deactivate()

	if s.mode != sync.ModeLive {
		// final flush delivers everything still in the store, including
		// the trailing partial batch the steady-state loop leaves behind
		if err := sync.FlushAll(ctx, s.store, s.deliverer); err != nil {
			log.Printf("final flush incomplete, samples retained: %v", err)
			return err
		}
		if err := s.store.Clear(ctx); err != nil {
			return err
		}
	} else if err := s.store.Clear(ctx); err != nil {
		return err
	}

	if err := s.api.StopTrip(ctx, s.tripID); err != nil {
		log.Printf("trip stop notification failed: %v", err)
	}

	_ = s.store.DeleteSetting(ctx, TripIDKey)
	s.active = false
	s.tripID = ""
	return nil
}
