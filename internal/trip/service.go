package trip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arpatil-dev/TrackORoute/internal/db"
	"github.com/arpatil-dev/TrackORoute/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrTripNotFound = errors.New("trip not found")
	ErrForbidden    = errors.New("trip belongs to another user")
)

type Service struct {
	db  db.TxQuerier
	hub *stream.Hub
}

func NewService(db db.TxQuerier, hub *stream.Hub) *Service {
	return &Service{db: db, hub: hub}
}

func (s *Service) StartTrip(ctx context.Context, userID, name string) (Trip, error) {
	trip := Trip{ID: uuid.NewString(), UserID: userID, Name: name}

	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, user_id, name)
		VALUES ($1,$2,$3)
		RETURNING started_at
	`, trip.ID, trip.UserID, trip.Name)
	if err := row.Scan(&trip.StartedAt); err != nil {
		return Trip{}, err
	}
	return trip, nil
}

// AddLocations appends the locations to a trip inside one transaction: the
// append fully succeeds or leaves the trip unchanged. The trip row is
// locked for the duration so concurrent live and batch appends to the same
// trip serialize instead of interleaving. No dedup or ordering is enforced
// here; retries and out-of-order background delivery are tolerated and
// cleaned up on the read path.
func (s *Service) AddLocations(ctx context.Context, tripID, userID string, locations []Location) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var owner string
	err = tx.QueryRow(ctx, `SELECT user_id FROM trips WHERE id=$1 FOR UPDATE`, tripID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTripNotFound
		}
		return err
	}
	if owner != userID {
		return ErrForbidden
	}

	for _, loc := range locations {
		_, err := tx.Exec(ctx, `
			INSERT INTO trip_locations (trip_id, latitude, longitude, timestamp_ms)
			VALUES ($1,$2,$3,$4)
		`, tripID, loc.Latitude, loc.Longitude, loc.Timestamp)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if s.hub != nil {
		for _, loc := range locations {
			payload, _ := json.Marshal(loc)
			s.hub.Broadcast(tripID, payload)
		}
	}
	return nil
}

func (s *Service) StopTrip(ctx context.Context, tripID, userID string) error {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.UserID != userID {
		return ErrForbidden
	}
	if trip.StoppedAt != nil {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE trips SET stopped_at=$2 WHERE id=$1
	`, tripID, time.Now())
	return err
}

func (s *Service) DeleteTrip(ctx context.Context, tripID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM trip_locations WHERE trip_id=$1`, tripID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1`, tripID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (s *Service) Trips(ctx context.Context, userID string) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, started_at, stopped_at
		FROM trips WHERE user_id=$1
		ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.StartedAt, &t.StoppedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Service) GetTrip(ctx context.Context, tripID string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, started_at, stopped_at
		FROM trips WHERE id=$1
	`, tripID)
	var t Trip
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.StartedAt, &t.StoppedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trip{}, ErrTripNotFound
		}
		return Trip{}, err
	}
	return t, nil
}

// TripDetail loads a trip and returns it with the reconstructed, cleaned
// path instead of the raw sample sequence.
func (s *Service) TripDetail(ctx context.Context, tripID string) (TripDetail, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return TripDetail{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT latitude, longitude, timestamp_ms
		FROM trip_locations WHERE trip_id=$1
		ORDER BY id
	`, tripID)
	if err != nil {
		return TripDetail{}, err
	}
	defer rows.Close()

	var raw []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.Latitude, &loc.Longitude, &loc.Timestamp); err != nil {
			return TripDetail{}, err
		}
		raw = append(raw, loc)
	}
	if err := rows.Err(); err != nil {
		return TripDetail{}, err
	}

	return TripDetail{Trip: trip, Locations: Reconstruct(raw)}, nil
}
