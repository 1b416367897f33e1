// Package apiclient is the tracker's HTTP client for the trip API. All
// calls carry the bearer credential and a bounded timeout so a delivery
// attempt can never stall a capture callback indefinitely.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
)

var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrDeliveryFailed = errors.New("delivery failed")
)

const requestTimeout = 10 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client

	// resolveTrip yields the active trip id for deliveries; the session
	// binds it after StartTrip so background and foreground agree.
	resolveTrip func(ctx context.Context) (string, error)
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// location timestamps are epoch milliseconds but arrive fractional on the
// read path: the server smooths trips by averaging neighbouring samples.
type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp float64 `json:"timestamp"`
}

type locationsPayload struct {
	Locations []location `json:"locations"`
}

// TripDetail is the server's view of a trip, fetched to reconcile local
// display state after a background/foreground swap.
type TripDetail struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Locations []location `json:"locations"`
}

// StartTrip opens a trip on the server and returns its id.
func (c *Client) StartTrip(ctx context.Context, name string) (string, error) {
	var resp struct {
		TripID string `json:"trip_id"`
	}
	if err := c.post(ctx, "/trips/start", map[string]string{"trip_name": name}, &resp); err != nil {
		return "", err
	}
	return resp.TripID, nil
}

// StopTrip tells the server the trip has ended.
func (c *Client) StopTrip(ctx context.Context, tripID string) error {
	return c.post(ctx, "/trips/"+tripID+"/stop", struct{}{}, nil)
}

// DeliverLive ships a single sample to the single-location endpoint.
func (c *Client) DeliverLive(ctx context.Context, sample samplestore.Sample) error {
	tripID, err := c.requireTrip(ctx)
	if err != nil {
		return err
	}
	return c.post(ctx, "/trips/"+tripID+"/locations", toPayload([]samplestore.Sample{sample}), nil)
}

// DeliverBatch ships a group of samples to the batch endpoint.
func (c *Client) DeliverBatch(ctx context.Context, samples []samplestore.Sample) error {
	tripID, err := c.requireTrip(ctx)
	if err != nil {
		return err
	}
	return c.post(ctx, "/trips/"+tripID+"/locations/batch", toPayload(samples), nil)
}

// FetchTrip returns the server's cleaned view of a trip.
func (c *Client) FetchTrip(ctx context.Context, tripID string) (TripDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/trips/"+tripID, nil)
	if err != nil {
		return TripDetail{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return TripDetail{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()

	if err := statusError(res.StatusCode); err != nil {
		return TripDetail{}, err
	}

	var body struct {
		Trip TripDetail `json:"trip"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return TripDetail{}, err
	}
	return body.Trip, nil
}

var errNoTrip = errors.New("no active trip")

// BindTrip sets the resolver for the active trip id used by deliveries.
func (c *Client) BindTrip(resolve func(ctx context.Context) (string, error)) {
	c.resolveTrip = resolve
}

func (c *Client) requireTrip(ctx context.Context) (string, error) {
	if c.resolveTrip == nil {
		return "", errNoTrip
	}
	id, err := c.resolveTrip(ctx)
	if err != nil || id == "" {
		return "", errNoTrip
	}
	return id, nil
}

func toPayload(samples []samplestore.Sample) locationsPayload {
	locs := make([]location, len(samples))
	for i, s := range samples {
		locs[i] = location{Latitude: s.Latitude, Longitude: s.Longitude, Timestamp: float64(s.TimestampMillis)}
	}
	return locationsPayload{Locations: locs}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()

	if err := statusError(res.StatusCode); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrTripNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, code)
	}
}
