// Package match calls an external road-matching service that snaps a
// coordinate sequence to the road network. The service is an opaque
// collaborator: any failure, or input too sparse to match, falls back to
// the original coordinates.
package match

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/arpatil-dev/TrackORoute/internal/trip"
)

const requestTimeout = 5 * time.Second

type Matcher struct {
	url  string
	http *http.Client
}

func New(url string) *Matcher {
	return &Matcher{
		url:  url,
		http: &http.Client{Timeout: requestTimeout},
	}
}

type request struct {
	TravelMode string          `json:"travel_mode"`
	Points     []trip.Location `json:"points"`
}

type response struct {
	Matched []trip.Location `json:"matched"`
}

// Match returns the road-aligned sequence, or the input unchanged when the
// service fails or fewer than 2 points were supplied.
func (m *Matcher) Match(ctx context.Context, locations []trip.Location, travelMode string) []trip.Location {
	if len(locations) < 2 {
		return locations
	}

	body, err := json.Marshal(request{TravelMode: travelMode, Points: locations})
	if err != nil {
		return locations
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return locations
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.http.Do(req)
	if err != nil {
		log.Printf("road matching unavailable, using raw path: %v", err)
		return locations
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("road matching returned status %d, using raw path", res.StatusCode)
		return locations
	}

	var out response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil || len(out.Matched) == 0 {
		return locations
	}
	return out.Matched
}
