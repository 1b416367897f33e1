package match

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arpatil-dev/TrackORoute/internal/trip"
)

func TestMatchReturnsAlignedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		if req.TravelMode != "driving" || len(req.Points) != 2 {
			t.Fatalf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(response{Matched: []trip.Location{
			{Latitude: 1.5, Longitude: 2.5, Timestamp: 1000},
		}})
	}))
	defer srv.Close()

	m := New(srv.URL)
	in := []trip.Location{
		{Latitude: 1, Longitude: 2, Timestamp: 1000},
		{Latitude: 2, Longitude: 3, Timestamp: 2000},
	}
	out := m.Match(context.Background(), in, "driving")
	if len(out) != 1 || out[0].Latitude != 1.5 {
		t.Fatalf("expected matched path, got %+v", out)
	}
}

func TestMatchFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := New(srv.URL)
	in := []trip.Location{
		{Latitude: 1, Longitude: 2, Timestamp: 1000},
		{Latitude: 2, Longitude: 3, Timestamp: 2000},
	}
	out := m.Match(context.Background(), in, "walking")
	if len(out) != 2 || out[0].Latitude != 1 {
		t.Fatalf("expected fallback to input, got %+v", out)
	}
}

func TestMatchSkipsSparseInput(t *testing.T) {
	m := New("http://unreachable.invalid")
	in := []trip.Location{{Latitude: 1, Longitude: 2, Timestamp: 1000}}
	out := m.Match(context.Background(), in, "driving")
	if len(out) != 1 {
		t.Fatalf("expected sparse input returned unchanged")
	}
}
