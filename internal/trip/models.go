package trip

import "time"

type Trip struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// Location is one recorded position. Timestamp is epoch milliseconds; it
// stays a float because smoothing averages neighbouring timestamps.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp float64 `json:"timestamp"`
}

type TripDetail struct {
	Trip
	Locations []Location `json:"locations"`
}
