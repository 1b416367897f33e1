package capture

// Fix is a single raw position reading from a location provider.
type Fix struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	TimestampMillis int64   `json:"timestamp"`
	AccuracyMeters  float64 `json:"accuracy,omitempty"`
}

// Source abstracts the OS location provider. A source delivers fixes on its
// own cadence until Stop is called, after which the channel is closed.
type Source interface {
	Fixes() <-chan Fix
	Stop()
}
