package capture

import "testing"

func TestFilterFirstFixAccepted(t *testing.T) {
	f := NewFilter()
	if !f.Accept(Fix{Latitude: 10, Longitude: 20, AccuracyMeters: 5}) {
		t.Fatalf("expected first fix accepted")
	}
}

func TestFilterRejectsPoorAccuracy(t *testing.T) {
	f := NewFilter()
	if f.Accept(Fix{Latitude: 10, Longitude: 20, AccuracyMeters: 51}) {
		t.Fatalf("expected fix with accuracy > 50 rejected")
	}
	// rejection must not touch last-accepted state
	if !f.Accept(Fix{Latitude: 10, Longitude: 20, AccuracyMeters: 10}) {
		t.Fatalf("expected clean fix accepted after noisy one")
	}
}

func TestFilterRejectsTeleport(t *testing.T) {
	f := NewFilter()
	if !f.Accept(Fix{Latitude: 10, Longitude: 20}) {
		t.Fatalf("expected first fix accepted")
	}
	// ~1.1 km north of the last accepted fix
	if f.Accept(Fix{Latitude: 10.01, Longitude: 20}) {
		t.Fatalf("expected teleport fix rejected")
	}
}

func TestFilterDeadBand(t *testing.T) {
	f := NewFilter()
	if !f.Accept(Fix{Latitude: 10, Longitude: 20}) {
		t.Fatalf("expected first fix accepted")
	}
	if f.Accept(Fix{Latitude: 10.00001, Longitude: 20.00001}) {
		t.Fatalf("expected fix inside dead band rejected")
	}
	if !f.Accept(Fix{Latitude: 10.0001, Longitude: 20}) {
		t.Fatalf("expected fix outside dead band accepted")
	}
}

func TestFilterReset(t *testing.T) {
	f := NewFilter()
	f.Accept(Fix{Latitude: 10, Longitude: 20})
	f.Reset()
	// after reset even a far-away fix is a "first" fix again
	if !f.Accept(Fix{Latitude: 50, Longitude: 60}) {
		t.Fatalf("expected fix accepted after reset")
	}
}
