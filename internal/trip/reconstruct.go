package trip

import (
	"sort"

	"github.com/arpatil-dev/TrackORoute/internal/shared/geo"
)

const (
	maxJumpMeters = 700
	maxSpeedMps   = 70
	// below this many surviving points the outlier heuristic is
	// unreliable and is skipped entirely
	minFilteredPoints = 30
	sharpTurnDegrees  = 45
	smoothWindow      = 3
)

// Reconstruct turns a raw sample sequence into a presentable path:
// sort by timestamp, drop consecutive duplicates, reject distance/speed
// outliers while preserving sharp turns, then smooth with a short moving
// average. The final point is pinned to the last raw location so the
// displayed endpoint matches the last reported position.
func Reconstruct(raw []Location) []Location {
	if len(raw) == 0 {
		return nil
	}

	// mixed foreground/background/retry delivery means storage order is
	// not chronological order
	points := make([]Location, len(raw))
	copy(points, raw)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})

	deduped := dedup(points)
	filtered := rejectOutliers(deduped)
	if len(filtered) < minFilteredPoints {
		filtered = deduped
	}
	return smooth(filtered, points[len(points)-1])
}

// dedup drops samples identical to their immediate predecessor.
func dedup(points []Location) []Location {
	out := points[:1:1]
	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		pt := points[i]
		if pt.Latitude == prev.Latitude && pt.Longitude == prev.Longitude && pt.Timestamp == prev.Timestamp {
			continue
		}
		out = append(out, pt)
	}
	return out
}

// rejectOutliers walks the sequence against the last accepted point,
// dropping teleport jumps and impossible speeds. A candidate that would be
// dropped is still accepted when it forms a sharp turn, so genuine abrupt
// maneuvers survive.
func rejectOutliers(points []Location) []Location {
	accepted := points[:1:1]
	for i := 1; i < len(points); i++ {
		prev := accepted[len(accepted)-1]
		curr := points[i]

		dist := geo.HaversineM(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
		dt := (curr.Timestamp - prev.Timestamp) / 1000
		speed := 0.0
		if dt > 0 {
			speed = dist / dt
		}

		keep := dist < maxJumpMeters && speed < maxSpeedMps
		if !keep && len(accepted) >= 2 {
			prev2 := accepted[len(accepted)-2]
			angle := geo.TurnAngleDeg(
				prev2.Latitude, prev2.Longitude,
				prev.Latitude, prev.Longitude,
				curr.Latitude, curr.Longitude,
			)
			if angle > sharpTurnDegrees {
				keep = true
			}
		}
		if keep {
			accepted = append(accepted, curr)
		}
	}
	return accepted
}

// smooth applies a centered moving average to interior points. The first
// point is kept verbatim and the last is replaced with lastRaw.
func smooth(points []Location, lastRaw Location) []Location {
	if len(points) <= 2 {
		return points
	}

	smoothed := make([]Location, 0, len(points))
	smoothed = append(smoothed, points[0])
	half := smoothWindow / 2
	for i := 1; i < len(points)-1; i++ {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + (smoothWindow - half)
		if end > len(points) {
			end = len(points)
		}

		var lat, lon, ts float64
		for _, pt := range points[start:end] {
			lat += pt.Latitude
			lon += pt.Longitude
			ts += pt.Timestamp
		}
		n := float64(end - start)
		smoothed = append(smoothed, Location{Latitude: lat / n, Longitude: lon / n, Timestamp: ts / n})
	}
	smoothed = append(smoothed, lastRaw)
	return smoothed
}
