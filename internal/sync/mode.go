package sync

import "fmt"

// Mode selects how accepted samples reach the server. It is persisted in
// the sample store's settings so it survives restarts, and is read once at
// session start.
type Mode string

const (
	ModeLive        Mode = "live"
	ModeBatch       Mode = "batch"
	ModeCheckout    Mode = "checkout"
	ModeRobustBatch Mode = "robustbatch"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeBatch, ModeCheckout, ModeRobustBatch:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sync mode %q", s)
}

// BuffersLocally reports whether the mode accumulates samples in the
// durable store for a flush at session stop.
func (m Mode) BuffersLocally() bool {
	return m == ModeCheckout || m == ModeRobustBatch
}
