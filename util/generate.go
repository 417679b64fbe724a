package util

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns a random id used to correlate a command with its log lines.
func NewRequestID() string {
	return uuid.NewString()
}

var (
	clockMu   sync.Mutex
	lastMicro uint64
)

// NowMicros returns the wall clock in microseconds since the epoch. Successive
// calls within the process always return strictly increasing values, so the
// result is safe to use as a unique generation or segment stamp.
func NowMicros() uint64 {
	now := uint64(time.Now().UnixMicro())

	clockMu.Lock()
	defer clockMu.Unlock()
	if now <= lastMicro {
		now = lastMicro + 1
	}
	lastMicro = now
	return now
}
