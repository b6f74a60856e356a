package timex

import (
	"sync/atomic"
	"time"
)

// FillTime is the time a circular transfer needs to fill samples at rateHz.
// rateHz 0 is treated as 1 Hz.
func FillTime(samples int, rateHz uint32) time.Duration {
	if samples <= 0 {
		return 0
	}
	if rateHz == 0 {
		rateHz = 1
	}
	return time.Duration(uint64(samples) * uint64(time.Second) / uint64(rateHz))
}

// Clock yields a monotonic tick count since boot. Interrupt paths read it,
// so implementations must not block or allocate.
type Clock interface {
	Now() time.Duration
}

// Monotonic measures from the moment it was created.
type Monotonic struct{ boot time.Time }

func NewMonotonic() *Monotonic { return &Monotonic{boot: time.Now()} }

func (m *Monotonic) Now() time.Duration { return time.Since(m.boot) }

// Manual is a Clock advanced explicitly (tests and the host simulator).
type Manual struct{ t atomic.Int64 }

func (m *Manual) Now() time.Duration      { return time.Duration(m.t.Load()) }
func (m *Manual) Set(d time.Duration)     { m.t.Store(int64(d)) }
func (m *Manual) Advance(d time.Duration) { m.t.Add(int64(d)) }
