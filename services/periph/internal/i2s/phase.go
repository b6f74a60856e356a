package i2s

import (
	"context"
	"sync/atomic"
	"time"

	"periph-go/errcode"
)

// Phase is the settled half reported by the circular transfer.
type Phase uint32

const (
	PhaseNone Phase = 0
	PhaseHalf Phase = 1 << 0
	PhaseFull Phase = 1 << 1
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseHalf:
		return "half"
	case PhaseFull:
		return "full"
	}
	return "unknown"
}

// phaseFlag is set from interrupt context and consumed once by a waiting
// task. Setting a phase replaces (clears) the other one.
type phaseFlag struct {
	v   atomic.Uint32
	sig chan struct{}
}

func newPhaseFlag() *phaseFlag { return &phaseFlag{sig: make(chan struct{}, 1)} }

func (f *phaseFlag) set(p Phase) {
	f.v.Store(uint32(p))
	select {
	case f.sig <- struct{}{}:
	default:
	}
}

func (f *phaseFlag) reset() {
	f.v.Store(0)
	select {
	case <-f.sig:
	default:
	}
}

func check(p Phase) (Phase, error) {
	if p == PhaseHalf || p == PhaseFull {
		return p, nil
	}
	return p, errcode.UnexpectedState
}

// wait returns the pending phase, consuming it. It blocks up to timeout.
func (f *phaseFlag) wait(ctx context.Context, timeout time.Duration) (Phase, error) {
	if p := Phase(f.v.Swap(0)); p != PhaseNone {
		return check(p)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-f.sig:
			// The fast path above may already have taken the value that
			// raised this signal.
			if p := Phase(f.v.Swap(0)); p != PhaseNone {
				return check(p)
			}
		case <-t.C:
			return PhaseNone, errcode.Timeout
		case <-ctx.Done():
			return PhaseNone, ctx.Err()
		}
	}
}
