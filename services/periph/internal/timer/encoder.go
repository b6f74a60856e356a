package timer

import (
	"sync/atomic"

	"periph-go/services/periph/internal/core"
)

type EncoderTransport interface {
	StartEncoder(unit core.UnitID) error
	StopEncoder(unit core.UnitID) error
	// Count reads the raw quadrature counter; called from interrupt context.
	Count(unit core.UnitID) uint16
}

// Encoder turns a quadrature counter into detent steps (4 counts each).
type Encoder struct {
	r    *Router
	unit core.UnitID
	tr   EncoderTransport

	value atomic.Int32
	inc   *core.Callbacks[func()]
	dec   *core.Callbacks[func()]
}

func NewEncoder(r *Router, unit core.UnitID, tr EncoderTransport) *Encoder {
	return &Encoder{
		r: r, unit: unit, tr: tr,
		inc: core.NewCallbacks[func()](),
		dec: core.NewCallbacks[func()](),
	}
}

func (e *Encoder) Unit() core.UnitID { return e.unit }

// Init latches the current position, registers and starts the counter.
func (e *Encoder) Init() error {
	e.value.Store(int32(e.tr.Count(e.unit) / 4))
	if err := e.r.encoders.Push(e); err != nil {
		return err
	}
	if err := e.tr.StartEncoder(e.unit); err != nil {
		e.r.encoders.Pop(e)
		return err
	}
	return nil
}

func (e *Encoder) Deinit() error {
	err := e.tr.StopEncoder(e.unit)
	e.r.encoders.Pop(e)
	return err
}

func (e *Encoder) OnIncrement(fn func()) (func(), error) { return e.inc.Add(fn) }
func (e *Encoder) OnDecrement(fn func()) (func(), error) { return e.dec.Add(fn) }

// Value is the position in detent steps.
func (e *Encoder) Value() int32 { return e.value.Load() }

func (e *Encoder) captured() {
	cnt := int32(e.tr.Count(e.unit) / 4)
	prev := e.value.Swap(cnt)
	switch {
	case cnt > prev:
		e.inc.Each(func(fn func()) { fn() })
	case cnt < prev:
		e.dec.Each(func(fn func()) { fn() })
	}
}
