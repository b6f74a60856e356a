package timer

import (
	"sync/atomic"

	"periph-go/services/periph/internal/core"
)

type CaptureTransport interface {
	StartCapture(unit core.UnitID, ch Channel) error
	StopCapture(unit core.UnitID, ch Channel) error
	// Captured reads the latched compare value; called from interrupt context.
	Captured(unit core.UnitID, ch Channel) uint32
}

// InputCapture latches a timer value on an input edge.
type InputCapture struct {
	r    *Router
	unit core.UnitID
	ch   Channel
	tr   CaptureTransport
	cbs  *core.Callbacks[func(uint32)]
	last atomic.Uint32
}

func NewInputCapture(r *Router, unit core.UnitID, ch Channel, tr CaptureTransport) *InputCapture {
	return &InputCapture{r: r, unit: unit, ch: ch, tr: tr, cbs: core.NewCallbacks[func(uint32)]()}
}

func (ic *InputCapture) Unit() core.UnitID { return ic.unit }
func (ic *InputCapture) Channel() Channel  { return ic.ch }

func (ic *InputCapture) Init() error {
	if err := ic.r.captures.Push(ic); err != nil {
		return err
	}
	if err := ic.tr.StartCapture(ic.unit, ic.ch); err != nil {
		ic.r.captures.Pop(ic)
		return err
	}
	return nil
}

func (ic *InputCapture) Deinit() error {
	err := ic.tr.StopCapture(ic.unit, ic.ch)
	ic.r.captures.Pop(ic)
	return err
}

// OnCapture adds a callback receiving the captured value.
func (ic *InputCapture) OnCapture(fn func(uint32)) (func(), error) { return ic.cbs.Add(fn) }

// Last returns the most recent captured value.
func (ic *InputCapture) Last() uint32 { return ic.last.Load() }

func (ic *InputCapture) captured() {
	v := ic.tr.Captured(ic.unit, ic.ch)
	ic.last.Store(v)
	ic.cbs.Each(func(fn func(uint32)) { fn(v) })
}
