// Package timer dispatches timer channel interrupts to input-capture,
// quadrature-encoder and PWM objects.
package timer

import (
	"periph-go/services/periph/internal/core"
)

const Capacity = 16

// Channel is a timer channel, 1..4.
type Channel uint8

// Router owns the three timer registries. One capture interrupt feeds both
// the capture and the encoder selectors.
type Router struct {
	captures *core.Registry[*InputCapture]
	encoders *core.Registry[*Encoder]
	pwms     *core.Registry[*PWM]
}

func NewRouter() *Router {
	return &Router{
		captures: core.NewRegistry[*InputCapture](Capacity),
		encoders: core.NewRegistry[*Encoder](Capacity),
		pwms:     core.NewRegistry[*PWM](Capacity),
	}
}

// Capture is the capture-compare notify for (unit, ch).
func (r *Router) Capture(unit core.UnitID, ch Channel) {
	if ic, ok := r.captures.First(func(ic *InputCapture) bool {
		return ic.unit == unit && ic.ch == ch
	}); ok {
		ic.captured()
	}
	if enc, ok := core.Select(r.encoders, unit); ok {
		enc.captured()
	}
}

// PulseHalf is the PWM half-period DMA notify.
func (r *Router) PulseHalf(unit core.UnitID, ch Channel) {
	if p, ok := r.pwm(unit, ch); ok {
		p.half.Each(func(fn func()) { fn() })
	}
}

// PulseFinished is the PWM pulse-finished notify.
func (r *Router) PulseFinished(unit core.UnitID, ch Channel) {
	if p, ok := r.pwm(unit, ch); ok {
		p.full.Each(func(fn func()) { fn() })
	}
}

func (r *Router) pwm(unit core.UnitID, ch Channel) (*PWM, bool) {
	return r.pwms.First(func(p *PWM) bool { return p.unit == unit && p.ch == ch })
}

// Counts reports live captures, encoders and PWM outputs.
func (r *Router) Counts() (captures, encoders, pwms int) {
	return r.captures.Len(), r.encoders.Len(), r.pwms.Len()
}
