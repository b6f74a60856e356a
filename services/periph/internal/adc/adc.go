// Package adc runs continuous DMA conversions and fans conversion-complete
// interrupts out to user callbacks.
package adc

import (
	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
	"periph-go/x/mathx"
)

const (
	Capacity = 3

	DefaultChannels   = 4
	DefaultVref       = 3.3
	DefaultResolution = 12
)

// Transport starts continuous conversion of len(buf) channels into buf.
type Transport interface {
	Start(unit core.UnitID, buf []uint16) error
	Stop(unit core.UnitID) error
}

type Config struct {
	Channels       int
	Vref           float32
	ResolutionBits uint8
}

// Router is the inbound side for conversion-complete interrupts.
type Router struct {
	reg *core.Registry[*ADC]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*ADC](Capacity)} }

// ConversionComplete runs every callback of the unit's owner.
func (r *Router) ConversionComplete(unit core.UnitID) {
	a, ok := core.Select(r.reg, unit)
	if !ok {
		return
	}
	a.cbs.Each(func(fn func()) { fn() })
}

func (r *Router) Len() int { return r.reg.Len() }

type ADC struct {
	r    *Router
	unit core.UnitID
	tr   Transport
	cfg  Config
	buf  []uint16
	cbs  *core.Callbacks[func()]
}

func New(r *Router, unit core.UnitID, tr Transport, cfg Config) *ADC {
	cfg.Channels = mathx.OrDefault(cfg.Channels, DefaultChannels, 1, 16)
	cfg.Vref = mathx.OrDefault(cfg.Vref, DefaultVref, 0.1, 5.5)
	cfg.ResolutionBits = mathx.OrDefault(cfg.ResolutionBits, DefaultResolution, 6, 16)
	return &ADC{
		r: r, unit: unit, tr: tr, cfg: cfg,
		buf: make([]uint16, cfg.Channels),
		cbs: core.NewCallbacks[func()](),
	}
}

func (a *ADC) Unit() core.UnitID { return a.unit }
func (a *ADC) Config() Config    { return a.cfg }

// Init registers the converter, then starts DMA.
func (a *ADC) Init() error {
	if err := a.r.reg.Push(a); err != nil {
		return err
	}
	if err := a.tr.Start(a.unit, a.buf); err != nil {
		a.r.reg.Pop(a)
		return err
	}
	return nil
}

// Deinit stops DMA, then unregisters.
func (a *ADC) Deinit() error {
	err := a.tr.Stop(a.unit)
	a.r.reg.Pop(a)
	return err
}

// OnComplete adds a conversion-complete callback. fn runs in interrupt
// context.
func (a *ADC) OnComplete(fn func()) (func(), error) { return a.cbs.Add(fn) }

// Value returns the last raw sample of channel i.
func (a *ADC) Value(i int) (uint16, error) {
	if i < 0 || i >= len(a.buf) {
		return 0, errcode.InvalidParams
	}
	return a.buf[i], nil
}

// Volts scales the last raw sample of channel i by vref.
func (a *ADC) Volts(i int) (float32, error) {
	v, err := a.Value(i)
	if err != nil {
		return 0, err
	}
	full := float32(uint32(1)<<a.cfg.ResolutionBits - 1)
	return float32(v) * a.cfg.Vref / full, nil
}

// Buffer exposes the DMA destination to platform transports.
func (a *ADC) Buffer() []uint16 { return a.buf }
