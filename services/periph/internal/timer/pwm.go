package timer

import (
	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
)

// PWMConfig is applied by the transport when the output starts.
type PWMConfig struct {
	Prescaler uint32
	Period    uint32
	Pulse     uint32
}

type PWMTransport interface {
	StartPWM(unit core.UnitID, ch Channel, cfg PWMConfig) error
	StopPWM(unit core.UnitID, ch Channel) error
}

type PWM struct {
	r    *Router
	unit core.UnitID
	ch   Channel
	tr   PWMTransport
	cfg  PWMConfig

	half *core.Callbacks[func()]
	full *core.Callbacks[func()]
}

func NewPWM(r *Router, unit core.UnitID, ch Channel, tr PWMTransport, cfg PWMConfig) *PWM {
	return &PWM{
		r: r, unit: unit, ch: ch, tr: tr, cfg: cfg,
		half: core.NewCallbacks[func()](),
		full: core.NewCallbacks[func()](),
	}
}

func (p *PWM) Unit() core.UnitID { return p.unit }
func (p *PWM) Channel() Channel  { return p.ch }
func (p *PWM) Config() PWMConfig { return p.cfg }

func (p *PWM) Init() error {
	if p.cfg.Pulse > p.cfg.Period {
		return errcode.InvalidParams
	}
	if err := p.r.pwms.Push(p); err != nil {
		return err
	}
	if err := p.tr.StartPWM(p.unit, p.ch, p.cfg); err != nil {
		p.r.pwms.Pop(p)
		return err
	}
	return nil
}

func (p *PWM) Deinit() error {
	err := p.tr.StopPWM(p.unit, p.ch)
	p.r.pwms.Pop(p)
	return err
}

func (p *PWM) OnHalf(fn func()) (func(), error)     { return p.half.Add(fn) }
func (p *PWM) OnFinished(fn func()) (func(), error) { return p.full.Add(fn) }
