// Package i2s runs a full-duplex circular audio transfer and hands the
// settled buffer half to a task-context reader or writer.
package i2s

import (
	"context"
	"time"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
	"periph-go/x/mathx"
	"periph-go/x/timex"
)

const (
	Capacity = 16

	DefaultSamplesPerHalf = 160
	DefaultSampleRate     = 8000
)

// Layout is the number of interleaved hardware channels per frame.
type Layout uint8

const (
	Mono   Layout = 1
	Stereo Layout = 2
)

// Channel picks a side when converting between stereo hardware and mono data.
type Channel uint8

const (
	Left Channel = iota
	Right
)

// Frame is one stereo sample.
type Frame struct{ L, R int16 }

// Transport arms a continuous two-phase transfer over tx and rx. It reports
// HalfComplete and FullComplete on the Router for the unit.
type Transport interface {
	Start(unit core.UnitID, tx, rx []int16) error
	Stop(unit core.UnitID) error
}

type Config struct {
	SamplesPerHalf int
	SampleRate     uint32
	Layout         Layout
}

// Router owns the stream registry and is the inbound side of the transport.
type Router struct {
	reg *core.Registry[*Stream]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*Stream](Capacity)} }

func (r *Router) HalfComplete(unit core.UnitID) { r.raise(unit, PhaseHalf) }
func (r *Router) FullComplete(unit core.UnitID) { r.raise(unit, PhaseFull) }

// raise stores p for both directions. Waiters reject any value other than
// half or full with unexpected_state.
func (r *Router) raise(unit core.UnitID, p Phase) {
	if s, ok := core.Select(r.reg, unit); ok {
		s.rx.set(p)
		s.tx.set(p)
	}
}

func (r *Router) Len() int { return r.reg.Len() }

// Stream is one I2S unit running full duplex. Read and Write track the
// settled half independently.
type Stream struct {
	r    *Router
	unit core.UnitID
	tr   Transport
	cfg  Config

	txBuf []int16
	rxBuf []int16
	rx    *phaseFlag
	tx    *phaseFlag
}

func New(r *Router, unit core.UnitID, tr Transport, cfg Config) *Stream {
	cfg.SamplesPerHalf = mathx.OrDefault(cfg.SamplesPerHalf, DefaultSamplesPerHalf, 1, 4096)
	cfg.SampleRate = mathx.OrDefault(cfg.SampleRate, DefaultSampleRate, 1, 192000)
	if cfg.Layout != Mono {
		cfg.Layout = Stereo
	}
	n := 2 * cfg.SamplesPerHalf * int(cfg.Layout)
	return &Stream{
		r: r, unit: unit, tr: tr, cfg: cfg,
		txBuf: make([]int16, n),
		rxBuf: make([]int16, n),
		rx:    newPhaseFlag(),
		tx:    newPhaseFlag(),
	}
}

func (s *Stream) Unit() core.UnitID { return s.unit }
func (s *Stream) Config() Config    { return s.cfg }

// Timeout is twice the time one half takes to fill.
func (s *Stream) Timeout() time.Duration {
	return 2 * timex.FillTime(s.cfg.SamplesPerHalf, s.cfg.SampleRate)
}

// Init registers the stream and starts the circular transfer.
func (s *Stream) Init() error {
	s.rx.reset()
	s.tx.reset()
	if err := s.r.reg.Push(s); err != nil {
		return err
	}
	if err := s.tr.Start(s.unit, s.txBuf, s.rxBuf); err != nil {
		s.r.reg.Pop(s)
		return err
	}
	return nil
}

// Deinit stops the transfer, then unregisters.
func (s *Stream) Deinit() error {
	err := s.tr.Stop(s.unit)
	s.r.reg.Pop(s)
	return err
}

// half returns the samples of the first (0) or second (1) half.
func (s *Stream) half(buf []int16, second bool) []int16 {
	n := s.cfg.SamplesPerHalf * int(s.cfg.Layout)
	if second {
		return buf[n:]
	}
	return buf[:n]
}

// settledRx waits for the half the hardware just finished filling.
func (s *Stream) settledRx(ctx context.Context) ([]int16, error) {
	p, err := s.rx.wait(ctx, s.Timeout())
	if err != nil {
		return nil, err
	}
	return s.half(s.rxBuf, p == PhaseFull), nil
}

// freeTx waits for the half the hardware is not about to drain.
func (s *Stream) freeTx(ctx context.Context) ([]int16, error) {
	p, err := s.tx.wait(ctx, s.Timeout())
	if err != nil {
		return nil, err
	}
	return s.half(s.txBuf, p == PhaseHalf), nil
}

// ReadMono copies one settled half into dst. With stereo hardware ch picks
// the side.
func (s *Stream) ReadMono(ctx context.Context, dst []int16, ch Channel) error {
	h, err := s.settledRx(ctx)
	if err != nil {
		return errcode.Wrap("i2s.read", err)
	}
	n := min(len(dst), s.cfg.SamplesPerHalf)
	if s.cfg.Layout == Mono {
		copy(dst[:n], h)
		return nil
	}
	off := int(ch & 1)
	for i := 0; i < n; i++ {
		dst[i] = h[2*i+off]
	}
	return nil
}

// ReadStereo copies one settled half into dst, duplicating mono samples.
func (s *Stream) ReadStereo(ctx context.Context, dst []Frame) error {
	h, err := s.settledRx(ctx)
	if err != nil {
		return errcode.Wrap("i2s.read", err)
	}
	n := min(len(dst), s.cfg.SamplesPerHalf)
	for i := 0; i < n; i++ {
		if s.cfg.Layout == Mono {
			dst[i] = Frame{L: h[i], R: h[i]}
		} else {
			dst[i] = Frame{L: h[2*i], R: h[2*i+1]}
		}
	}
	return nil
}

// WriteMono fills the free half from src. With stereo hardware only the
// ch side is written.
func (s *Stream) WriteMono(ctx context.Context, src []int16, ch Channel) error {
	h, err := s.freeTx(ctx)
	if err != nil {
		return errcode.Wrap("i2s.write", err)
	}
	n := min(len(src), s.cfg.SamplesPerHalf)
	if s.cfg.Layout == Mono {
		copy(h, src[:n])
		return nil
	}
	off := int(ch & 1)
	for i := 0; i < n; i++ {
		h[2*i+off] = src[i]
	}
	return nil
}

// WriteStereo fills the free half from src, averaging onto mono hardware.
func (s *Stream) WriteStereo(ctx context.Context, src []Frame) error {
	h, err := s.freeTx(ctx)
	if err != nil {
		return errcode.Wrap("i2s.write", err)
	}
	n := min(len(src), s.cfg.SamplesPerHalf)
	for i := 0; i < n; i++ {
		if s.cfg.Layout == Mono {
			h[i] = mathx.HalfSum(src[i].L, src[i].R)
		} else {
			h[2*i], h[2*i+1] = src[i].L, src[i].R
		}
	}
	return nil
}
