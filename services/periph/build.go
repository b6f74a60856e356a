package periph

import (
	"context"
	"time"

	"periph-go/errcode"
	"periph-go/services/periph/internal/adc"
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/exti"
	"periph-go/services/periph/internal/i2c"
	"periph-go/services/periph/internal/i2s"
	"periph-go/services/periph/internal/platform"
	"periph-go/services/periph/internal/timer"
	"periph-go/services/periph/internal/uart"
	"periph-go/services/periph/internal/usb"
	"periph-go/types"
	"periph-go/x/logx"
	"periph-go/x/shmring"
)

// Every builder registers its callbacks before Init so the first interrupt
// after start is never missed. Callbacks only call emit or write a ring.

func (s *Service) buildEXTI(cfg types.EXTIConfig) {
	for _, wc := range cfg.Watchers {
		name, mask := wc.Name, wc.Mask
		w := exti.NewWatcher(s.r.EXTI, mask, time.Duration(wc.DebounceMs)*time.Millisecond, func() {
			s.emit(isrEvent{kind: platform.KindEXTI, name: name, a: mask})
		})
		if s.start(platform.KindEXTI, name, w) {
			s.watchers[name] = w
			logx.Debug(logx.EXTI, "watching", "name", name, "mask", mask, "debounce", w.Debounce())
		}
	}
}

func (s *Service) buildADC(c types.ADCConfig) {
	tr := s.board.ADC()
	u, ok := s.unit(platform.KindADC, c.Name, tr != nil)
	if !ok {
		return
	}
	a := adc.New(s.r.ADC, u, tr, adc.Config{Channels: c.Channels, Vref: c.Vref, ResolutionBits: c.ResolutionBits})
	name := c.Name
	if _, err := a.OnComplete(func() { s.emit(isrEvent{kind: platform.KindADC, name: name}) }); err != nil {
		s.fail(platform.KindADC, name, err)
		return
	}
	if s.start(platform.KindADC, name, a) {
		s.adcs[name] = a
	}
}

func (s *Service) buildCAN(c types.CANConfig) {
	tr := s.board.CAN()
	u, ok := s.unit(platform.KindCAN, c.Name, tr != nil)
	if !ok {
		return
	}
	cc := can.New(s.r.CAN, u, tr, can.Config{
		TxID:     c.TxID,
		Extended: c.Extended,
		Filter:   can.Filter{ID: c.FilterID, Mask: c.FilterMask, Extended: c.Extended},
	})
	name := c.Name
	if _, err := cc.OnReceive(func(f *can.Frame) {
		s.emit(isrEvent{kind: platform.KindCAN, name: name, frame: *f})
	}); err != nil {
		s.fail(platform.KindCAN, name, err)
		return
	}
	if s.start(platform.KindCAN, name, cc) {
		s.cans[name] = cc
	}
}

// streamCallbacks wires rx bytes into a ring plus a marker event, and tx
// completions into events.
func (s *Service) streamCallbacks(k platform.Kind, name string, ring *shmring.Ring,
	onRx func(func([]byte)) (func(), error), onTx func(func([]byte)) (func(), error)) error {
	if _, err := onRx(func(b []byte) {
		ring.TryWriteFrom(b)
		s.emit(isrEvent{kind: k, name: name})
	}); err != nil {
		return err
	}
	_, err := onTx(func(b []byte) {
		s.emit(isrEvent{kind: k, name: name, tx: true, a: uint32(len(b))})
	})
	return err
}

func (s *Service) buildUART(c types.UARTConfig) {
	tr := s.board.UART()
	u, ok := s.unit(platform.KindUART, c.Name, tr != nil)
	if !ok {
		return
	}
	p := uart.New(s.r.UART, u, tr, uart.Config{Baud: c.Baud, RxBuffer: c.RxBuffer, TxDepth: c.TxDepth})
	ring := shmring.New(s.cfg.RxRing)
	if err := s.streamCallbacks(platform.KindUART, c.Name, ring, p.OnReceive, p.OnTransmit); err != nil {
		s.fail(platform.KindUART, c.Name, err)
		return
	}
	if s.start(platform.KindUART, c.Name, p) {
		s.ports[portKey(platform.KindUART, c.Name)] = &port{
			kind: platform.KindUART, name: c.Name, ring: ring,
			tx: p.Transmit, txb: p.TransmitBlocking,
			q: p.Queue(), errs: p.RearmErrors,
		}
	}
}

func (s *Service) buildUSB(c types.USBConfig) {
	tr := s.board.USB()
	u, ok := s.unit(platform.KindUSB, c.Name, tr != nil)
	if !ok {
		return
	}
	ep := usb.New(s.r.USB, u, tr, c.TxDepth)
	ring := shmring.New(s.cfg.RxRing)
	if err := s.streamCallbacks(platform.KindUSB, c.Name, ring, ep.OnReceive, ep.OnTransmit); err != nil {
		s.fail(platform.KindUSB, c.Name, err)
		return
	}
	if s.start(platform.KindUSB, c.Name, ep) {
		s.ports[portKey(platform.KindUSB, c.Name)] = &port{
			kind: platform.KindUSB, name: c.Name, ring: ring,
			tx: ep.Transmit, txb: ep.TransmitBlocking,
			q: ep.Queue(),
		}
	}
}

func (s *Service) buildI2C(c types.I2CConfig) {
	b, ok := s.board.I2CBus(c.Name)
	if !ok {
		s.fail(platform.KindI2C, c.Name, errcode.UnknownUnit)
		return
	}
	u, ok := s.unit(platform.KindI2C, c.Name, true)
	if !ok {
		return
	}
	d := i2c.New(s.r.I2C, u, b, s.board.I2CAsync())
	name := c.Name
	if _, err := d.OnTransmit(func() {
		s.emit(isrEvent{kind: platform.KindI2C, name: name, tx: true})
	}); err != nil {
		s.fail(platform.KindI2C, name, err)
		return
	}
	if s.start(platform.KindI2C, name, d) {
		s.i2cs[name] = d
	}
}

func (s *Service) buildI2S(ctx context.Context, c types.I2SConfig) {
	tr := s.board.I2S()
	u, ok := s.unit(platform.KindI2S, c.Name, tr != nil)
	if !ok {
		return
	}
	layout := i2s.Stereo
	if c.Mono {
		layout = i2s.Mono
	}
	st := i2s.New(s.r.I2S, u, tr, i2s.Config{SamplesPerHalf: c.SamplesPerHalf, SampleRate: c.SampleRate, Layout: layout})
	if s.start(platform.KindI2S, c.Name, st) {
		go s.streamAudio(ctx, c.Name, st, c.Loopback)
	}
}

// streamAudio runs in task context: it waits for each settled half,
// optionally plays it back and publishes its peaks.
func (s *Service) streamAudio(ctx context.Context, name string, st *i2s.Stream, loopback bool) {
	frames := make([]i2s.Frame, st.Config().SamplesPerHalf)
	for {
		err := st.ReadStereo(ctx, frames)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errcode.Recoverable(err) {
				logx.Warn(logx.Stream, "read failed", "name", name, "err", err)
			}
			continue
		}
		ev := types.AudioEvent{Frames: len(frames)}
		for _, f := range frames {
			ev.PeakL = max(ev.PeakL, abs16(f.L))
			ev.PeakR = max(ev.PeakR, abs16(f.R))
		}
		if loopback {
			if err := st.WriteStereo(ctx, frames); err != nil && ctx.Err() == nil {
				logx.Warn(logx.Stream, "write failed", "name", name, "err", err)
			}
		}
		s.publish(platform.KindI2S, name, ev)
	}
}

func abs16(v int16) int16 {
	switch {
	case v == -32768:
		return 32767
	case v < 0:
		return -v
	}
	return v
}

func (s *Service) buildCapture(c types.CaptureConfig) {
	tr := s.board.Capture()
	u, ok := s.unit(platform.KindCapture, c.Name, tr != nil)
	if !ok {
		return
	}
	ch := timer.Channel(c.Channel)
	ic := timer.NewInputCapture(s.r.Timer, u, ch, tr)
	name := c.Name
	if _, err := ic.OnCapture(func(v uint32) {
		s.emit(isrEvent{kind: platform.KindCapture, name: name, a: v, b: uint32(ch)})
	}); err != nil {
		s.fail(platform.KindCapture, name, err)
		return
	}
	s.start(platform.KindCapture, name, ic)
}

func (s *Service) buildEncoder(c types.EncoderConfig) {
	tr := s.board.Encoder()
	u, ok := s.unit(platform.KindEncoder, c.Name, tr != nil)
	if !ok {
		return
	}
	e := timer.NewEncoder(s.r.Timer, u, tr)
	name := c.Name
	if _, err := e.OnIncrement(func() { s.emit(isrEvent{kind: platform.KindEncoder, name: name, step: 1}) }); err != nil {
		s.fail(platform.KindEncoder, name, err)
		return
	}
	if _, err := e.OnDecrement(func() { s.emit(isrEvent{kind: platform.KindEncoder, name: name, step: -1}) }); err != nil {
		s.fail(platform.KindEncoder, name, err)
		return
	}
	if s.start(platform.KindEncoder, name, e) {
		s.encoders[name] = e
	}
}

func (s *Service) buildPWM(c types.PWMConfig) {
	tr := s.board.PWM()
	u, ok := s.unit(platform.KindPWM, c.Name, tr != nil)
	if !ok {
		return
	}
	ch := timer.Channel(c.Channel)
	p := timer.NewPWM(s.r.Timer, u, ch, tr, timer.PWMConfig{Prescaler: c.Prescaler, Period: c.Period, Pulse: c.Pulse})
	name := c.Name
	if _, err := p.OnHalf(func() {
		s.emit(isrEvent{kind: platform.KindPWM, name: name, b: uint32(ch)})
	}); err != nil {
		s.fail(platform.KindPWM, name, err)
		return
	}
	if _, err := p.OnFinished(func() {
		s.emit(isrEvent{kind: platform.KindPWM, name: name, a: 1, b: uint32(ch)})
	}); err != nil {
		s.fail(platform.KindPWM, name, err)
		return
	}
	s.start(platform.KindPWM, name, p)
}

func portKey(k platform.Kind, name string) string { return string(k) + "/" + name }
