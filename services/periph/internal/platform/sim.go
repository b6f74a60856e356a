//go:build !rp2040

package platform

import (
	"strings"
	"sync"

	"tinygo.org/x/drivers"

	"periph-go/errcode"
	"periph-go/services/periph/internal/adc"
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/exti"
	"periph-go/services/periph/internal/i2c"
	"periph-go/services/periph/internal/i2s"
	"periph-go/services/periph/internal/timer"
	"periph-go/services/periph/internal/uart"
	"periph-go/services/periph/internal/usb"
)

// SimBoard is a host board made of fake transports. Tests and the
// simulator drive it with the Fire* helpers, which stand in for vendor
// interrupts. Router calls are always made without holding the board lock
// because notifies call back into transports.
type SimBoard struct {
	mu     sync.Mutex
	r      *Routers
	units  map[string]core.UnitID
	names  map[core.UnitID]string
	nextID core.UnitID

	lines   uint32
	started map[core.UnitID]bool
	adcBuf  map[core.UnitID][]uint16
	canFlt  map[core.UnitID]can.Filter
	canRx   map[core.UnitID][]can.Frame
	rxBuf   map[core.UnitID][]byte
	i2sTx   map[core.UnitID][]int16
	i2sRx   map[core.UnitID][]int16
	capVal  map[core.UnitID]uint32
	encCnt  map[core.UnitID]uint16
	i2cBus  map[string]*HostI2C
	sent    map[core.UnitID][][]byte
	rejectN map[core.UnitID]int
}

var _ Board = (*SimBoard)(nil)

func NewSimBoard() *SimBoard {
	return &SimBoard{
		units:   map[string]core.UnitID{},
		names:   map[core.UnitID]string{},
		started: map[core.UnitID]bool{},
		adcBuf:  map[core.UnitID][]uint16{},
		canFlt:  map[core.UnitID]can.Filter{},
		canRx:   map[core.UnitID][]can.Frame{},
		rxBuf:   map[core.UnitID][]byte{},
		i2sTx:   map[core.UnitID][]int16{},
		i2sRx:   map[core.UnitID][]int16{},
		capVal:  map[core.UnitID]uint32{},
		encCnt:  map[core.UnitID]uint16{},
		i2cBus:  map[string]*HostI2C{},
		sent:    map[core.UnitID][][]byte{},
		rejectN: map[core.UnitID]int{},
	}
}

func (b *SimBoard) Name() string { return "sim" }

// Unit hands out a stable unit per (kind, name); every name is valid.
func (b *SimBoard) Unit(k Kind, name string) (core.UnitID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unitLocked(k, name), true
}

func (b *SimBoard) unitLocked(k Kind, name string) core.UnitID {
	key := string(k) + "/" + name
	if u, ok := b.units[key]; ok {
		return u
	}
	b.nextID++
	u := 0x1000 + b.nextID
	b.units[key] = u
	b.names[u] = key
	return u
}

func (b *SimBoard) unit(k Kind, name string) core.UnitID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unitLocked(k, name)
}

func (b *SimBoard) Attach(r *Routers) {
	b.mu.Lock()
	b.r = r
	b.mu.Unlock()
}

func (b *SimBoard) routers() *Routers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r
}

func (b *SimBoard) Close() {}

func (b *SimBoard) Lines() exti.Lines               { return (*simLines)(b) }
func (b *SimBoard) ADC() adc.Transport              { return (*simADC)(b) }
func (b *SimBoard) CAN() can.Transport              { return (*simCAN)(b) }
func (b *SimBoard) UART() uart.Transport            { return (*simUART)(b) }
func (b *SimBoard) USB() usb.Transport              { return (*simUSB)(b) }
func (b *SimBoard) I2CAsync() i2c.AsyncTransport    { return (*simI2CAsync)(b) }
func (b *SimBoard) I2S() i2s.Transport              { return (*simI2S)(b) }
func (b *SimBoard) Capture() timer.CaptureTransport { return (*simTimer)(b) }
func (b *SimBoard) Encoder() timer.EncoderTransport { return (*simTimer)(b) }
func (b *SimBoard) PWM() timer.PWMTransport         { return (*simTimer)(b) }

// I2CBus returns the emulated bus for name, creating it on first use.
func (b *SimBoard) I2CBus(name string) (drivers.I2C, bool) {
	return b.HostI2C(name), true
}

// HostI2C returns the concrete emulated bus so tests can seed registers.
func (b *SimBoard) HostI2C(name string) *HostI2C {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.i2cBus[name]
	if !ok {
		h = NewHostI2C()
		b.i2cBus[name] = h
	}
	return h
}

// Started reports whether the named peripheral's transport is running.
func (b *SimBoard) Started(k Kind, name string) bool {
	u := b.unit(k, name)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started[u]
}

// Sent returns every buffer handed to the transport for the named unit.
func (b *SimBoard) Sent(k Kind, name string) []string {
	u := b.unit(k, name)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sent[u]))
	for _, s := range b.sent[u] {
		out = append(out, string(s))
	}
	return out
}

// RejectNext makes the next n sends on the unit fail with errcode.Busy.
func (b *SimBoard) RejectNext(k Kind, name string, n int) {
	u := b.unit(k, name)
	b.mu.Lock()
	b.rejectN[u] = n
	b.mu.Unlock()
}

func (b *SimBoard) record(u core.UnitID, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectN[u] > 0 {
		b.rejectN[u]--
		return errcode.Busy
	}
	b.sent[u] = append(b.sent[u], append([]byte(nil), buf...))
	return nil
}

func (b *SimBoard) setStarted(u core.UnitID, on bool) {
	b.mu.Lock()
	b.started[u] = on
	b.mu.Unlock()
}

// ---- simulated interrupts ----

// FireEXTI raises the shared edge vector for lines in mask. Lines that were
// never enabled do not fire.
func (b *SimBoard) FireEXTI(mask uint32) {
	b.mu.Lock()
	m := mask & b.lines
	r := b.r
	b.mu.Unlock()
	if r != nil && m != 0 {
		r.EXTI.Notify(m)
	}
}

// FireADC stores samples into the DMA buffer and raises conversion-complete.
func (b *SimBoard) FireADC(name string, samples ...uint16) {
	u := b.unit(KindADC, name)
	b.mu.Lock()
	copy(b.adcBuf[u], samples)
	r := b.r
	b.mu.Unlock()
	if r != nil {
		r.ADC.ConversionComplete(u)
	}
}

// FireCANRx queues f if the unit's filter accepts it and raises rx-pending.
func (b *SimBoard) FireCANRx(name string, f can.Frame) bool {
	u := b.unit(KindCAN, name)
	b.mu.Lock()
	flt, ok := b.canFlt[u]
	if !ok || !flt.Accepts(f.ID) {
		b.mu.Unlock()
		return false
	}
	b.canRx[u] = append(b.canRx[u], f)
	r := b.r
	b.mu.Unlock()
	if r != nil {
		r.CAN.RxPending(u)
	}
	return true
}

// FireUARTRx delivers data into the armed receive buffer and raises the
// idle-line event. Bytes beyond the buffer are lost, as on hardware.
func (b *SimBoard) FireUARTRx(name string, data []byte) {
	u := b.unit(KindUART, name)
	b.mu.Lock()
	buf := b.rxBuf[u]
	n := copy(buf, data)
	b.rxBuf[u] = nil
	r := b.r
	b.mu.Unlock()
	if r != nil && buf != nil {
		r.UART.RxEvent(u, n)
	}
}

func (b *SimBoard) FireUARTTxDone(name string) {
	u := b.unit(KindUART, name)
	if r := b.routers(); r != nil {
		r.UART.TxComplete(u)
	}
}

func (b *SimBoard) FireUSBRx(name string, data []byte) {
	u := b.unit(KindUSB, name)
	if r := b.routers(); r != nil {
		r.USB.RxComplete(u, data)
	}
}

func (b *SimBoard) FireUSBTxDone(name string) {
	u := b.unit(KindUSB, name)
	if r := b.routers(); r != nil {
		r.USB.TxComplete(u)
	}
}

func (b *SimBoard) FireI2CTxDone(name string) {
	u := b.unit(KindI2C, name)
	if r := b.routers(); r != nil {
		r.I2C.MemTxComplete(u)
	}
}

// FillI2SRx writes samples into the receive DMA buffer from offset off.
func (b *SimBoard) FillI2SRx(name string, off int, samples []int16) {
	u := b.unit(KindI2S, name)
	b.mu.Lock()
	if rx := b.i2sRx[u]; off >= 0 && off < len(rx) {
		copy(rx[off:], samples)
	}
	b.mu.Unlock()
}

// I2STx returns a copy of the transmit DMA buffer.
func (b *SimBoard) I2STx(name string) []int16 {
	u := b.unit(KindI2S, name)
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int16(nil), b.i2sTx[u]...)
}

func (b *SimBoard) FireI2SHalf(name string) {
	u := b.unit(KindI2S, name)
	if r := b.routers(); r != nil {
		r.I2S.HalfComplete(u)
	}
}

func (b *SimBoard) FireI2SFull(name string) {
	u := b.unit(KindI2S, name)
	if r := b.routers(); r != nil {
		r.I2S.FullComplete(u)
	}
}

// FireCapture latches v on (name, ch) and raises capture-compare.
func (b *SimBoard) FireCapture(name string, ch timer.Channel, v uint32) {
	u := b.unit(KindCapture, name)
	b.mu.Lock()
	b.capVal[u] = v
	r := b.r
	b.mu.Unlock()
	if r != nil {
		r.Timer.Capture(u, ch)
	}
}

// FireEncoder sets the quadrature counter and raises capture-compare.
func (b *SimBoard) FireEncoder(name string, count uint16) {
	u := b.unit(KindEncoder, name)
	b.mu.Lock()
	b.encCnt[u] = count
	r := b.r
	b.mu.Unlock()
	if r != nil {
		r.Timer.Capture(u, 1)
	}
}

func (b *SimBoard) FirePWMHalf(name string, ch timer.Channel) {
	u := b.unit(KindPWM, name)
	if r := b.routers(); r != nil {
		r.Timer.PulseHalf(u, ch)
	}
}

func (b *SimBoard) FirePWMFinished(name string, ch timer.Channel) {
	u := b.unit(KindPWM, name)
	if r := b.routers(); r != nil {
		r.Timer.PulseFinished(u, ch)
	}
}

// ---- transports ----

type simLines SimBoard

func (l *simLines) Enable(mask uint32) error {
	l.mu.Lock()
	l.lines |= mask
	l.mu.Unlock()
	return nil
}

func (l *simLines) Disable(mask uint32) error {
	l.mu.Lock()
	l.lines &^= mask
	l.mu.Unlock()
	return nil
}

type simADC SimBoard

func (a *simADC) Start(u core.UnitID, buf []uint16) error {
	a.mu.Lock()
	a.adcBuf[u] = buf
	a.started[u] = true
	a.mu.Unlock()
	return nil
}

func (a *simADC) Stop(u core.UnitID) error {
	(*SimBoard)(a).setStarted(u, false)
	return nil
}

type simCAN SimBoard

func (c *simCAN) Start(u core.UnitID, f can.Filter) error {
	c.mu.Lock()
	c.canFlt[u] = f
	c.started[u] = true
	c.mu.Unlock()
	return nil
}

func (c *simCAN) Stop(u core.UnitID) error {
	c.mu.Lock()
	delete(c.canFlt, u)
	c.started[u] = false
	c.mu.Unlock()
	return nil
}

func (c *simCAN) Receive(u core.UnitID) (can.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.canRx[u]
	if len(q) == 0 {
		return can.Frame{}, errcode.NotReady
	}
	f := q[0]
	c.canRx[u] = q[1:]
	return f, nil
}

func (c *simCAN) Send(u core.UnitID, f can.Frame) error {
	return (*SimBoard)(c).record(u, f.Payload())
}

type simUART SimBoard

func (s *simUART) StartReceive(u core.UnitID, buf []byte) error {
	s.mu.Lock()
	s.rxBuf[u] = buf
	s.started[u] = true
	s.mu.Unlock()
	return nil
}

func (s *simUART) Send(u core.UnitID, buf []byte) error {
	return (*SimBoard)(s).record(u, buf)
}

func (s *simUART) Stop(u core.UnitID) error {
	s.mu.Lock()
	s.rxBuf[u] = nil
	s.started[u] = false
	s.mu.Unlock()
	return nil
}

type simUSB SimBoard

func (s *simUSB) Start(u core.UnitID) error {
	(*SimBoard)(s).setStarted(u, true)
	return nil
}

func (s *simUSB) Send(u core.UnitID, buf []byte) error {
	return (*SimBoard)(s).record(u, buf)
}

func (s *simUSB) Stop(u core.UnitID) error {
	(*SimBoard)(s).setStarted(u, false)
	return nil
}

type simI2CAsync SimBoard

// WriteMem applies the write to the emulated bus immediately; completion is
// raised separately with FireI2CTxDone.
func (s *simI2CAsync) WriteMem(u core.UnitID, addr uint16, mem uint8, data []byte) error {
	b := (*SimBoard)(s)
	b.mu.Lock()
	key, ok := b.names[u]
	b.mu.Unlock()
	if !ok || !strings.HasPrefix(key, string(KindI2C)+"/") {
		return errcode.UnknownUnit
	}
	bus := b.HostI2C(strings.TrimPrefix(key, string(KindI2C)+"/"))
	w := append([]byte{mem}, data...)
	if err := bus.Tx(addr, w, nil); err != nil {
		return err
	}
	return b.record(u, data)
}

type simI2S SimBoard

func (s *simI2S) Start(u core.UnitID, tx, rx []int16) error {
	s.mu.Lock()
	s.i2sTx[u], s.i2sRx[u] = tx, rx
	s.started[u] = true
	s.mu.Unlock()
	return nil
}

func (s *simI2S) Stop(u core.UnitID) error {
	(*SimBoard)(s).setStarted(u, false)
	return nil
}

type simTimer SimBoard

func (s *simTimer) StartCapture(u core.UnitID, _ timer.Channel) error {
	(*SimBoard)(s).setStarted(u, true)
	return nil
}

func (s *simTimer) StopCapture(u core.UnitID, _ timer.Channel) error {
	(*SimBoard)(s).setStarted(u, false)
	return nil
}

func (s *simTimer) Captured(u core.UnitID, _ timer.Channel) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capVal[u]
}

func (s *simTimer) StartEncoder(u core.UnitID) error {
	(*SimBoard)(s).setStarted(u, true)
	return nil
}

func (s *simTimer) StopEncoder(u core.UnitID) error {
	(*SimBoard)(s).setStarted(u, false)
	return nil
}

func (s *simTimer) Count(u core.UnitID) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encCnt[u]
}

func (s *simTimer) StartPWM(u core.UnitID, _ timer.Channel, _ timer.PWMConfig) error {
	(*SimBoard)(s).setStarted(u, true)
	return nil
}

func (s *simTimer) StopPWM(u core.UnitID, _ timer.Channel) error {
	(*SimBoard)(s).setStarted(u, false)
	return nil
}
