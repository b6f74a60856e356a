//go:build rp2040

package platform

import (
	"context"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
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

// Unit ids on the RP2040. EXTI lines map one to one onto GPIO numbers.
const (
	unitUART0 core.UnitID = 0x40034000
	unitUART1 core.UnitID = 0x40038000
	unitI2C0  core.UnitID = 0x40044000
	unitI2C1  core.UnitID = 0x40048000
)

// RP2Board wires GPIO edges, UART0/1 through uartx and I2C0/1 through
// machine.I2C. The other categories are unsupported.
type RP2Board struct {
	mu    sync.Mutex
	r     *Routers
	ctx   context.Context
	stop  context.CancelFunc
	ports map[core.UnitID]*rp2Port
	i2c   map[string]*machine.I2C
}

var _ Board = (*RP2Board)(nil)

func NewRP2Board() *RP2Board {
	ctx, cancel := context.WithCancel(context.Background())
	return &RP2Board{
		ctx:   ctx,
		stop:  cancel,
		ports: map[core.UnitID]*rp2Port{},
		i2c:   map[string]*machine.I2C{},
	}
}

func (b *RP2Board) Name() string { return "rp2040" }

func (b *RP2Board) Unit(k Kind, name string) (core.UnitID, bool) {
	switch k {
	case KindUART:
		switch name {
		case "uart0":
			return unitUART0, true
		case "uart1":
			return unitUART1, true
		}
	case KindI2C:
		switch name {
		case "i2c0":
			return unitI2C0, true
		case "i2c1":
			return unitI2C1, true
		}
	}
	return 0, false
}

func (b *RP2Board) Attach(r *Routers) {
	b.mu.Lock()
	b.r = r
	b.mu.Unlock()
}

func (b *RP2Board) Close() { b.stop() }

func (b *RP2Board) Lines() exti.Lines    { return (*rp2Lines)(b) }
func (b *RP2Board) UART() uart.Transport { return (*rp2UART)(b) }

func (b *RP2Board) ADC() adc.Transport              { return nil }
func (b *RP2Board) CAN() can.Transport              { return nil }
func (b *RP2Board) USB() usb.Transport              { return nil }
func (b *RP2Board) I2CAsync() i2c.AsyncTransport    { return nil }
func (b *RP2Board) I2S() i2s.Transport              { return nil }
func (b *RP2Board) Capture() timer.CaptureTransport { return nil }
func (b *RP2Board) Encoder() timer.EncoderTransport { return nil }
func (b *RP2Board) PWM() timer.PWMTransport         { return nil }

// I2CBus configures the controller on its default pins on first use.
func (b *RP2Board) I2CBus(name string) (drivers.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hw, ok := b.i2c[name]; ok {
		return hw, true
	}
	var hw *machine.I2C
	switch name {
	case "i2c0":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, false
	}
	if err := hw.Configure(machine.I2CConfig{}); err != nil {
		return nil, false
	}
	b.i2c[name] = hw
	return hw, true
}

// ---- EXTI ----

type rp2Lines RP2Board

func (l *rp2Lines) Enable(mask uint32) error {
	for n := 0; n < 30; n++ {
		if mask&(1<<n) == 0 {
			continue
		}
		p := machine.Pin(n)
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		err := p.SetInterrupt(machine.PinFalling, func(p machine.Pin) {
			if r := l.r; r != nil {
				r.EXTI.Notify(1 << uint32(p))
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *rp2Lines) Disable(mask uint32) error {
	var none machine.PinChange
	for n := 0; n < 30; n++ {
		if mask&(1<<n) != 0 {
			_ = machine.Pin(n).SetInterrupt(none, nil)
		}
	}
	return nil
}

// ---- UART ----

// rp2Port runs the blocking uartx calls on two goroutines that stand in for
// the rx-idle and tx-complete interrupts.
type rp2Port struct {
	hw    *uartx.UART
	unit  core.UnitID
	armed chan rxArm
	tx    chan []byte
	rxGate
}

func (p *rp2Port) stop() {
	p.rxGate.stop()
	select {
	case <-p.armed:
	default:
	}
}

type rp2UART RP2Board

func (u *rp2UART) port(unit core.UnitID) (*rp2Port, error) {
	b := (*RP2Board)(u)
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.ports[unit]; ok {
		return p, nil
	}
	var (
		hw     *uartx.UART
		tx, rx machine.Pin
	)
	switch unit {
	case unitUART0:
		hw, tx, rx = uartx.UART0, machine.UART0_TX_PIN, machine.UART0_RX_PIN
	case unitUART1:
		hw, tx, rx = uartx.UART1, machine.UART1_TX_PIN, machine.UART1_RX_PIN
	default:
		return nil, errcode.UnknownUnit
	}
	if err := hw.Configure(uartx.UARTConfig{TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	p := &rp2Port{hw: hw, unit: unit, armed: make(chan rxArm, 1), tx: make(chan []byte, 1)}
	b.ports[unit] = p
	go b.rxLoop(p)
	go b.txLoop(p)
	return p, nil
}

func (b *RP2Board) routers() *Routers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r
}

// rxLoop retries a failed receive into the same buffer. A receive cut
// short by Stop is discarded so its bytes never reach the next owner of
// the unit.
func (b *RP2Board) rxLoop(p *rp2Port) {
	for {
		var a rxArm
		select {
		case <-b.ctx.Done():
			return
		case a = <-p.armed:
		}
		for {
			rctx, cancel := context.WithCancel(b.ctx)
			if !p.begin(a, cancel) {
				cancel()
				break
			}
			n, _ := p.hw.RecvSomeContext(rctx, a.buf)
			cancel()
			if b.ctx.Err() != nil {
				return
			}
			if !p.end(a) {
				break
			}
			if n <= 0 {
				continue
			}
			if r := b.routers(); r != nil {
				r.UART.RxEvent(p.unit, n)
			}
			break
		}
	}
}

func (b *RP2Board) txLoop(p *rp2Port) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case buf := <-p.tx:
			_, _ = p.hw.Write(buf)
			if r := b.routers(); r != nil {
				r.UART.TxComplete(p.unit)
			}
		}
	}
}

func (u *rp2UART) SetBaud(unit core.UnitID, baud uint32) error {
	p, err := u.port(unit)
	if err != nil {
		return err
	}
	p.hw.SetBaudRate(baud)
	return nil
}

func (u *rp2UART) StartReceive(unit core.UnitID, buf []byte) error {
	p, err := u.port(unit)
	if err != nil {
		return err
	}
	select {
	case p.armed <- p.arm(buf):
		return nil
	default:
		return errcode.Busy
	}
}

func (u *rp2UART) Send(unit core.UnitID, buf []byte) error {
	p, err := u.port(unit)
	if err != nil {
		return err
	}
	select {
	case p.tx <- buf:
		return nil
	default:
		return errcode.Busy
	}
}

// Stop disarms reception and cancels a receive already blocked in uartx.
func (u *rp2UART) Stop(unit core.UnitID) error {
	p, err := u.port(unit)
	if err != nil {
		return err
	}
	p.stop()
	return nil
}
