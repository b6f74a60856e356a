// Package uart receives to idle line into a per-port buffer and serializes
// interrupt-driven transmits through a single-flight queue.
package uart

import (
	"context"
	"sync/atomic"

	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/txq"
	"periph-go/x/mathx"
)

const (
	Capacity        = 16
	DefaultRxBuffer = 64
)

// Transport arms receive-to-idle into buf and starts non-blocking sends.
// It reports RxEvent and TxComplete on the Router.
type Transport interface {
	StartReceive(unit core.UnitID, buf []byte) error
	Send(unit core.UnitID, buf []byte) error
	Stop(unit core.UnitID) error
}

// BaudSetter is implemented by transports that can change line speed.
type BaudSetter interface {
	SetBaud(unit core.UnitID, baud uint32) error
}

type Config struct {
	Baud     uint32
	RxBuffer int
	TxDepth  int
}

type Router struct {
	reg *core.Registry[*UART]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*UART](Capacity)} }

// RxEvent reports n bytes received into the port buffer. Callbacks see
// buf[:n], then reception is re-armed.
func (r *Router) RxEvent(unit core.UnitID, n int) {
	u, ok := core.Select(r.reg, unit)
	if !ok {
		return
	}
	n = mathx.Clamp(n, 0, len(u.rxBuf))
	data := u.rxBuf[:n]
	u.rxCbs.Each(func(fn func([]byte)) { fn(data) })
	if err := u.tr.StartReceive(u.unit, u.rxBuf); err != nil {
		u.rearmErrs.Add(1)
	}
}

// TxComplete reports the in-flight send finished.
func (r *Router) TxComplete(unit core.UnitID) {
	if u, ok := core.Select(r.reg, unit); ok {
		u.q.Complete()
	}
}

func (r *Router) Len() int { return r.reg.Len() }

type UART struct {
	r     *Router
	unit  core.UnitID
	tr    Transport
	cfg   Config
	rxBuf []byte
	q     *txq.Queue

	rxCbs *core.Callbacks[func([]byte)]
	txCbs *core.Callbacks[func([]byte)]

	rearmErrs atomic.Uint32
}

func New(r *Router, unit core.UnitID, tr Transport, cfg Config) *UART {
	cfg.RxBuffer = mathx.OrDefault(cfg.RxBuffer, DefaultRxBuffer, 8, 4096)
	cfg.TxDepth = mathx.OrDefault(cfg.TxDepth, txq.DefaultDepth, 1, 64)
	u := &UART{
		r: r, unit: unit, tr: tr, cfg: cfg,
		rxBuf: make([]byte, cfg.RxBuffer),
		rxCbs: core.NewCallbacks[func([]byte)](),
		txCbs: core.NewCallbacks[func([]byte)](),
	}
	u.q = txq.New(cfg.TxDepth,
		func(b []byte) error { return tr.Send(unit, b) },
		func(b []byte) { u.txCbs.Each(func(fn func([]byte)) { fn(b) }) },
	)
	return u
}

func (u *UART) Unit() core.UnitID { return u.unit }
func (u *UART) Config() Config    { return u.cfg }

// Init applies the baud rate when supported, registers the port and arms
// reception.
func (u *UART) Init() error {
	if bs, ok := u.tr.(BaudSetter); ok && u.cfg.Baud != 0 {
		if err := bs.SetBaud(u.unit, u.cfg.Baud); err != nil {
			return err
		}
	}
	if err := u.r.reg.Push(u); err != nil {
		return err
	}
	if err := u.tr.StartReceive(u.unit, u.rxBuf); err != nil {
		u.r.reg.Pop(u)
		return err
	}
	return nil
}

// Deinit aborts transfers, drops pending transmits and unregisters.
func (u *UART) Deinit() error {
	err := u.tr.Stop(u.unit)
	u.q.Reset()
	u.r.reg.Pop(u)
	return err
}

// OnReceive adds an rx callback; the slice aliases the rx buffer and is
// only valid during the call.
func (u *UART) OnReceive(fn func([]byte)) (func(), error) { return u.rxCbs.Add(fn) }

// OnTransmit adds a tx-complete callback receiving the sent buffer.
func (u *UART) OnTransmit(fn func([]byte)) (func(), error) { return u.txCbs.Add(fn) }

// Transmit starts or queues buf. buf must stay untouched until its
// tx-complete callback.
func (u *UART) Transmit(buf []byte) error { return u.q.Transmit(buf) }

// TransmitBlocking waits for the port to go idle, then starts buf.
func (u *UART) TransmitBlocking(ctx context.Context, buf []byte) error {
	return u.q.TransmitBlocking(ctx, buf)
}

func (u *UART) Queue() *txq.Queue   { return u.q }
func (u *UART) RearmErrors() uint32 { return u.rearmErrs.Load() }
