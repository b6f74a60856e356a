// Package usb routes CDC endpoint completions to endpoint objects.
package usb

import (
	"context"

	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/txq"
	"periph-go/x/mathx"
)

const Capacity = 16

// Transport opens a CDC endpoint and starts non-blocking IN transfers. The
// stack owns the OUT buffer and passes it to RxComplete.
type Transport interface {
	Start(unit core.UnitID) error
	Send(unit core.UnitID, buf []byte) error
	Stop(unit core.UnitID) error
}

type Router struct {
	reg *core.Registry[*Endpoint]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*Endpoint](Capacity)} }

// RxComplete hands a received packet to the endpoint's rx callbacks.
func (r *Router) RxComplete(unit core.UnitID, data []byte) {
	if ep, ok := core.Select(r.reg, unit); ok {
		ep.rxCbs.Each(func(fn func([]byte)) { fn(data) })
	}
}

// TxComplete reports the in-flight IN transfer finished.
func (r *Router) TxComplete(unit core.UnitID) {
	if ep, ok := core.Select(r.reg, unit); ok {
		ep.q.Complete()
	}
}

func (r *Router) Len() int { return r.reg.Len() }

type Endpoint struct {
	r    *Router
	unit core.UnitID
	tr   Transport
	q    *txq.Queue

	rxCbs *core.Callbacks[func([]byte)]
	txCbs *core.Callbacks[func([]byte)]
}

// New builds an endpoint with depth pending transmit slots.
func New(r *Router, unit core.UnitID, tr Transport, depth int) *Endpoint {
	ep := &Endpoint{
		r: r, unit: unit, tr: tr,
		rxCbs: core.NewCallbacks[func([]byte)](),
		txCbs: core.NewCallbacks[func([]byte)](),
	}
	ep.q = txq.New(mathx.OrDefault(depth, txq.DefaultDepth, 1, 64),
		func(b []byte) error { return tr.Send(unit, b) },
		func(b []byte) { ep.txCbs.Each(func(fn func([]byte)) { fn(b) }) },
	)
	return ep
}

func (ep *Endpoint) Unit() core.UnitID { return ep.unit }

func (ep *Endpoint) Init() error {
	if err := ep.r.reg.Push(ep); err != nil {
		return err
	}
	if err := ep.tr.Start(ep.unit); err != nil {
		ep.r.reg.Pop(ep)
		return err
	}
	return nil
}

func (ep *Endpoint) Deinit() error {
	err := ep.tr.Stop(ep.unit)
	ep.q.Reset()
	ep.r.reg.Pop(ep)
	return err
}

func (ep *Endpoint) OnReceive(fn func([]byte)) (func(), error)  { return ep.rxCbs.Add(fn) }
func (ep *Endpoint) OnTransmit(fn func([]byte)) (func(), error) { return ep.txCbs.Add(fn) }

// Transmit starts or queues buf; see txq.Queue.Transmit.
func (ep *Endpoint) Transmit(buf []byte) error { return ep.q.Transmit(buf) }

func (ep *Endpoint) TransmitBlocking(ctx context.Context, buf []byte) error {
	return ep.q.TransmitBlocking(ctx, buf)
}

// WriteString queues s for transmission.
func (ep *Endpoint) WriteString(s string) error { return ep.q.Transmit([]byte(s)) }

func (ep *Endpoint) Queue() *txq.Queue { return ep.q }
