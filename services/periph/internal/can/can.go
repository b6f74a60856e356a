// Package can delivers received CAN frames to user callbacks and sends
// frames through a unit's transmit mailbox.
package can

import (
	"sync/atomic"

	"periph-go/services/periph/internal/core"
)

const Capacity = 3

// MaxDLC is the classic CAN payload limit.
const MaxDLC = 8

type Frame struct {
	ID       uint32
	Extended bool
	DLC      uint8
	Data     [MaxDLC]byte
}

// Payload returns the valid bytes of the frame.
func (f *Frame) Payload() []byte { return f.Data[:min(f.DLC, MaxDLC)] }

// Filter accepts ids where id&Mask == ID&Mask.
type Filter struct {
	ID       uint32
	Mask     uint32
	Extended bool
}

func (f Filter) Accepts(id uint32) bool { return id&f.Mask == f.ID&f.Mask }

// Transport starts the controller with an acceptance filter, fetches the
// pending frame on rx interrupts and queues frames for transmission.
type Transport interface {
	Start(unit core.UnitID, f Filter) error
	Stop(unit core.UnitID) error
	Receive(unit core.UnitID) (Frame, error)
	Send(unit core.UnitID, f Frame) error
}

type Config struct {
	TxID     uint32
	Extended bool
	Filter   Filter
}

type Router struct {
	reg *core.Registry[*CAN]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*CAN](Capacity)} }

// RxPending is the rx-FIFO-pending notify. The frame is read from the
// transport once and handed to every rx callback.
func (r *Router) RxPending(unit core.UnitID) {
	c, ok := core.Select(r.reg, unit)
	if !ok {
		return
	}
	f, err := c.tr.Receive(unit)
	if err != nil {
		c.rxErrors.Add(1)
		return
	}
	c.cbs.Each(func(fn func(*Frame)) { fn(&f) })
}

func (r *Router) Len() int { return r.reg.Len() }

type CAN struct {
	r    *Router
	unit core.UnitID
	tr   Transport
	cfg  Config
	cbs  *core.Callbacks[func(*Frame)]

	rxErrors atomic.Uint32
}

func New(r *Router, unit core.UnitID, tr Transport, cfg Config) *CAN {
	if cfg.Filter.Mask == 0 && cfg.Filter.ID == 0 {
		cfg.Filter.Extended = cfg.Extended
	}
	return &CAN{r: r, unit: unit, tr: tr, cfg: cfg, cbs: core.NewCallbacks[func(*Frame)]()}
}

func (c *CAN) Unit() core.UnitID { return c.unit }
func (c *CAN) Config() Config    { return c.cfg }
func (c *CAN) RxErrors() uint32  { return c.rxErrors.Load() }

func (c *CAN) Init() error {
	if err := c.r.reg.Push(c); err != nil {
		return err
	}
	if err := c.tr.Start(c.unit, c.cfg.Filter); err != nil {
		c.r.reg.Pop(c)
		return err
	}
	return nil
}

func (c *CAN) Deinit() error {
	err := c.tr.Stop(c.unit)
	c.r.reg.Pop(c)
	return err
}

// OnReceive adds an rx callback. The frame pointer is only valid for the
// duration of the call.
func (c *CAN) OnReceive(fn func(*Frame)) (func(), error) { return c.cbs.Add(fn) }

// Transmit sends data to the configured tx id. Payloads longer than 8 bytes
// are truncated.
func (c *CAN) Transmit(data []byte) error {
	return c.TransmitTo(c.cfg.TxID, c.cfg.Extended, data)
}

// TransmitTo sends data with an explicit id and id type.
func (c *CAN) TransmitTo(id uint32, extended bool, data []byte) error {
	f := Frame{ID: id, Extended: extended}
	f.DLC = uint8(copy(f.Data[:], data))
	return c.tr.Send(c.unit, f)
}
