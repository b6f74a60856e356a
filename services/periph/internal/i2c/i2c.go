// Package i2c provides register-style memory access on an I2C controller:
// blocking reads and writes over a tinygo drivers.I2C bus, and interrupt
// completed writes through an async transport.
package i2c

import (
	"tinygo.org/x/drivers"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
)

const Capacity = 16

// MaxWrite bounds a single memory write (register address excluded).
const MaxWrite = 32

// AsyncTransport starts a memory write that completes with MemTxComplete.
type AsyncTransport interface {
	WriteMem(unit core.UnitID, addr uint16, mem uint8, data []byte) error
}

type Router struct {
	reg *core.Registry[*I2C]
}

func NewRouter() *Router { return &Router{reg: core.NewRegistry[*I2C](Capacity)} }

// MemTxComplete is the async memory-write-complete notify.
func (r *Router) MemTxComplete(unit core.UnitID) {
	if c, ok := core.Select(r.reg, unit); ok {
		c.cbs.Each(func(fn func()) { fn() })
	}
}

func (r *Router) Len() int { return r.reg.Len() }

type I2C struct {
	r     *Router
	unit  core.UnitID
	bus   drivers.I2C
	async AsyncTransport
	cbs   *core.Callbacks[func()]
}

// New binds a controller. async may be nil when the platform has no
// interrupt-driven write path.
func New(r *Router, unit core.UnitID, bus drivers.I2C, async AsyncTransport) *I2C {
	return &I2C{r: r, unit: unit, bus: bus, async: async, cbs: core.NewCallbacks[func()]()}
}

func (c *I2C) Unit() core.UnitID { return c.unit }

func (c *I2C) Init() error { return c.r.reg.Push(c) }

func (c *I2C) Deinit() error {
	c.r.reg.Pop(c)
	return nil
}

// OnTransmit adds a callback for async write completion.
func (c *I2C) OnTransmit(fn func()) (func(), error) { return c.cbs.Add(fn) }

// ReadMem reads len(buf) bytes starting at register mem.
func (c *I2C) ReadMem(addr uint16, mem uint8, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	return c.bus.Tx(addr, []byte{mem}, buf)
}

// WriteMem writes data starting at register mem and blocks until done.
func (c *I2C) WriteMem(addr uint16, mem uint8, data []byte) error {
	if len(data) > MaxWrite {
		return errcode.InvalidParams
	}
	var w [MaxWrite + 1]byte
	w[0] = mem
	n := copy(w[1:], data)
	return c.bus.Tx(addr, w[:n+1], nil)
}

// WriteMemAsync starts an interrupt-completed write. data must stay
// untouched until the tx callback runs.
func (c *I2C) WriteMemAsync(addr uint16, mem uint8, data []byte) error {
	if c.async == nil {
		return errcode.Unsupported
	}
	if _, ok := c.r.reg.Find(c); !ok {
		return errcode.NotReady
	}
	return c.async.WriteMem(c.unit, addr, mem, data)
}
