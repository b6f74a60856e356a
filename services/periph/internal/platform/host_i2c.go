//go:build !rp2040

package platform

import (
	"sync"

	"tinygo.org/x/drivers"

	"periph-go/errcode"
)

// HostI2C implements tinygo drivers.I2C over per-address register files.
// The first written byte selects the register; further written bytes and
// all read bytes auto-increment it.
type HostI2C struct {
	mu     sync.Mutex
	devs   map[uint16]*[256]byte
	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

var _ drivers.I2C = (*HostI2C)(nil)

func NewHostI2C() *HostI2C { return &HostI2C{devs: map[uint16]*[256]byte{}} }

// AddDevice makes addr respond; absent addresses NACK.
func (h *HostI2C) AddDevice(addr uint16) {
	h.mu.Lock()
	if _, ok := h.devs[addr]; !ok {
		h.devs[addr] = &[256]byte{}
	}
	h.mu.Unlock()
}

// Poke sets a register without a bus transaction.
func (h *HostI2C) Poke(addr uint16, reg uint8, v ...byte) {
	h.AddDevice(addr)
	h.mu.Lock()
	d := h.devs[addr]
	for _, b := range v {
		d[reg] = b
		reg++
	}
	h.mu.Unlock()
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)

	d, ok := h.devs[addr]
	if !ok {
		return errcode.Error
	}
	if len(w) == 0 {
		return errcode.InvalidParams
	}
	reg := w[0]
	for _, b := range w[1:] {
		d[reg] = b
		reg++
	}
	for i := range r {
		r[i] = d[reg]
		reg++
	}
	return nil
}
