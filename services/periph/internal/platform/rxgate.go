package platform

import (
	"context"
	"sync"
)

// rxGate ties a blocking receive to the arm that started it. Stop bumps
// the generation, so a receive armed before it can neither start nor
// deliver.
type rxGate struct {
	mu     sync.Mutex
	gen    uint32
	cancel context.CancelFunc
}

type rxArm struct {
	buf []byte
	gen uint32
}

func (g *rxGate) arm(buf []byte) rxArm {
	g.mu.Lock()
	defer g.mu.Unlock()
	return rxArm{buf: buf, gen: g.gen}
}

// begin records the cancel func of the receive about to start. It fails
// when the arm went stale in the meantime.
func (g *rxGate) begin(a rxArm, cancel context.CancelFunc) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != a.gen {
		return false
	}
	g.cancel = cancel
	return true
}

// end reports whether the finished receive may be delivered.
func (g *rxGate) end(a rxArm) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel = nil
	return g.gen == a.gen
}

func (g *rxGate) stop() {
	g.mu.Lock()
	g.gen++
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.mu.Unlock()
}
