//go:build !tinygo

package core

import "sync"

// Guard protects state shared between task context and interrupt callbacks.
// On the host, goroutines stand in for interrupts and a mutex is enough.
type Guard struct{ mu sync.Mutex }

func (g *Guard) Lock()   { g.mu.Lock() }
func (g *Guard) Unlock() { g.mu.Unlock() }
