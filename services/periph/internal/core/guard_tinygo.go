//go:build tinygo

package core

import "runtime/interrupt"

// Guard protects state shared between task context and interrupt callbacks
// by masking interrupts for the duration of the section. Sections must stay
// short and must not call user code.
type Guard struct{ state interrupt.State }

func (g *Guard) Lock()   { g.state = interrupt.Disable() }
func (g *Guard) Unlock() { interrupt.Restore(g.state) }
