// Package exti routes the shared external-interrupt vector to edge watchers.
package exti

import (
	"sync/atomic"
	"time"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
	"periph-go/x/timex"
)

const (
	// Capacity of the watcher registry.
	Capacity = 16
	// DefaultDebounce applies when a watcher is created with zero debounce.
	DefaultDebounce = 250 * time.Millisecond
)

// Lines arms and disarms edge detection for a set of pins. It is the
// transport side of the dispatcher; Notify is its inbound call.
type Lines interface {
	Enable(mask uint32) error
	Disable(mask uint32) error
}

// Dispatcher owns the process-wide debounce state for one shared edge
// vector. Create it once at startup and hand it to every Watcher.
type Dispatcher struct {
	reg   *core.Registry[*Watcher]
	clock timex.Clock
	ready func() bool
	lines Lines

	g        core.Guard
	prevMask uint32
	prevTime time.Duration
	fired    bool

	ignored    atomic.Uint32
	suppressed atomic.Uint32
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReady installs the "runtime is running" probe. Deliveries made while it
// reports false are ignored entirely.
func WithReady(fn func() bool) Option { return func(d *Dispatcher) { d.ready = fn } }

// WithLines attaches the pin transport enabled by Watcher.Init.
func WithLines(l Lines) Option { return func(d *Dispatcher) { d.lines = l } }

func NewDispatcher(clock timex.Clock, opts ...Option) *Dispatcher {
	if clock == nil {
		clock = timex.NewMonotonic()
	}
	d := &Dispatcher{
		reg:   core.NewRegistry[*Watcher](Capacity),
		clock: clock,
		ready: func() bool { return true },
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Notify is called from the edge interrupt with the mask of lines that fired.
// Watchers whose mask intersects are tried in slot order and the first one
// outside its own debounce window is served. A repeat of the previous mask
// inside a watcher's window, measured from the last dispatched edge, skips
// that watcher. The delivery counts as a bounce only when every
// intersecting watcher skipped it.
func (d *Dispatcher) Notify(mask uint32) {
	if !d.ready() {
		d.ignored.Add(1)
		return
	}
	now := d.clock.Now()

	d.g.Lock()
	prevMask, prevTime, fired := d.prevMask, d.prevTime, d.fired
	d.prevMask = mask
	d.g.Unlock()

	repeat := fired && mask == prevMask
	var served *Watcher
	matched := false
	d.reg.Each(func(w *Watcher) bool {
		if w.mask&mask == 0 {
			return true
		}
		matched = true
		if repeat && now-prevTime <= w.debounce {
			return true
		}
		served = w
		return false
	})
	if served == nil {
		if matched {
			d.suppressed.Add(1)
		}
		return
	}

	d.g.Lock()
	d.prevTime = now
	d.fired = true
	d.g.Unlock()

	served.count.Add(1)
	if served.fn != nil {
		served.fn()
	}
}

// Suppressed counts deliveries dropped as bounces.
func (d *Dispatcher) Suppressed() uint32 { return d.suppressed.Load() }

// Ignored counts deliveries that arrived before the runtime was ready.
func (d *Dispatcher) Ignored() uint32 { return d.ignored.Load() }

// Watchers reports the number of registered watchers.
func (d *Dispatcher) Watchers() int { return d.reg.Len() }

// Watcher is one edge source. Its pointer is its identity.
type Watcher struct {
	d        *Dispatcher
	mask     uint32
	fn       func()
	debounce time.Duration
	count    atomic.Uint32
}

// NewWatcher describes a watcher for the lines in mask. fn runs in interrupt
// context and must not block.
func NewWatcher(d *Dispatcher, mask uint32, debounce time.Duration, fn func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{d: d, mask: mask, fn: fn, debounce: debounce}
}

// Init registers the watcher and enables its lines.
func (w *Watcher) Init() error {
	if w.mask == 0 {
		return errcode.InvalidParams
	}
	if err := w.d.reg.Push(w); err != nil {
		return err
	}
	if w.d.lines != nil {
		if err := w.d.lines.Enable(w.mask); err != nil {
			w.d.reg.Pop(w)
			return err
		}
	}
	return nil
}

// Deinit disables the lines, then removes the watcher.
func (w *Watcher) Deinit() error {
	var err error
	if w.d.lines != nil {
		err = w.d.lines.Disable(w.mask)
	}
	w.d.reg.Pop(w)
	return err
}

func (w *Watcher) Mask() uint32            { return w.mask }
func (w *Watcher) Debounce() time.Duration { return w.debounce }
func (w *Watcher) Count() uint32           { return w.count.Load() }
