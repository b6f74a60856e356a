package core

// CallbackListSize bounds every per-object callback list.
const CallbackListSize = 16

type callback[F any] struct{ fn F }

// Callbacks is a bounded list of user callbacks. Functions are not
// comparable in Go, so each Add gets its own handle and the returned cancel
// func removes exactly that registration.
type Callbacks[F any] struct {
	reg *Registry[*callback[F]]
}

func NewCallbacks[F any]() *Callbacks[F] {
	return &Callbacks[F]{reg: NewRegistry[*callback[F]](CallbackListSize)}
}

// Add registers fn. It must be called from task context (it allocates).
func (c *Callbacks[F]) Add(fn F) (cancel func(), err error) {
	h := &callback[F]{fn: fn}
	if err := c.reg.Push(h); err != nil {
		return func() {}, err
	}
	return func() { c.reg.Pop(h) }, nil
}

// Each runs call for every registered callback, in registration slot order.
func (c *Callbacks[F]) Each(call func(F)) {
	c.reg.Each(func(h *callback[F]) bool {
		call(h.fn)
		return true
	})
}

func (c *Callbacks[F]) IsEmpty() bool { return c.reg.IsEmpty() }
func (c *Callbacks[F]) Len() int      { return c.reg.Len() }
