package core

import "periph-go/errcode"

// Registry is a fixed-capacity table of unique live entries. The zero value
// of T marks an empty slot. Capacity never changes after construction and no
// operation allocates, so scans are safe from interrupt callbacks.
type Registry[T comparable] struct {
	g     Guard
	slots []T
}

// NewRegistry allocates a registry with n slots (n < 1 is treated as 1).
func NewRegistry[T comparable](n int) *Registry[T] {
	if n < 1 {
		n = 1
	}
	return &Registry[T]{slots: make([]T, n)}
}

func (r *Registry[T]) find(it T) int {
	for i := range r.slots {
		if r.slots[i] == it {
			return i
		}
	}
	return -1
}

// Push inserts it into the first empty slot. Pushing an entry that is
// already present is a no-op. When every slot is taken nothing is stored
// and errcode.RegistryFull is returned.
func (r *Registry[T]) Push(it T) error {
	var empty T
	if it == empty {
		return nil
	}
	r.g.Lock()
	defer r.g.Unlock()
	if r.find(it) >= 0 {
		return nil
	}
	i := r.find(empty)
	if i < 0 {
		return errcode.RegistryFull
	}
	r.slots[i] = it
	return nil
}

// Pop clears every slot holding it.
func (r *Registry[T]) Pop(it T) {
	var empty T
	if it == empty {
		return
	}
	r.g.Lock()
	for i := range r.slots {
		if r.slots[i] == it {
			r.slots[i] = empty
		}
	}
	r.g.Unlock()
}

// Find returns the slot index holding it.
func (r *Registry[T]) Find(it T) (int, bool) {
	r.g.Lock()
	defer r.g.Unlock()
	i := r.find(it)
	return i, i >= 0
}

func (r *Registry[T]) IsEmpty() bool { return r.Len() == 0 }

// Len counts live entries.
func (r *Registry[T]) Len() int {
	var empty T
	n := 0
	r.g.Lock()
	for i := range r.slots {
		if r.slots[i] != empty {
			n++
		}
	}
	r.g.Unlock()
	return n
}

func (r *Registry[T]) at(i int) T {
	r.g.Lock()
	v := r.slots[i]
	r.g.Unlock()
	return v
}

// Each calls fn for live entries in slot order until fn returns false.
// The guard is not held while fn runs, so fn may Push or Pop.
func (r *Registry[T]) Each(fn func(T) bool) {
	var empty T
	for i := range r.slots {
		v := r.at(i)
		if v == empty {
			continue
		}
		if !fn(v) {
			return
		}
	}
}

// First returns the first live entry, in slot order, accepted by match.
func (r *Registry[T]) First(match func(T) bool) (T, bool) {
	var empty T
	for i := range r.slots {
		v := r.at(i)
		if v != empty && match(v) {
			return v, true
		}
	}
	return empty, false
}
