// Package shmring is a single-producer, single-consumer byte ring that an
// interrupt callback can fill without allocating or blocking.
package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	dropped atomic.Uint32 // bytes refused because the ring was full
}

// New allocates a ring; size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space is the number of bytes the producer can write without loss.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Available is the number of bytes the consumer can read.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Dropped reports bytes refused by TryWriteFrom since creation.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// TryWriteFrom copies as much of src as fits and never blocks.
// Bytes that do not fit are counted as dropped.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	space := int(r.size() - (wr - rd))
	if space > len(src) {
		space = len(src)
	}
	n = space
	if short := len(src) - n; short > 0 {
		r.dropped.Add(uint32(short))
	}
	if n == 0 {
		return 0
	}

	wrIdx := wr & r.mask
	first := int(r.size() - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release
	return n
}

// TryReadInto copies up to len(dst) available bytes and never blocks.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	rdIdx := rd & r.mask
	first := int(r.size() - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}
