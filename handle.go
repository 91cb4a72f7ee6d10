package multibuffer

import "fmt"

// WriteHandle grants exclusive access to one slot for writing.
// Handles are only created by AcquireForWrite; the zero value is inert.
//
// Release publishes the slot as the next one to read. Use
// `defer h.Release()` so it runs on every exit path.
type WriteHandle[T any] struct {
	b     *MultiBuffer[T]
	slot  *bufferSlot[T]
	lease uint64
}

// Value returns the slot's value for in-place mutation. It still holds
// whatever the slot held from an earlier cycle.
// Panics once the handle has been released.
func (h WriteHandle[T]) Value() *T {
	return value(h.b, h.slot, h.lease)
}

// Index returns the slot index.
func (h WriteHandle[T]) Index() int {
	if h.slot == nil {
		return noIndex
	}
	return h.slot.index
}

// Release ends the write and publishes the slot. Releasing the same
// handle again, or any copy of it, does nothing.
func (h WriteHandle[T]) Release() {
	if h.b == nil {
		return
	}
	h.b.release(h.slot, h.lease, StateWriting)
}

// ReadHandle grants exclusive access to one slot for reading.
// Handles are only created by AcquireForRead; the zero value is inert.
type ReadHandle[T any] struct {
	b     *MultiBuffer[T]
	slot  *bufferSlot[T]
	lease uint64
}

// Value returns the claimed value.
// Panics once the handle has been released.
func (h ReadHandle[T]) Value() *T {
	return value(h.b, h.slot, h.lease)
}

// Index returns the slot index.
func (h ReadHandle[T]) Index() int {
	if h.slot == nil {
		return noIndex
	}
	return h.slot.index
}

// Release returns the slot to Available. Idempotent.
func (h ReadHandle[T]) Release() {
	if h.b == nil {
		return
	}
	h.b.release(h.slot, h.lease, StateReading)
}

func value[T any](b *MultiBuffer[T], s *bufferSlot[T], lease uint64) *T {
	if b == nil {
		panic(fmt.Errorf("%w: value of a zero handle", ErrContractViolation))
	}
	if s.lease.Load() != lease {
		b.violate(nil, "value of a released handle")
	}
	return &s.val
}
