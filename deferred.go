package multibuffer

import "sync/atomic"

// CallbackQueue is a small bounded ring of deferred callbacks owned by one
// slot. Callbacks are queued by Post and run, oldest first, by Pump.
//
// IMPORTANT: one goroutine may Post and one goroutine may Pump at a time.
// A buffer slot posts and pumps from the producer only: the overwrite
// notification is queued when the slot is chosen for a write and run when
// that write handle is released.
type CallbackQueue struct {
	fns  []func()
	mask uint64
	head atomic.Uint64 // next callback to run, advanced by the pumper
	tail atomic.Uint64 // next free position, advanced by the poster
}

// NewCallbackQueue creates a queue holding up to capacity callbacks.
// Capacity must be a power of two (1<<k).
func NewCallbackQueue(capacity uint64) *CallbackQueue {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be power of 2 and > 0")
	}

	return &CallbackQueue{
		fns:  make([]func(), capacity),
		mask: capacity - 1,
	}
}

// Post queues fn to run on the next Pump.
// Returns false if the queue is full.
func (q *CallbackQueue) Post(fn func()) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() > q.mask {
		return false
	}

	q.fns[tail&q.mask] = fn
	// the store publishes fn to the pumper
	q.tail.Store(tail + 1)
	return true
}

// Pump runs every queued callback, oldest first, on the calling goroutine.
// A callback posted by a running callback runs in the same call.
// Returns the number of callbacks run.
func (q *CallbackQueue) Pump() int {
	n := 0
	for {
		head := q.head.Load()
		if head == q.tail.Load() {
			return n
		}

		fn := q.fns[head&q.mask]
		q.fns[head&q.mask] = nil
		// free the position before running fn so fn may post again
		q.head.Store(head + 1)

		if fn != nil {
			fn()
		}
		n++
	}
}

// Len returns the number of callbacks waiting to run.
func (q *CallbackQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Capacity returns the fixed queue capacity.
func (q *CallbackQueue) Capacity() uint64 {
	return q.mask + 1
}
