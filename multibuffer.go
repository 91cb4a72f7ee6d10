// Package multibuffer hands frame-sized values from one producer goroutine
// to one consumer goroutine through a fixed set of slots (double or triple
// buffering).
//
// The producer never blocks: it always finds a slot that is neither the one
// it wrote last nor the one the consumer read last. The consumer always
// receives the most recently completed write; older unread writes are
// dropped, never queued. No lock is held while either side touches a value.
//
//	buf := multibuffer.NewTriple[Snapshot]()
//
//	// producer
//	buf.Write(func(s *Snapshot) { s.Fill(frame) })
//
//	// consumer
//	if !buf.Read(func(s *Snapshot) { draw(s) }) {
//	    // nothing new this cycle, keep showing the last frame
//	}
package multibuffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const noIndex = -1

// MultiBuffer is a single-producer, single-consumer N-slot buffer.
//
// IMPORTANT: at most one write handle and at most one read handle may be
// outstanding at any time. Acquiring a second handle of the same role is a
// caller bug and panics with ErrContractViolation.
type MultiBuffer[T any] struct {
	mu          sync.Mutex // guards slot selection and claim bookkeeping
	slots       []bufferSlot[T]
	lastWrite   int
	lastRead    int
	nextLease   uint64
	writing     bool
	reading     bool
	closed      bool
	onOverwrite func(stale T)

	_       [64]byte
	pending atomic.Int64 // most recent completed, unclaimed write; noIndex when empty
	_       [64]byte

	// wake holds a token exactly while pending names a slot.
	// Both are changed under mu.
	wake chan struct{}

	readTimeout time.Duration
	name        string
	stats       counters
}

// New creates a buffer with n slots. n must be at least 2.
func New[T any](n int, opts ...Option) *MultiBuffer[T] {
	if n < 2 {
		panic(fmt.Errorf("%w: slot count %d, must be >= 2", ErrContractViolation, n))
	}

	o := buildOptions(opts)
	b := &MultiBuffer[T]{
		slots:       make([]bufferSlot[T], n),
		lastWrite:   noIndex,
		lastRead:    noIndex,
		wake:        make(chan struct{}, 1),
		readTimeout: o.readTimeout,
		name:        o.name,
	}
	for i := range b.slots {
		b.slots[i].index = i
		// one overwrite notification per write cycle, drained on release
		b.slots[i].deferred = NewCallbackQueue(2)
	}
	b.pending.Store(noIndex)

	return b
}

// Len returns the slot count.
func (b *MultiBuffer[T]) Len() int {
	return len(b.slots)
}

// OnOverwrite registers the single overwrite subscriber, replacing any
// previous one. nil unsubscribes.
//
// fn receives the value a write target held from an earlier cycle, read or
// not. It runs on the producer goroutine when that write handle is
// released, after which the buffer never references the stale value again.
func (b *MultiBuffer[T]) OnOverwrite(fn func(stale T)) {
	b.mu.Lock()
	b.onOverwrite = fn
	b.mu.Unlock()
}

// AcquireForWrite returns a handle to the next write slot. It never blocks.
//
// The slot is the lowest index that is neither the last written nor the
// last read slot. With two slots, after a read and a write landed on
// different slots, no such index exists; the last read slot is reused if
// the reader has released it, otherwise the unclaimed last write is
// withdrawn and rewritten.
//
// IMPORTANT: must be called from a single producer goroutine, and the
// previous write handle must be released first.
func (b *MultiBuffer[T]) AcquireForWrite() WriteHandle[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.violate(ErrClosed, "acquire for write")
	}
	if b.writing {
		b.violate(nil, "a write handle is already outstanding")
	}

	i := b.selectWriteSlot()
	s := &b.slots[i]

	if b.pending.CompareAndSwap(int64(i), noIndex) {
		// withdrawn before any reader claimed it
		select {
		case <-b.wake:
		default:
		}
		b.stats.superseded.Add(1)
		Logger().Debug("pending write withdrawn", "buffer", b.name, "slot", i)
	}

	if s.filled {
		b.stats.overwrites.Add(1)
		if hook := b.onOverwrite; hook != nil {
			stale := s.val
			if !s.deferred.Post(func() { hook(stale) }) {
				b.violate(nil, "deferred queue full")
			}
		}
		Logger().Debug("overwriting slot", "buffer", b.name, "slot", i)
	}

	s.state = StateWriting
	b.writing = true
	b.lastWrite = i

	return WriteHandle[T]{b: b, slot: s, lease: b.lease(s)}
}

func (b *MultiBuffer[T]) selectWriteSlot() int {
	for i := range b.slots {
		if i != b.lastRead && i != b.lastWrite {
			return i
		}
	}
	if b.slots[b.lastRead].state == StateAvailable {
		return b.lastRead
	}
	return b.lastWrite
}

func (b *MultiBuffer[T]) lease(s *bufferSlot[T]) uint64 {
	b.nextLease++
	s.lease.Store(b.nextLease)
	return b.nextLease
}

// AcquireForRead claims the most recently completed write.
// If none is ready it waits up to the read timeout, then tries once more.
// ok is false when there is still nothing to read; that is an ordinary
// outcome, not a failure.
//
// IMPORTANT: must be called from a single consumer goroutine, and the
// previous read handle must be released first.
func (b *MultiBuffer[T]) AcquireForRead() (h ReadHandle[T], ok bool) {
	return b.AcquireForReadContext(context.Background())
}

// AcquireForReadContext is AcquireForRead with the wait also ending when
// ctx is done. The single retry still happens after the wait.
func (b *MultiBuffer[T]) AcquireForReadContext(ctx context.Context) (h ReadHandle[T], ok bool) {
	if h, ok = b.claim(); ok {
		return h, true
	}

	timer := time.NewTimer(b.readTimeout)
	select {
	case <-b.wake:
	case <-timer.C:
	case <-ctx.Done():
	}
	timer.Stop()

	if h, ok = b.claim(); ok {
		return h, true
	}

	b.stats.readTimeouts.Add(1)
	Logger().Debug("no data to read", "buffer", b.name, "timeout", b.readTimeout)

	return ReadHandle[T]{}, false
}

func (b *MultiBuffer[T]) claim() (ReadHandle[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.violate(ErrClosed, "acquire for read")
	}
	if b.reading {
		b.violate(nil, "a read handle is already outstanding")
	}

	p := b.pending.Swap(noIndex)
	if p == noIndex {
		return ReadHandle[T]{}, false
	}
	select {
	case <-b.wake:
	default:
	}

	s := &b.slots[p]
	s.state = StateReading
	b.reading = true
	b.lastRead = int(p)
	b.stats.reads.Add(1)

	return ReadHandle[T]{b: b, slot: s, lease: b.lease(s)}, true
}

// HasPending reports whether a completed write is waiting to be read.
// Lock-free; the answer may be stale by the time the caller acts on it.
func (b *MultiBuffer[T]) HasPending() bool {
	return b.pending.Load() != noIndex
}

func (b *MultiBuffer[T]) release(s *bufferSlot[T], lease uint64, role SlotState) {
	b.mu.Lock()
	if s.lease.Load() != lease || s.state != role {
		// already released
		b.mu.Unlock()
		return
	}
	s.lease.Store(0)
	s.state = StateAvailable

	superseded := false
	if role == StateWriting {
		s.filled = true
		b.writing = false
		if old := b.pending.Swap(int64(s.index)); old != noIndex {
			superseded = true
		}
		select {
		case b.wake <- struct{}{}:
		default:
		}
	} else {
		b.reading = false
	}
	b.mu.Unlock()

	if role != StateWriting {
		return
	}

	b.stats.writes.Add(1)
	if superseded {
		b.stats.superseded.Add(1)
		Logger().Debug("unread write superseded", "buffer", b.name, "slot", s.index)
	}

	// Only the writer posts to a slot's queue, so only the writer drains
	// it; the notification has run by the time Release returns.
	s.deferred.Pump()
}

// Write acquires a write handle, passes its value to fn and releases the
// handle, also when fn panics.
func (b *MultiBuffer[T]) Write(fn func(v *T)) {
	h := b.AcquireForWrite()
	defer h.Release()
	fn(h.Value())
}

// Read claims the latest completed write, passes its value to fn and
// releases the handle, also when fn panics. Returns false when no data
// arrived within the read timeout; fn is not called then.
func (b *MultiBuffer[T]) Read(fn func(v *T)) bool {
	return b.ReadContext(context.Background(), fn)
}

// ReadContext is Read with the wait also ending when ctx is done.
func (b *MultiBuffer[T]) ReadContext(ctx context.Context, fn func(v *T)) bool {
	h, ok := b.AcquireForReadContext(ctx)
	if !ok {
		return false
	}
	defer h.Release()
	fn(h.Value())
	return true
}

// QuerySlotStates returns a snapshot of every slot's state, by index.
func (b *MultiBuffer[T]) QuerySlotStates() []SlotState {
	b.mu.Lock()
	defer b.mu.Unlock()

	states := make([]SlotState, len(b.slots))
	for i := range b.slots {
		states[i] = b.slots[i].state
	}
	return states
}

// ForEachSlot calls fn for every slot that holds a written value, in
// ascending index order. Every slot must be Available; fn must not call
// back into the buffer.
func (b *MultiBuffer[T]) ForEachSlot(fn func(index int, value *T)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.violate(ErrClosed, "for each slot")
	}
	if b.writing || b.reading {
		b.violate(nil, "for each slot with an outstanding handle")
	}

	for i := range b.slots {
		if b.slots[i].filled {
			fn(i, &b.slots[i].val)
		}
	}
}

// Close tears the buffer down. Both participants must have stopped and
// released their handles. Any later acquisition panics. Idempotent.
func (b *MultiBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.writing || b.reading {
		b.violate(nil, "close with an outstanding handle")
	}
	b.closed = true
	b.pending.Store(noIndex)
	select {
	case <-b.wake:
	default:
	}
}

// violate reports a caller bug. It never returns.
func (b *MultiBuffer[T]) violate(cause error, msg string) {
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %w: %s", ErrContractViolation, cause, msg)
	} else {
		err = fmt.Errorf("%w: %s", ErrContractViolation, msg)
	}
	Logger().Error("contract violation", "buffer", b.name, "err", err)
	panic(err)
}
