package multibuffer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// Basic sanity: sequential post/pump, callbacks run in FIFO order.
func TestCallbackQueueSequential(t *testing.T) {
	const (
		capacity = 1024
		N        = 10_000
	)

	q := NewCallbackQueue(capacity)
	var got []int

	for round := 0; round < N/capacity; round++ {
		for i := 0; i < capacity; i++ {
			v := round*capacity + i
			if !q.Post(func() { got = append(got, v) }) {
				t.Fatalf("post failed at %d (queue unexpectedly full)", v)
			}
		}
		if n := q.Pump(); n != capacity {
			t.Fatalf("pump ran %d callbacks, expected %d", n, capacity)
		}
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("expected %d, got %d (FIFO violated)", i, v)
		}
	}

	// Now queue must be empty
	if n := q.Pump(); n != 0 {
		t.Fatalf("expected empty queue at the end, pump ran %d", n)
	}
}

// Capacity/overflow test.
func TestCallbackQueueCapacityOverflow(t *testing.T) {
	const capacity = 8
	q := NewCallbackQueue(capacity)
	if q.Capacity() != capacity {
		t.Fatalf("expected capacity %d, got %d", capacity, q.Capacity())
	}

	for i := 0; i < capacity; i++ {
		if !q.Post(func() {}) {
			t.Fatalf("post failed at %d (queue unexpectedly full)", i)
		}
	}

	if q.Post(func() {}) {
		t.Fatalf("expected overflow (post should return false), but got true")
	}
	if q.Len() != capacity {
		t.Fatalf("expected %d queued callbacks, got %d", capacity, q.Len())
	}

	q.Pump()
	if !q.Post(func() {}) {
		t.Fatalf("post failed after pump")
	}
}

// Callbacks posted from inside a callback run in the same Pump.
func TestCallbackQueueRepostDuringPump(t *testing.T) {
	q := NewCallbackQueue(4)
	var ran []string

	q.Post(func() {
		ran = append(ran, "first")
		q.Post(func() { ran = append(ran, "second") })
	})

	if n := q.Pump(); n != 2 {
		t.Fatalf("pump ran %d callbacks, expected 2", n)
	}
	if len(ran) != 2 || ran[0] != "first" || ran[1] != "second" {
		t.Fatalf("unexpected run order %v", ran)
	}
}

func TestCallbackQueueBadCapacity(t *testing.T) {
	for _, c := range []uint64{0, 3, 6} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("capacity %d: expected panic", c)
				}
			}()
			NewCallbackQueue(c)
		}()
	}
}

// Concurrent test: one poster, one pumper.
// Checks that every callback runs exactly once, in posting order.
func TestCallbackQueueConcurrent(t *testing.T) {
	const (
		capacity = 1 << 4
		N        = 100_000
	)

	q := NewCallbackQueue(capacity)
	var got []int // touched only by the pumper
	var ran atomic.Int64

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ran.Load() < N {
			if q.Pump() == 0 {
				runtime.Gosched()
			}
		}
	}()

	for i := 0; i < N; i++ {
		v := i
		fn := func() {
			got = append(got, v)
			ran.Add(1)
		}
		for !q.Post(fn) {
			runtime.Gosched()
		}
	}
	wg.Wait()

	if len(got) != N {
		t.Fatalf("ran %d callbacks, expected %d", len(got), N)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected %d, got %d (FIFO violated)", i, v)
		}
	}
}

// Benchmark: single poster, single pumper.
func BenchmarkCallbackQueue_1P1C(b *testing.B) {
	const capacity = 1 << 16
	q := NewCallbackQueue(capacity)
	fn := func() {}

	done := make(chan struct{})

	go func() {
		for ran := 0; ran < b.N; {
			n := q.Pump()
			if n == 0 {
				runtime.Gosched()
			}
			ran += n
		}
		close(done)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for !q.Post(fn) {
			runtime.Gosched()
		}
	}
	<-done
	b.StopTimer()
}
