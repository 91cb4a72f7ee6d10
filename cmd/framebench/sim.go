package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fastrand"

	"github.com/aradilov/multibuffer"
)

// snapshot is one frame of simulated draw data.
type snapshot struct {
	Seq     uint64
	Payload []uint64
	Sum     uint64
}

func payloadWord(seq uint64, i int) uint64 {
	return seq*0x9e3779b97f4a7c15 ^ uint64(i)
}

// fill writes frame seq into s using a fresh payload buffer.
// The buffer s held before is handed back through the overwrite hook.
func fill(s *snapshot, seq uint64, payload []uint64) {
	var sum uint64
	for i := range payload {
		w := payloadWord(seq, i)
		payload[i] = w
		sum += w
	}
	s.Payload = payload
	s.Sum = sum
	s.Seq = seq
}

// intact reports whether s is a whole frame from a single write.
func intact(s *snapshot) bool {
	var sum uint64
	for i, w := range s.Payload {
		if w != payloadWord(s.Seq, i) {
			return false
		}
		sum += w
	}
	return sum == s.Sum
}

// freeList recycles payload buffers. Only the producer goroutine touches it:
// gets happen inside Write, puts inside the overwrite hook which runs when
// the write handle is released.
type freeList struct {
	size      int
	bufs      [][]uint64
	allocated int
	recycled  int
}

func (f *freeList) get() []uint64 {
	if n := len(f.bufs); n > 0 {
		b := f.bufs[n-1]
		f.bufs = f.bufs[:n-1]
		return b
	}
	f.allocated++
	return make([]uint64, f.size)
}

func (f *freeList) put(b []uint64) {
	if b == nil {
		return
	}
	f.recycled++
	f.bufs = append(f.bufs, b)
}

// Result summarizes one framebench run.
type Result struct {
	Slots     int               `json:"slots"`
	Frames    int               `json:"frames"`
	Written   uint64            `json:"written"`
	Observed  uint64            `json:"observed"`
	Torn      uint64            `json:"torn"`
	Backwards uint64            `json:"backwards"`
	LastSeq   uint64            `json:"last_seq"`  //nolint:tagliatelle // snake_case for report file
	Allocated int               `json:"allocated"` // payload buffers ever allocated
	Recycled  int               `json:"recycled"`  // payload buffers returned by the overwrite hook
	Live      int               `json:"live"`      // payload buffers still in slots at teardown
	Stats     multibuffer.Stats `json:"stats"`
	Elapsed   Duration          `json:"elapsed"`
}

// Run drives one producer and one consumer through a buffer built from cfg
// until the producer has written cfg.Frames frames (or ctx is done) and the
// consumer has drained the last one.
func Run(ctx context.Context, cfg Config, log *slog.Logger) Result {
	buf := multibuffer.New[snapshot](cfg.Slots,
		multibuffer.WithReadTimeout(time.Duration(cfg.ReadTimeout)),
		multibuffer.WithName("framebench"),
	)

	free := &freeList{size: cfg.Payload}
	buf.OnOverwrite(func(stale snapshot) { free.put(stale.Payload) })

	res := Result{Slots: cfg.Slots, Frames: cfg.Frames}
	start := time.Now()

	var done atomic.Bool
	var written atomic.Uint64
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer done.Store(true)

		for seq := uint64(1); seq <= uint64(cfg.Frames); seq++ {
			if ctx.Err() != nil {
				log.Warn("producer interrupted", "seq", seq)
				return
			}
			buf.Write(func(s *snapshot) { fill(s, seq, free.get()) })
			written.Store(seq)
			pause(ctx, cfg.ProduceInterval, cfg.Jitter)
		}
	}()

	verify := func(s *snapshot) {
		res.Observed++
		if !intact(s) {
			res.Torn++
			log.Error("torn frame", "seq", s.Seq)
		}
		if s.Seq < res.LastSeq {
			res.Backwards++
			log.Error("frame went backwards", "seq", s.Seq, "last", res.LastSeq)
		}
		res.LastSeq = s.Seq
	}

	for {
		if buf.ReadContext(ctx, verify) {
			pause(ctx, cfg.ConsumeInterval, cfg.Jitter)
			continue
		}
		if done.Load() && !buf.HasPending() {
			break
		}
		log.Debug("consumer idle", "last_seq", res.LastSeq)
	}
	wg.Wait()

	// the producer may have published once more after the last check
	if buf.HasPending() {
		buf.Read(verify)
	}

	buf.ForEachSlot(func(_ int, s *snapshot) {
		if s.Payload != nil {
			res.Live++
		}
	})
	buf.Close()

	res.Written = written.Load()
	res.Allocated = free.allocated
	res.Recycled = free.recycled
	res.Stats = buf.Stats()
	res.Elapsed = Duration(time.Since(start))

	log.Info("run complete",
		"slots", res.Slots,
		"written", res.Written,
		"observed", res.Observed,
		"torn", res.Torn,
		"superseded", res.Stats.Superseded,
	)

	return res
}

// pause sleeps for base plus up to jitter, or until ctx is done.
func pause(ctx context.Context, base, jitter Duration) {
	d := time.Duration(base)
	if j := time.Duration(jitter); j > 0 {
		if j > time.Duration(^uint32(0)) {
			j = time.Duration(^uint32(0))
		}
		d += time.Duration(fastrand.Uint32n(uint32(j) + 1))
	}
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
