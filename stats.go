package multibuffer

import "sync/atomic"

type counters struct {
	writes       atomic.Uint64
	reads        atomic.Uint64
	readTimeouts atomic.Uint64
	overwrites   atomic.Uint64
	superseded   atomic.Uint64
}

// Stats is a snapshot of buffer activity.
type Stats struct {
	// Writes counts completed (released) write handles.
	Writes uint64
	// Reads counts successful read claims.
	Reads uint64
	// ReadTimeouts counts AcquireForRead calls that returned no data.
	ReadTimeouts uint64
	// Overwrites counts write targets that already held a value.
	Overwrites uint64
	// Superseded counts completed writes replaced as "next to read"
	// before any reader claimed them.
	Superseded uint64
}

// Stats retrieves the current counters. Safe for concurrent use.
func (b *MultiBuffer[T]) Stats() Stats {
	return Stats{
		Writes:       b.stats.writes.Load(),
		Reads:        b.stats.reads.Load(),
		ReadTimeouts: b.stats.readTimeouts.Load(),
		Overwrites:   b.stats.overwrites.Load(),
		Superseded:   b.stats.superseded.Load(),
	}
}
