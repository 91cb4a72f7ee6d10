package multibuffer

import "sync/atomic"

// SlotState is the ownership tag of one buffer slot.
//
// A slot cycles Available → Writing → Available → Reading → Available.
// Writing → Reading directly is never allowed: a completed write always
// returns the slot to Available before a reader may claim it.
type SlotState uint32

const (
	StateAvailable SlotState = iota
	StateWriting
	StateReading
)

func (s SlotState) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateWriting:
		return "writing"
	case StateReading:
		return "reading"
	}
	return "unknown"
}

// bufferSlot is one fixed storage cell of a MultiBuffer.
// state, filled and val are guarded by the owning buffer's mutex during
// selection and claim; val is owned by the outstanding handle otherwise.
type bufferSlot[T any] struct {
	index    int
	state    SlotState
	filled   bool          // holds a value from an earlier write cycle
	lease    atomic.Uint64 // token of the outstanding handle, 0 = none
	deferred *CallbackQueue
	val      T
}
