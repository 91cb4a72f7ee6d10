package multibuffer

import "errors"

// Sentinel errors carried by multibuffer panics.
//
// Contract violations are caller bugs. They are reported by panicking with
// an error that wraps ErrContractViolation, never by returning it:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        err, _ := r.(error)
//	        if errors.Is(err, multibuffer.ErrContractViolation) { ... }
//	    }
//	}()
var (
	// ErrContractViolation indicates concurrent same-role acquisition,
	// bulk inspection while a handle is outstanding, use of a released
	// handle, or use after Close.
	//
	// This is a programming error.
	ErrContractViolation = errors.New("multibuffer: contract violation")

	// ErrClosed indicates the buffer has already been closed.
	// Always wrapped together with ErrContractViolation.
	ErrClosed = errors.New("multibuffer: closed")
)
