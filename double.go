package multibuffer

// NewDouble creates a two-slot buffer.
// The producer and the consumer alternate between the two slots; a write
// that finds the reader still in the other slot rewrites its own unread
// output.
func NewDouble[T any](opts ...Option) *MultiBuffer[T] {
	return New[T](2, opts...)
}

// NewTriple creates a three-slot buffer.
// The producer always has a free slot that is neither being read nor
// holding the newest unread frame, so it never rewrites the frame the
// consumer is about to claim.
func NewTriple[T any](opts ...Option) *MultiBuffer[T] {
	return New[T](3, opts...)
}
