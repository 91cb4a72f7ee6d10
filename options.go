package multibuffer

import "time"

// DefaultReadTimeout bounds how long AcquireForRead waits for a completed write.
const DefaultReadTimeout = 100 * time.Millisecond

type options struct {
	readTimeout time.Duration
	name        string
}

// Option configures a MultiBuffer at construction.
type Option func(*options)

// WithReadTimeout sets the bounded wait of AcquireForRead.
// Non-positive values keep DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithName labels the buffer in log records.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func buildOptions(opts []Option) options {
	o := options{readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
