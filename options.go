package tissvalidator

import (
	"runtime"
	"time"
)

// Option configures the engine.
type Option func(*Options)

// Options holds all configuration for the engine.
type Options struct {
	// Streaming
	LargeFileThreshold int64
	WindowSize         int
	TailSize           int
	EnvelopeLimit      int
	FallbackEncoding   string

	// Reference lookups
	LookupConcurrency int

	// Clock returns "now"; rules compare dates against the end of its day
	Clock func() time.Time

	// Metrics collection
	CollectMetrics bool
}

// Default sizes.
const (
	DefaultLargeFileThreshold = 30 << 20
	DefaultWindowSize         = 2 << 20
	DefaultTailSize           = 2000
	DefaultEnvelopeLimit      = 1 << 20
	DefaultFallbackEncoding   = "ISO-8859-1"
)

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		LargeFileThreshold: DefaultLargeFileThreshold,
		WindowSize:         DefaultWindowSize,
		TailSize:           DefaultTailSize,
		EnvelopeLimit:      DefaultEnvelopeLimit,
		FallbackEncoding:   DefaultFallbackEncoding,
		LookupConcurrency:  runtime.NumCPU() * 4,
		Clock:              time.Now,
		CollectMetrics:     true,
	}
}

// Apply returns DefaultOptions with opts applied.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLargeFileThreshold sets the size above which inputs are streamed.
func WithLargeFileThreshold(bytes int64) Option {
	return func(o *Options) {
		if bytes > 0 {
			o.LargeFileThreshold = bytes
		}
	}
}

// WithWindowSize sets the byte window read per streaming step.
func WithWindowSize(bytes int) Option {
	return func(o *Options) {
		if bytes > 0 {
			o.WindowSize = bytes
		}
	}
}

// WithTailSize sets how much of the rolling buffer survives a trim.
func WithTailSize(chars int) Option {
	return func(o *Options) {
		if chars > 0 {
			o.TailSize = chars
		}
	}
}

// WithEnvelopeLimit caps the text kept outside guides in stream mode.
func WithEnvelopeLimit(chars int) Option {
	return func(o *Options) {
		if chars > 0 {
			o.EnvelopeLimit = chars
		}
	}
}

// WithFallbackEncoding sets the charset used when the prolog declares none.
func WithFallbackEncoding(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.FallbackEncoding = name
		}
	}
}

// WithLookupConcurrency bounds concurrent reference-table lookups per rule.
func WithLookupConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.LookupConcurrency = n
		}
	}
}

// WithClock overrides the clock used by date rules.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithMetrics enables or disables metric collection.
func WithMetrics(enable bool) Option {
	return func(o *Options) {
		o.CollectMetrics = enable
	}
}
