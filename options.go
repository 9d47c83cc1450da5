// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

// transposeOptions holds configuration resolved from a slice of
// TransposeOption, following the same functional-options shape as the
// teacher's LoopOption (go-eventloop's options.go): an unexported struct, a
// small interface, and a resolve function that skips nils and stops on the
// first error.
type transposeOptions struct {
	logger          Logger
	channelCount    int
	debugAssertions bool
	seed            uint64
}

// TransposeOption configures a Transpose instance at construction time.
type TransposeOption interface {
	applyTranspose(*transposeOptions) error
}

type transposeOptionFunc func(*transposeOptions) error

func (f transposeOptionFunc) applyTranspose(opts *transposeOptions) error { return f(opts) }

// WithLogger sets the structured logger used for saturation, rollback, and
// waker diagnostics. The zero value logs nothing.
func WithLogger(logger Logger) TransposeOption {
	return transposeOptionFunc(func(opts *transposeOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithChannelCount sets the number of concurrent poll channels this
// Transpose declares via its own max_channel(). Defaults to 1.
func WithChannelCount(n int) TransposeOption {
	return transposeOptionFunc(func(opts *transposeOptions) error {
		opts.channelCount = maxOrdered(n, 1)
		return nil
	})
}

// WithDebugAssertions toggles the step-chain saturation-invariant panics
// (exactly one Saturating step, strictly increasing step times, and
// similar structural checks). Defaults to true; production embedders that
// trust their own call discipline may disable them.
func WithDebugAssertions(enabled bool) TransposeOption {
	return transposeOptionFunc(func(opts *transposeOptions) error {
		opts.debugAssertions = enabled
		return nil
	})
}

// WithSeed sets the deterministic RNG seed the root snapshot's schedule
// starts from. Defaults to a fixed constant so two Transpose instances
// built with the same transposer and the same input event sequence, but no
// explicit seed, still reproduce identical Rand() draws.
func WithSeed(seed uint64) TransposeOption {
	return transposeOptionFunc(func(opts *transposeOptions) error {
		opts.seed = seed
		return nil
	})
}

// resolveTransposeOptions applies opts in order, skipping nils, and returns
// the first error encountered.
func resolveTransposeOptions(opts []TransposeOption) (*transposeOptions, error) {
	cfg := &transposeOptions{
		// nil Logger is valid: every logiface.Logger method is documented
		// safe-on-nil-receiver, and Level() reports LevelDisabled.
		logger:          nil,
		channelCount:    1,
		debugAssertions: true,
		seed:            0x2545f4914f6cdd1d,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTranspose(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
