// SPDX-License-Identifier: Apache-2.0
// Package resilience runs blocking units of work off the caller's goroutine
// with optional time bounds. Nothing here retries.
package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/a2apipe/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero means no
	// bound beyond the caller's context.
	Duration time.Duration
}

// Offload runs fn on its own goroutine and waits for its result or for ctx
// to end, whichever comes first. fn receives ctx and should honour it; a
// goroutine that ignores cancellation finishes in the background and its
// result is dropped.
func Offload[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, contextError(ctx)
	case res := <-done:
		return res.value, res.err
	}
}

// WithTimeout executes fn through Offload with a timeout boundary.
// Returns errors.CodeTimeout if the deadline is exceeded.
func WithTimeout[T any](ctx context.Context, config TimeoutConfig, fn func(context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return Offload(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	value, err := Offload(ctx, fn)
	if errors.Is(err, errors.CodeTimeout) {
		if pe := errors.AsPipeError(err); pe != nil {
			pe.WithContext("timeout", config.Duration.String())
		}
	}
	return value, err
}

func contextError(ctx context.Context) error {
	err := ctx.Err()
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "operation exceeded timeout", err)
	}
	return errors.New(errors.CodeInternal, "operation canceled", err)
}
