package transport

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"

	"github.com/mozilla-ai/mcporch/internal/errors"
)

// Await runs fn in its own goroutine and returns as soon as either fn finishes or ctx is done.
// When ctx wins the call is abandoned: fn keeps running until it notices cancellation,
// but the caller is not held up by a transport that ignores it.
func Await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case o := <-done:
		return o.value, o.err
	}
}

// Classify maps low level failures onto the transport error taxonomy.
// Deadlines become errors.ErrInvocationTimeout, cancellation is passed through,
// and anything that is not already classified becomes errors.ErrTransport.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case stdErrors.Is(err, errors.ErrInvocationTimeout),
		stdErrors.Is(err, errors.ErrTransport),
		stdErrors.Is(err, errors.ErrResourceNotFound),
		stdErrors.Is(err, errors.ErrBadRequest),
		stdErrors.Is(err, errors.ErrConfiguration):
		return err
	case stdErrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errors.ErrInvocationTimeout, err)
	case stdErrors.Is(err, context.Canceled):
		return err
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", errors.ErrInvocationTimeout, err)
	}

	return fmt.Errorf("%w: %w", errors.ErrTransport, err)
}

// Run is Await followed by Classify.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := Await(ctx, fn)
	if err != nil {
		var zero T
		return zero, Classify(err)
	}
	return v, nil
}
