package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/la5nta/memorymap/backend"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
)

// ErrTimeout is wrapped by a RemoteError when a backend request does not
// complete within the configured remote timeout.
var ErrTimeout = errors.New("request timed out")

var ErrNotLoggedIn = errors.New("not logged in")

// ValidationError is a user input error. Nothing was sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RemoteError is a failed backend operation.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is the result of the user dismissing a
// dialog. It is a normal outcome, not a failure.
func IsCancelled(err error) bool { return errors.Is(err, dialog.ErrCancelled) }

// remote runs fn with the configured remote timeout.
//
// If the timeout expires first, ErrTimeout is returned and whatever fn
// eventually returns is dropped.
func remote[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
				r.err = ErrTimeout
			}
			return zero, &RemoteError{Op: op, Err: r.err}
		}
		return r.v, nil
	case <-ctx.Done():
		err := ctx.Err()
		if err == context.DeadlineExceeded {
			debug.Printf("%s: timed out after %s", op, timeout)
			err = ErrTimeout
		}
		return zero, &RemoteError{Op: op, Err: err}
	}
}

// exec is remote for operations without a result.
func exec(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	_, err := remote(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// userMessage returns the message shown to the user for err.
func userMessage(err error) string {
	var (
		ve *ValidationError
		be *backend.Error
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrTimeout):
		return "The server did not respond in time. Please try again."
	case errors.As(err, &be) && be.Message != "":
		return be.Message
	case errors.Is(err, ErrNotLoggedIn):
		return "Please log in first."
	default:
		return err.Error()
	}
}
