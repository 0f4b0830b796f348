// Package results provides a Success/Failure outcome type for operations
// whose failures are expected and user-facing rather than programmer errors.
// Remote API rejections, malformed responses and misconfiguration travel as
// data through this type; only transport plumbing uses plain errors.
package results

import (
	"fmt"
	"strings"
)

// Result is either a successful value or a list of failure messages.
// The zero value is a failure with no messages; construct results through
// Success and Failed.
type Result[T any] struct {
	value  T
	errors []string
	ok     bool
}

// Success wraps a value in a successful result.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Failed builds a failure carrying the given messages.
func Failed[T any](messages ...string) Result[T] {
	return Result[T]{errors: messages}
}

// Failedf builds a failure from a single formatted message.
func Failedf[T any](format string, args ...any) Result[T] {
	return Result[T]{errors: []string{fmt.Sprintf(format, args...)}}
}

// Relay converts a failure of one value type into a failure of another,
// preserving its messages. It must only be called on failed results.
func Relay[U, T any](r Result[T]) Result[U] {
	return Result[U]{errors: r.Errors()}
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool { return r.ok }

// Value returns the successful value, or the zero value for failures.
func (r Result[T]) Value() T { return r.value }

// Errors returns the failure messages, nil for successes.
func (r Result[T]) Errors() []string {
	if r.ok {
		return nil
	}
	if len(r.errors) == 0 {
		return []string{"unknown failure"}
	}
	return r.errors
}

// ErrorString returns the failure messages joined into one line.
func (r Result[T]) ErrorString() string {
	return strings.Join(r.Errors(), "; ")
}
