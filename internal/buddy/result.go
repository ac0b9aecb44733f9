package buddy

import "github.com/aman-zulfiqar/sql-query-buddy/internal/apierror"

// Result is the uniform outcome of a domain operation: either Success with
// Data, or a failure with Error and Details. Build it with OK or Fail.
type Result[T any] struct {
	Success bool            `json:"success"`
	Data    *T              `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details *apierror.Error `json:"details,omitempty"`
}

func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: &data}
}

// Fail wraps err, which must not be nil.
func Fail[T any](err *apierror.Error) Result[T] {
	msg := err.Message
	if msg == "" {
		msg = err.Error()
	}
	return Result[T]{Success: false, Error: msg, Details: err}
}
