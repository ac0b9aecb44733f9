// Package apierror defines the single error type produced by the backend client.
//
// Every failure is classified purely by its status code: 0 is a connection failure,
// 408 is a timeout, and any other value is an HTTP error returned by the backend.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the failure class derived from an Error's status code.
type Kind string

const (
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindHTTP       Kind = "http"
)

// Status codes with a fixed meaning in the taxonomy.
const (
	StatusConnection = 0
	StatusTimeout    = http.StatusRequestTimeout
)

const errorName = "ApiError"

// now is swapped in tests.
var now = time.Now

// Error is a fully serializable description of a failed backend call.
type Error struct {
	StatusCode int
	Message    string
	Payload    any
	Timestamp  time.Time
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind(), e.StatusCode)
}

// Kind classifies the error by status code.
func (e *Error) Kind() Kind {
	return KindOf(e.StatusCode)
}

// KindOf maps a status code to its failure class.
func KindOf(status int) Kind {
	switch status {
	case StatusConnection:
		return KindConnection
	case StatusTimeout:
		return KindTimeout
	default:
		return KindHTTP
	}
}

func New(status int, message string, payload any) *Error {
	return &Error{StatusCode: status, Message: message, Payload: payload, Timestamp: now().UTC()}
}

// NewConnection reports a transport-level failure (DNS, refused, reset, bad body).
func NewConnection(message string) *Error {
	return New(StatusConnection, message, nil)
}

// NewTimeout reports a call cancelled by its deadline.
func NewTimeout(message string) *Error {
	return New(StatusTimeout, message, nil)
}

// NewHTTP reports a non-success response from the backend.
func NewHTTP(status int, message string, payload any) *Error {
	return New(status, message, payload)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// From returns err as an *Error, wrapping foreign errors as connection failures.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return NewConnection(err.Error())
}

type wireError struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{
		Name:      errorName,
		Kind:      e.Kind(),
		Status:    e.StatusCode,
		Message:   e.Message,
		Data:      e.Payload,
		Timestamp: e.Timestamp,
	})
}

// UnmarshalJSON accepts the shape written by MarshalJSON. The kind field is
// ignored since it is always recomputed from the status.
func (e *Error) UnmarshalJSON(b []byte) error {
	var w wireError
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Error{StatusCode: w.Status, Message: w.Message, Payload: w.Data, Timestamp: w.Timestamp}
	return nil
}
