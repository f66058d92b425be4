package critique

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why the completion service could not produce a critique.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindUnavailable ErrorKind = "unavailable"
	KindAuth        ErrorKind = "auth"
	KindRejected    ErrorKind = "rejected"
	KindTimeout     ErrorKind = "timeout"
	KindCanceled    ErrorKind = "canceled"
	KindUnparseable ErrorKind = "unparseable"
)

// ServiceError is the only error type Critique returns.
type ServiceError struct {
	Kind ErrorKind
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("completion service: %s", e.Kind)
	}
	return fmt.Sprintf("completion service: %s: %v", e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Transient reports whether a retry may succeed.
func (e *ServiceError) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindUnavailable
}

// KindOf returns the kind of err, or "" when err is not a *ServiceError.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// kindForStatus maps an HTTP status from a provider to an error kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return KindUnavailable
	default:
		return KindRejected
	}
}

// classify turns any error into a *ServiceError. An expired deadline always
// wins because providers report it in different shapes.
func classify(ctx context.Context, err error) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ServiceError{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &ServiceError{Kind: KindCanceled, Err: err}
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{Kind: KindNetwork, Err: err}
}
