// internal/solrpc/errors.go
package solrpc

import (
	"errors"
	"fmt"
)

var (
	// ErrProvidersExhausted is returned when the proxy reports that every
	// configured upstream provider failed.
	ErrProvidersExhausted = errors.New("all RPC providers exhausted")

	// ErrRateLimit is returned when the proxy rejects a call for exceeding
	// its rolling-window limit.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTimeout is returned when the proxy reports an upstream timeout.
	ErrTimeout = errors.New("request timeout")
)

// Class partitions every RPC failure into the closed set the retry policy
// switches over. Classification happens once, at this boundary; callers never
// match error strings themselves.
type Class int

const (
	// ClassTransient covers provider-side failures worth retrying as-is:
	// rate limits, timeouts, connection failures, internal node errors.
	ClassTransient Class = iota

	// ClassSimulationOnly covers preflight false negatives: errors that can
	// occur during simulation against momentarily stale state but would not
	// occur on a real submission.
	ClassSimulationOnly

	// ClassChainRejected covers errors the chain itself produced; a resend
	// of the same transaction will fail identically.
	ClassChainRejected

	// ClassAmbiguous covers "already processed" duplicate-submission
	// responses whose true outcome needs a status lookup to resolve.
	ClassAmbiguous
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassSimulationOnly:
		return "simulation-only"
	case ClassChainRejected:
		return "chain-rejected"
	case ClassAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Error is an RPC failure tagged with its retry class.
type Error struct {
	Class   Class
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s [%s]: %v", e.Method, e.Class, e.Err)
	}
	return fmt.Sprintf("rpc %s [%s] code %d: %s", e.Method, e.Class, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf extracts the error class; unclassified errors (network failures,
// context cancellation) are treated as transient.
func ClassOf(err error) Class {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Class
	}
	return ClassTransient
}
