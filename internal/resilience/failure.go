package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a downstream call did not produce a usable answer.
type Kind int

const (
	KindNone Kind = iota
	KindTimeout
	KindUnavailable
	KindMalformed
	KindCircuitOpen
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	case KindCircuitOpen:
		return "circuit_open"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Breaker.Acquire while calls must fail fast.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Failure is the error value every policy-wrapped call fails with.
type Failure struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Malformed marks a response that arrived but failed validation. It is never retried.
func Malformed(format string, args ...any) *Failure {
	return &Failure{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// StatusFailure maps a non-2xx HTTP status. Only 5xx and 429 are worth retrying.
func StatusFailure(status int) *Failure {
	return &Failure{
		Kind:      KindUnavailable,
		Retryable: status >= 500 || status == 429,
		Err:       fmt.Errorf("upstream returned HTTP %d", status),
	}
}

// Classify turns any call error into a Failure.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	if errors.Is(err, ErrCircuitOpen) {
		return &Failure{Kind: KindCircuitOpen, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Retryable: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindCanceled, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: KindTimeout, Retryable: true, Err: err}
	}

	// Connection refused, reset, DNS and similar transport errors.
	return &Failure{Kind: KindUnavailable, Retryable: true, Err: err}
}
