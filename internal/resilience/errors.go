package resilience

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// Class is how a failed call should be treated.
type Class int

const (
	// Permanent failures are returned to the caller as-is.
	Permanent Class = iota
	// Transient failures are retried with backoff and count toward the breaker.
	Transient
	// Throttled failures are retried after the server's cool-down and never
	// count toward the breaker.
	Throttled
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Throttled:
		return "throttled"
	default:
		return "permanent"
	}
}

// TransientError marks a failure worth retrying, such as a 5xx response.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as transient. statusCode is 0 for transport errors.
func MarkTransient(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ThrottleError marks a rate-limit rejection. Wait is the server's suggested
// cool-down, zero when none was given.
type ThrottleError struct {
	Err  error
	Wait time.Duration
}

func (e *ThrottleError) Error() string { return e.Err.Error() }
func (e *ThrottleError) Unwrap() error { return e.Err }

// MarkThrottled wraps err as a throttle with the suggested wait.
func MarkThrottled(err error, wait time.Duration) *ThrottleError {
	return &ThrottleError{Err: err, Wait: wait}
}

// AsThrottle returns the ThrottleError in err's chain, if any.
func AsThrottle(err error) (*ThrottleError, bool) {
	var te *ThrottleError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Classify sorts err into a Class. Unmarked network failures (timeouts,
// resets, refused connections, truncated bodies) are transient.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}
	if _, ok := AsThrottle(err); ok {
		return Throttled
	}
	var te *TransientError
	if errors.As(err, &te) {
		return Transient
	}
	if isNetworkFailure(err) {
		return Transient
	}
	return Permanent
}

// Retryable reports whether err is transient or throttled.
func Retryable(err error) bool {
	return Classify(err) != Permanent
}

var networkMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"tls handshake timeout",
	"server closed idle connection",
}

func isNetworkFailure(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// http.Client flattens some transport errors into strings.
	msg := strings.ToLower(err.Error())
	for _, m := range networkMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
