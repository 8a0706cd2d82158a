package dispatch

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Submit when the dispatch queue is at
// capacity. The caller drops the utterance; dispatch never blocks the
// transcription path.
var ErrQueueFull = errors.New("dispatch queue full")

// ErrorKind classifies LLM dispatch failures for the UI error events.
type ErrorKind int

const (
	// KindRateLimited means the provider throttled the request.
	KindRateLimited ErrorKind = iota
	// KindUnauthorized means the API key was rejected.
	KindUnauthorized
	// KindNetworkUnavailable means the provider could not be reached.
	KindNetworkUnavailable
	// KindMalformedResponse means the provider answered with an
	// unusable body.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is a classified dispatch failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch: %s", e.Kind)
	}
	return fmt.Sprintf("dispatch: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to
// KindNetworkUnavailable for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetworkUnavailable
}
