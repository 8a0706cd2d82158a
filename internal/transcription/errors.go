package transcription

import (
	"errors"
	"fmt"
)

// Kind classifies transcription failures so the pipeline can decide
// between surfacing an error event and silently discarding a segment.
type Kind int

const (
	// KindNetworkUnavailable means the engine could not be reached.
	KindNetworkUnavailable Kind = iota
	// KindModelLoadFailed means the engine was reached but could not
	// serve inference.
	KindModelLoadFailed
	// KindUnauthorized means the cloud engine rejected the credentials.
	KindUnauthorized
	// KindEmpty means transcription succeeded but produced no usable
	// text. Not an error condition for the pipeline.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindModelLoadFailed:
		return "model_load_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Error is a classified transcription failure.
type Error struct {
	Kind   Kind
	Engine string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcription (%s): %s", e.Engine, e.Kind)
	}
	return fmt.Sprintf("transcription (%s): %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or KindNetworkUnavailable
// when err is not a classified transcription error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetworkUnavailable
}
