// Package transcription converts sealed speech segments to text. Two
// engines exist: a local whisper-server and the OpenAI cloud API. The
// active engine is resolved once at startup and never switched at
// runtime.
package transcription

import (
	"context"

	"github.com/sai-assistant/sai/internal/segmenter"
)

// Result is the text produced from one segment.
type Result struct {
	Text   string
	Engine string
}

// Engine transcribes sealed segments. Implementations must be safe for
// sequential use from the transcription worker; they are never called
// concurrently.
type Engine interface {
	// Name identifies the engine in events and history records.
	Name() string
	// Transcribe converts the segment audio to text. Failures are
	// *Error values carrying a Kind.
	Transcribe(ctx context.Context, seg *segmenter.Segment) (Result, error)
}
