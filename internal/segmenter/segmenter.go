// Package segmenter turns a per-frame speech/silence stream into sealed
// speech segments. A segment opens on the first speech frame, absorbs
// interior silence, and seals when trailing silence exceeds the
// configured threshold or the segment hits its duration cap.
package segmenter

import (
	"time"

	"github.com/google/uuid"

	"github.com/sai-assistant/sai/internal/audio"
)

// State is the segmenter's position in its frame-consumption cycle.
type State int

const (
	// StateIdle means no segment is open; silence frames are discarded.
	StateIdle State = iota
	// StateActive means a segment is open and the last frame was speech.
	StateActive
	// StateTrailingSilence means a segment is open and one or more
	// silence frames have arrived since the last speech frame.
	StateTrailingSilence
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateTrailingSilence:
		return "trailing_silence"
	default:
		return "unknown"
	}
}

// EventKind classifies the outcome of ingesting one frame.
type EventKind int

const (
	// EventNone means the frame was consumed with no segment boundary.
	EventNone EventKind = iota
	// EventStarted means this frame opened a new segment. The UI flips
	// its recording indicator on this.
	EventStarted
	// EventSealed means a segment closed and is ready for transcription.
	EventSealed
	// EventDropped means a segment closed below the minimum speech
	// length and was discarded.
	EventDropped
)

// Event is the result of one Ingest call. Segment is set only for
// EventSealed.
type Event struct {
	Kind    EventKind
	Segment *Segment
}

// Segment is a sealed run of speech ready for transcription.
type Segment struct {
	ID           string
	PCM          []int16
	SampleRate   int
	Start        time.Time
	End          time.Time
	SpeechFrames int
}

// Duration returns the play length of the segment audio.
func (s *Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.SampleRate)
}

// Config holds the segmentation thresholds, all in frame-rate agnostic
// units. Zero values fall back to the defaults used across the app.
type Config struct {
	FrameMs            int
	SilenceThresholdMs int
	MaxSegmentMs       int
	MinFrames          int
	SilencePadFrames   int
}

// Segmenter accumulates frames into segments. Not safe for concurrent
// use; the pipeline calls Ingest from a single goroutine and Abort is
// routed through the same loop.
type Segmenter struct {
	cfg Config

	silenceFrames int
	capFrames     int

	state      State
	frames     []audio.Frame
	speech     int
	silenceRun int
	start      time.Time
	last       time.Time
}

// New creates a segmenter from the given thresholds.
func New(cfg Config) *Segmenter {
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 30
	}
	if cfg.SilenceThresholdMs <= 0 {
		cfg.SilenceThresholdMs = 1500
	}
	if cfg.MaxSegmentMs <= 0 {
		cfg.MaxSegmentMs = 8000
	}
	if cfg.MinFrames <= 0 {
		cfg.MinFrames = 5
	}

	return &Segmenter{
		cfg:           cfg,
		silenceFrames: cfg.SilenceThresholdMs / cfg.FrameMs,
		capFrames:     cfg.MaxSegmentMs / cfg.FrameMs,
		state:         StateIdle,
	}
}

// State returns the current segmentation state.
func (sg *Segmenter) State() State { return sg.state }

// Ingest consumes one classified frame and reports any segment boundary
// it produced.
func (sg *Segmenter) Ingest(frame audio.Frame, isSpeech bool) Event {
	if sg.state == StateIdle {
		if !isSpeech {
			return Event{Kind: EventNone}
		}
		sg.open(frame)
		return Event{Kind: EventStarted}
	}

	sg.frames = append(sg.frames, frame)
	sg.last = frame.Captured

	if isSpeech {
		sg.speech++
		sg.silenceRun = 0
		sg.state = StateActive
	} else {
		sg.silenceRun++
		sg.state = StateTrailingSilence
		if sg.silenceRun >= sg.silenceFrames {
			return sg.seal()
		}
	}

	if len(sg.frames) >= sg.capFrames {
		return sg.seal()
	}
	return Event{Kind: EventNone}
}

// Abort discards any open segment without emitting it. Called when the
// user toggles listening off mid-utterance.
func (sg *Segmenter) Abort() {
	sg.reset()
}

func (sg *Segmenter) open(frame audio.Frame) {
	sg.state = StateActive
	sg.frames = append(sg.frames[:0], frame)
	sg.speech = 1
	sg.silenceRun = 0
	sg.start = frame.Captured
	sg.last = frame.Captured
}

// seal closes the open segment, trimming trailing silence down to the
// configured pad, and resets to idle.
func (sg *Segmenter) seal() Event {
	speech := sg.speech
	frames := sg.frames

	trim := sg.silenceRun - sg.cfg.SilencePadFrames
	if trim > 0 {
		frames = frames[:len(frames)-trim]
	}

	start, end := sg.start, sg.last
	sg.reset()

	if speech < sg.cfg.MinFrames {
		return Event{Kind: EventDropped}
	}

	var total int
	for _, f := range frames {
		total += len(f.PCM)
	}
	pcm := make([]int16, 0, total)
	var sampleRate int
	for _, f := range frames {
		pcm = append(pcm, f.PCM...)
		sampleRate = f.SampleRate
	}

	return Event{
		Kind: EventSealed,
		Segment: &Segment{
			ID:           uuid.NewString(),
			PCM:          pcm,
			SampleRate:   sampleRate,
			Start:        start,
			End:          end,
			SpeechFrames: speech,
		},
	}
}

func (sg *Segmenter) reset() {
	sg.state = StateIdle
	sg.frames = nil
	sg.speech = 0
	sg.silenceRun = 0
}
