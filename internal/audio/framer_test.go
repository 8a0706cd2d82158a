package audio

import (
	"testing"
	"time"
)

func TestFramerPush(t *testing.T) {
	fr := NewFramer(16000, 30)
	frameSamples := FrameSamples(16000, 30)
	now := time.Now()

	// Less than one frame buffers silently.
	frames := fr.Push(make([]int16, frameSamples-1), now)
	if len(frames) != 0 {
		t.Fatalf("want no frames, got %d", len(frames))
	}

	// One more sample completes the frame.
	frames = fr.Push(make([]int16, 1), now)
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	if len(frames[0].PCM) != frameSamples {
		t.Errorf("want %d samples, got %d", frameSamples, len(frames[0].PCM))
	}

	// A large push yields multiple frames and keeps the remainder.
	frames = fr.Push(make([]int16, 2*frameSamples+7), now)
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}

	frames = fr.Push(make([]int16, frameSamples-7), now)
	if len(frames) != 1 {
		t.Fatalf("want 1 frame from remainder, got %d", len(frames))
	}
}

func TestFramerReset(t *testing.T) {
	fr := NewFramer(16000, 30)
	fr.Push(make([]int16, 100), time.Now())
	fr.Reset()

	frames := fr.Push(make([]int16, FrameSamples(16000, 30)-1), time.Now())
	if len(frames) != 0 {
		t.Errorf("want no frames after reset, got %d", len(frames))
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{PCM: make([]int16, 480), SampleRate: 16000}
	if got := f.Duration(); got != 30*time.Millisecond {
		t.Errorf("want 30ms, got %v", got)
	}
}
