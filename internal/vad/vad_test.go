package vad

import (
	"math"
	"testing"

	"github.com/sai-assistant/sai/internal/audio"
)

// toneFrame builds a frame holding a sine tone at the given normalized
// amplitude (0..1 of full scale).
func toneFrame(amplitude float64, samples int) audio.Frame {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.Frame{PCM: pcm, SampleRate: 16000}
}

func silenceFrame(samples int) audio.Frame {
	return audio.Frame{PCM: make([]int16, samples), SampleRate: 16000}
}

func TestDetectorClassifies(t *testing.T) {
	d := New(0.5)

	if d.IsSpeech(silenceFrame(480)) {
		t.Error("silence classified as speech")
	}
	if !d.IsSpeech(toneFrame(0.5, 480)) {
		t.Error("loud tone classified as silence")
	}
}

func TestDetectorHysteresis(t *testing.T) {
	d := New(0.5)

	if !d.IsSpeech(toneFrame(0.5, 480)) {
		t.Fatal("loud tone should enter speech state")
	}

	// A quieter tone between release and attack thresholds stays speech
	// while in the speech state.
	mid := (d.attack + d.release) / 2
	if !d.IsSpeech(toneFrame(mid*math.Sqrt2, 480)) {
		t.Error("mid-energy frame should stay in speech state")
	}

	if d.IsSpeech(silenceFrame(480)) {
		t.Error("silence should release the speech state")
	}

	// After release the same mid-energy frame is silence again.
	if d.IsSpeech(toneFrame(mid*math.Sqrt2, 480)) {
		t.Error("mid-energy frame should not re-enter speech state")
	}
}

func TestSensitivityOrdering(t *testing.T) {
	quiet := toneFrame(0.04, 480)

	insensitive := New(0.0)
	sensitive := New(1.0)

	if insensitive.IsSpeech(quiet) {
		t.Error("low sensitivity should ignore quiet audio")
	}
	if !sensitive.IsSpeech(quiet) {
		t.Error("high sensitivity should detect quiet audio")
	}
}

func TestSensitivityClamped(t *testing.T) {
	if d := New(-1); d.attack != maxThreshold {
		t.Errorf("want attack %f, got %f", maxThreshold, d.attack)
	}
	if d := New(2); d.attack != minThreshold {
		t.Errorf("want attack %f, got %f", minThreshold, d.attack)
	}
}
