// Package audio provides microphone capture and PCM plumbing for the
// pipeline: fixed-duration frames, re-framing of arbitrary PCM arrivals,
// and WAV encoding of sealed segments.
package audio

import (
	"encoding/binary"
	"time"
)

// Frame is a fixed-duration buffer of 16-bit mono PCM samples. A frame is
// immutable once captured; ownership passes from the capture loop to the
// segmenter and is never shared across goroutines.
type Frame struct {
	PCM        []int16
	SampleRate int
	Captured   time.Time
}

// Duration returns the play length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the frame samples as little-endian PCM16 bytes.
func (f Frame) Bytes() []byte {
	out := make([]byte, 2*len(f.PCM))
	for i, s := range f.PCM {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// FrameSamples returns the sample count of one frame at the given rate
// and duration.
func FrameSamples(sampleRate, frameMs int) int {
	return sampleRate * frameMs / 1000
}
