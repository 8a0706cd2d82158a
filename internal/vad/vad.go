// Package vad classifies audio frames as speech or silence using RMS
// energy with hysteresis. Per-frame classification is intentionally
// simple; the segmenter downstream smooths transient flips.
package vad

import (
	"math"

	"github.com/sai-assistant/sai/internal/audio"
)

// Threshold bounds for the sensitivity mapping, in normalized RMS
// (0..1 of full-scale int16).
const (
	minThreshold = 0.005
	maxThreshold = 0.06
	// hysteresisRatio keeps the detector in the speech state until
	// energy drops well below the attack threshold.
	hysteresisRatio = 0.6
)

// Detector classifies frames by RMS energy. Not safe for concurrent
// use; the pipeline owns one detector on the capture goroutine.
type Detector struct {
	attack   float64
	release  float64
	inSpeech bool
}

// New creates a detector. sensitivity is 0..1: higher values lower the
// energy threshold, making the detector trigger on quieter audio.
func New(sensitivity float64) *Detector {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}

	attack := maxThreshold - sensitivity*(maxThreshold-minThreshold)
	return &Detector{
		attack:  attack,
		release: attack * hysteresisRatio,
	}
}

// IsSpeech classifies a single frame.
func (d *Detector) IsSpeech(frame audio.Frame) bool {
	energy := rms(frame.PCM)
	if d.inSpeech {
		d.inSpeech = energy >= d.release
	} else {
		d.inSpeech = energy >= d.attack
	}
	return d.inSpeech
}

// Reset returns the detector to the silence state.
func (d *Detector) Reset() {
	d.inSpeech = false
}

// rms returns the normalized root-mean-square energy of the samples.
func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
