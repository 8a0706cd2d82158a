package audio

import "time"

// Framer re-chunks PCM sample arrivals of arbitrary length into
// fixed-size frames. Capture devices do not always honor the requested
// buffer size, so everything entering the pipeline passes through here.
type Framer struct {
	sampleRate   int
	frameSamples int
	buffer       []int16
}

// NewFramer creates a framer producing frames of frameMs duration.
func NewFramer(sampleRate, frameMs int) *Framer {
	return &Framer{
		sampleRate:   sampleRate,
		frameSamples: FrameSamples(sampleRate, frameMs),
	}
}

// Push appends samples to the internal buffer and returns every complete
// frame that can be extracted. Leftover samples stay buffered for the
// next call.
func (fr *Framer) Push(samples []int16, captured time.Time) []Frame {
	fr.buffer = append(fr.buffer, samples...)

	var frames []Frame
	for len(fr.buffer) >= fr.frameSamples {
		pcm := make([]int16, fr.frameSamples)
		copy(pcm, fr.buffer[:fr.frameSamples])
		fr.buffer = fr.buffer[fr.frameSamples:]

		frames = append(frames, Frame{
			PCM:        pcm,
			SampleRate: fr.sampleRate,
			Captured:   captured,
		})
	}
	return frames
}

// Reset discards any buffered samples.
func (fr *Framer) Reset() {
	fr.buffer = fr.buffer[:0]
}
