package audio

import "encoding/binary"

// wavHeaderSize is the size of a canonical PCM WAV header.
const wavHeaderSize = 44

// EncodeWAV wraps little-endian PCM16 samples in a complete WAV container.
// Both transcription engines accept their audio as WAV uploads, so sealed
// segments are encoded once and the bytes handed to whichever engine is
// active.
func EncodeWAV(pcm []int16, sampleRate, channels int) []byte {
	bitsPerSample := uint16(16)
	byteRate := uint32(sampleRate * channels * int(bitsPerSample/8))
	blockAlign := uint16(channels * int(bitsPerSample/8))
	dataSize := uint32(2 * len(pcm))

	out := make([]byte, wavHeaderSize+int(dataSize))

	// RIFF chunk descriptor
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")

	// "fmt " sub-chunk
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	// "data" sub-chunk
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[wavHeaderSize+2*i:], uint16(s))
	}

	return out
}
