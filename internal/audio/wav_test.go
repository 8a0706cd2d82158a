package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	pcm := []int16{0, 1000, -1000, 32767}
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != wavHeaderSize+2*len(pcm) {
		t.Fatalf("want %d bytes, got %d", wavHeaderSize+2*len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("want sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(2*len(pcm)) {
		t.Errorf("want data size %d, got %d", 2*len(pcm), got)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[wavHeaderSize+4:])); got != -1000 {
		t.Errorf("want sample -1000, got %d", got)
	}
}
