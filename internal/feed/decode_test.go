package feed

import (
	"encoding/binary"
	"testing"
)

// buildWAV assembles a minimal canonical WAV file for test fixtures: a RIFF
// header, a 16-byte PCM fmt chunk, and a data chunk holding samples.
func buildWAV(samples []int16, sampleRate, channels, bitDepth int) []byte {
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * bitDepth
	blockAlign := channels * bitDepth

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth*8))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}

	return buf
}

func TestDecodeWAVChunkRoundTripsSamples(t *testing.T) {
	samples := []int16{1, -1, 1000, -1000, 0}
	raw := buildWAV(samples, 16000, 1, 2)

	chunk, sawFormat, err := decodeWAVChunk(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !sawFormat {
		t.Fatal("expected scanForFormatChunk to find the fmt chunk")
	}
	if chunk.sampleRate != 16000 || chunk.channels != 1 {
		t.Fatalf("format = %d Hz / %d ch, want 16000 Hz / 1 ch", chunk.sampleRate, chunk.channels)
	}
	if len(chunk.pcm) != len(samples)*2 {
		t.Fatalf("pcm length = %d, want %d", len(chunk.pcm), len(samples)*2)
	}
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(chunk.pcm[i*2:]))
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestScanForFormatChunkFindsFmt(t *testing.T) {
	raw := buildWAV([]int16{0, 0}, 8000, 1, 2)
	found, err := scanForFormatChunk(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected fmt chunk to be found")
	}
}
