package feed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// decodedChunk is one WAV-framed chunk reduced to raw little-endian PCM
// bytes plus the format it was decoded at.
type decodedChunk struct {
	pcm        []byte
	sampleRate int
	channels   int
}

// decodeWAVChunk pulls the PCM payload out of a WAV-framed byte chunk. It
// walks the RIFF sub-chunks first purely to detect a fmt chunk (which
// becomes a format-change anchor upstream); the actual sample decode is
// left to wav.Decoder, which re-reads the same bytes from the start.
func decodeWAVChunk(raw []byte) (decodedChunk, bool, error) {
	sawFormatChunk, err := scanForFormatChunk(raw)
	if err != nil {
		return decodedChunk{}, false, fmt.Errorf("riff scan failed: %w", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(raw))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return decodedChunk{}, false, fmt.Errorf("wav decode failed: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}

	return decodedChunk{
		pcm:        pcm,
		sampleRate: buf.Format.SampleRate,
		channels:   buf.Format.NumChannels,
	}, sawFormatChunk, nil
}

// scanForFormatChunk walks the RIFF sub-chunks of raw looking for a fmt
// chunk, without attempting to decode any sample data itself.
func scanForFormatChunk(raw []byte) (bool, error) {
	parser := riff.New(bytes.NewReader(raw))
	if err := parser.ParseHeaders(); err != nil {
		return false, err
	}

	for {
		chunk, err := parser.NextChunk()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if chunk.ID == riff.FmtID {
			chunk.Done()
			return true, nil
		}
		chunk.Done()
	}
}
