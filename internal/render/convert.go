package render

import "github.com/go-audio/audio"

// bytesToIntBuffer reinterprets little-endian int16 PCM bytes as an
// audio.IntBuffer, the shape the rest of the go-audio ecosystem expects.
func bytesToIntBuffer(pcm []byte, format *audio.Format) *audio.IntBuffer {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		lo := pcm[i*2]
		hi := pcm[i*2+1]
		samples[i] = int(int16(uint16(lo) | uint16(hi)<<8))
	}
	return &audio.IntBuffer{
		Format:         format,
		Data:           samples,
		SourceBitDepth: 16,
	}
}

// intBufferToInt16 copies buf's samples into out, which is the raw slice
// PortAudio's callback writes to the output device from.
func intBufferToInt16(buf *audio.IntBuffer, out []int16) {
	n := len(buf.Data)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(buf.Data[i])
	}
}
