package audio_capture

import (
	"encoding/binary"
	"time"
)

// Frame is one hardware block of 16-bit little-endian PCM. Frames are never
// modified after they are produced.
type Frame struct {
	Data       []byte
	SampleRate int
	Channels   int
	Seq        uint64
}

// Samples returns the number of samples per channel in the frame.
func (f Frame) Samples() int {
	if f.Channels <= 0 {
		return len(f.Data) / 2
	}

	return len(f.Data) / 2 / f.Channels
}

func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}

	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}

func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out
}

func DecodePCM16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return out
}
