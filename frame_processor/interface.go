package frame_processor

import (
	"time"

	"canopus/audio_capture"
)

type Interface interface {
	// Process never fails: a frame that cannot be classified counts as speech.
	Process(frame audio_capture.Frame) (Segment, bool)
	Flush() (Segment, bool)
	Reset()
}

// Segment is a contiguous run of speech frames, concatenated in capture order.
type Segment struct {
	Data       []byte
	SampleRate int
	Channels   int
	FirstSeq   uint64
	LastSeq    uint64
	Frames     int
}

func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}

	samples := len(s.Data) / 2 / s.Channels

	return time.Duration(samples) * time.Second / time.Duration(s.SampleRate)
}
