package speech_to_text

import (
	"testing"

	"canopus/audio_capture"
	"canopus/frame_processor"

	"github.com/stretchr/testify/assert"
)

func TestKeepSegment(t *testing.T) {
	seen := map[string]bool{}

	assert.True(t, keepSegment("Canopus, what time is it?", seen))
	assert.False(t, keepSegment("Canopus, what time is it?", seen), "duplicates are dropped")
	assert.False(t, keepSegment("[BLANK_AUDIO]", seen))
	assert.False(t, keepSegment("(wind blowing)", seen))
	assert.False(t, keepSegment("", seen))
}

func TestToFloat32(t *testing.T) {
	segment := frame_processor.Segment{
		Data:       audio_capture.EncodePCM16([]int16{16384, 0, -16384, 0, -32768, 0}),
		SampleRate: 16000,
		Channels:   2,
	}

	assert.Equal(t, []float32{0.5, -0.5, -1}, toFloat32(segment))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}
