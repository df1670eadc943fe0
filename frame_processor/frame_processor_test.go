package frame_processor

import (
	"errors"
	"math"
	"testing"

	"canopus/audio_capture"
	"canopus/frame_processor/voice_activity_detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	results []bool
	err     error
	panics  bool
	calls   int
}

func (s *stubDetector) IsSpeech(samples []float64) (bool, error) {
	if s.panics {
		panic("detector exploded")
	}

	if s.err != nil {
		return false, s.err
	}

	result := s.results[s.calls%len(s.results)]
	s.calls++

	return result, nil
}

func (s *stubDetector) Reset() {
	s.calls = 0
}

func frameOf(seq uint64, samples []int16) audio_capture.Frame {
	return audio_capture.Frame{
		Data:       audio_capture.EncodePCM16(samples),
		SampleRate: 16000,
		Channels:   1,
		Seq:        seq,
	}
}

func constant(n int, value int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = value
	}

	return out
}

func toneSamples(n int, freq float64, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/16000)
	}

	return out
}

func TestProcess_SegmentLengthEqualsSumOfSpeechFrames(t *testing.T) {
	sizes := []int{480, 160, 320, 480, 7}

	p, err := New(&Config{
		Detector:         &stubDetector{results: []bool{true}},
		MaxSegmentFrames: len(sizes),
	})
	require.NoError(t, err)

	var (
		expected int
		segment  Segment
		emitted  bool
	)

	for i, size := range sizes {
		frame := frameOf(uint64(i+1), constant(size, int16(i)))
		expected += len(frame.Data)

		segment, emitted = p.Process(frame)
		if i < len(sizes)-1 {
			assert.False(t, emitted)
		}
	}

	require.True(t, emitted)
	assert.Equal(t, expected, len(segment.Data))
	assert.Equal(t, len(sizes), segment.Frames)
	assert.Equal(t, uint64(1), segment.FirstSeq)
	assert.Equal(t, uint64(len(sizes)), segment.LastSeq)

	// frame order is preserved
	pcm := audio_capture.DecodePCM16(segment.Data)
	assert.Equal(t, int16(0), pcm[0])
	assert.Equal(t, int16(4), pcm[len(pcm)-1])
}

func TestProcess_EmitsWhenSpeechTurnsToSilence(t *testing.T) {
	p, err := New(&Config{
		Detector: &stubDetector{results: []bool{false, true, true, false, false}},
	})
	require.NoError(t, err)

	_, emitted := p.Process(frameOf(1, constant(480, 100)))
	assert.False(t, emitted)

	_, emitted = p.Process(frameOf(2, constant(480, 100)))
	assert.False(t, emitted)

	_, emitted = p.Process(frameOf(3, constant(480, 100)))
	assert.False(t, emitted)

	segment, emitted := p.Process(frameOf(4, constant(480, 100)))
	require.True(t, emitted)
	assert.Equal(t, 2, segment.Frames)
	assert.Equal(t, 2*960, len(segment.Data))
	assert.Equal(t, uint64(2), segment.FirstSeq)

	_, emitted = p.Process(frameOf(5, constant(480, 100)))
	assert.False(t, emitted)
}

func TestProcess_MaxSegmentFramesCapsBuffer(t *testing.T) {
	p, err := New(&Config{
		Detector:         &stubDetector{results: []bool{true}},
		MaxSegmentFrames: 3,
	})
	require.NoError(t, err)

	var segments []Segment

	for i := 1; i <= 7; i++ {
		if segment, ok := p.Process(frameOf(uint64(i), constant(160, 1))); ok {
			segments = append(segments, segment)
		}
	}

	require.Len(t, segments, 2)
	assert.Equal(t, 3, segments[0].Frames)
	assert.Equal(t, uint64(4), segments[1].FirstSeq)

	rest, ok := p.Flush()
	require.True(t, ok)
	assert.Equal(t, 1, rest.Frames)

	_, ok = p.Flush()
	assert.False(t, ok)
}

func TestProcess_DetectorErrorFallsBackToEnergy(t *testing.T) {
	p, err := New(&Config{
		Detector:         &stubDetector{err: errors.New("vad unavailable")},
		DisableFilter:    true,
		EnergyThreshold:  0.01,
		MaxSegmentFrames: 1,
	})
	require.NoError(t, err)

	_, emitted := p.Process(frameOf(1, constant(480, 10)))
	assert.False(t, emitted, "quiet frame is silence by energy")

	segment, emitted := p.Process(frameOf(2, constant(480, 8000)))
	assert.True(t, emitted, "loud frame is speech by energy")
	assert.Equal(t, uint64(2), segment.FirstSeq)
}

func TestProcess_DetectorPanicCountsAsSpeech(t *testing.T) {
	p, err := New(&Config{
		Detector:         &stubDetector{panics: true},
		MaxSegmentFrames: 1,
	})
	require.NoError(t, err)

	segment, emitted := p.Process(frameOf(1, constant(480, 0)))
	assert.True(t, emitted)
	assert.Equal(t, 960, len(segment.Data))
}

func TestProcess_EmptyFrameCountsAsSpeech(t *testing.T) {
	p, err := New(&Config{MaxSegmentFrames: 1})
	require.NoError(t, err)

	_, emitted := p.Process(audio_capture.Frame{SampleRate: 16000, Channels: 1, Seq: 1})
	assert.True(t, emitted)
}

func TestProcess_InvalidCutoffsFallBackToRawSignal(t *testing.T) {
	p, err := New(&Config{
		LowCutHz:         5000,
		HighCutHz:        200,
		Detector:         voice_activity_detection.NewEnergy(0.01),
		MaxSegmentFrames: 1,
	})
	require.NoError(t, err)

	_, emitted := p.Process(frameOf(1, constant(480, 8000)))
	assert.True(t, emitted)
}

func TestBandPass(t *testing.T) {
	inBand := toneSamples(480, 1000, 0.5)
	outOfBand := toneSamples(480, 6000, 0.5)

	filtered, err := BandPass(inBand, 16000, 100, 3000)
	require.NoError(t, err)

	before, _ := voice_activity_detection.MeanAbsAmplitude(inBand)
	after, _ := voice_activity_detection.MeanAbsAmplitude(filtered)
	assert.InDelta(t, before, after, 0.01)

	filtered, err = BandPass(outOfBand, 16000, 100, 3000)
	require.NoError(t, err)

	after, _ = voice_activity_detection.MeanAbsAmplitude(filtered)
	assert.Less(t, after, 0.001)
}

func TestBandPass_InvalidInput(t *testing.T) {
	_, err := BandPass(nil, 16000, 100, 3000)
	assert.Error(t, err)

	_, err = BandPass([]float64{1, 2}, 16000, 3000, 100)
	assert.Error(t, err)

	_, err = BandPass([]float64{1, 2}, 16000, 100, 9000)
	assert.Error(t, err)
}

func TestSegment_Duration(t *testing.T) {
	segment := Segment{Data: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	assert.Equal(t, "1s", segment.Duration().String())
}
