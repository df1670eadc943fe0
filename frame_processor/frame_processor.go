package frame_processor

import (
	"bytes"
	"fmt"

	"canopus/audio_capture"
	"canopus/frame_processor/voice_activity_detection"
	"canopus/logger"

	"go.uber.org/zap"
)

const DefaultMaxSegmentFrames = 50

type processorImpl struct {
	lowCutHz        float64
	highCutHz       float64
	filterEnabled   bool
	energyThreshold float64
	detector        voice_activity_detection.Detector
	maxFrames       int

	buffer   bytes.Buffer
	frames   int
	firstSeq uint64
	lastSeq  uint64
	rate     int
	channels int
}

type Config struct {
	LowCutHz  float64
	HighCutHz float64
	// DisableFilter classifies the raw signal.
	DisableFilter   bool
	EnergyThreshold float64
	// Detector is optional; without it frames are classified by energy alone.
	Detector         voice_activity_detection.Detector
	MaxSegmentFrames int
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	p := &processorImpl{
		lowCutHz:        cfg.LowCutHz,
		highCutHz:       cfg.HighCutHz,
		filterEnabled:   !cfg.DisableFilter,
		energyThreshold: cfg.EnergyThreshold,
		detector:        cfg.Detector,
		maxFrames:       cfg.MaxSegmentFrames,
	}

	if p.lowCutHz == 0 && p.highCutHz == 0 {
		p.lowCutHz = DefaultLowCutHz
		p.highCutHz = DefaultHighCutHz
	}

	if p.energyThreshold <= 0 {
		p.energyThreshold = voice_activity_detection.DefaultEnergyThreshold
	}

	if p.maxFrames <= 0 {
		p.maxFrames = DefaultMaxSegmentFrames
	}

	return p, nil
}

func (p *processorImpl) Process(frame audio_capture.Frame) (Segment, bool) {
	if !p.classify(frame) {
		if p.frames > 0 {
			return p.emit(), true
		}

		return Segment{}, false
	}

	p.append(frame)

	if p.frames >= p.maxFrames {
		return p.emit(), true
	}

	return Segment{}, false
}

func (p *processorImpl) Flush() (Segment, bool) {
	if p.frames == 0 {
		return Segment{}, false
	}

	return p.emit(), true
}

func (p *processorImpl) Reset() {
	p.buffer.Reset()
	p.frames = 0

	if p.detector != nil {
		p.detector.Reset()
	}
}

func (p *processorImpl) append(frame audio_capture.Frame) {
	if p.frames == 0 {
		p.firstSeq = frame.Seq
		p.rate = frame.SampleRate
		p.channels = frame.Channels
	}

	p.buffer.Write(frame.Data)
	p.lastSeq = frame.Seq
	p.frames++
}

func (p *processorImpl) emit() Segment {
	data := make([]byte, p.buffer.Len())
	copy(data, p.buffer.Bytes())

	segment := Segment{
		Data:       data,
		SampleRate: p.rate,
		Channels:   p.channels,
		FirstSeq:   p.firstSeq,
		LastSeq:    p.lastSeq,
		Frames:     p.frames,
	}

	p.buffer.Reset()
	p.frames = 0

	logger.Debug("Speech segment assembled",
		zap.Int("frames", segment.Frames),
		zap.Int("bytes", len(segment.Data)),
		zap.Duration("duration", segment.Duration()))

	return segment
}

func (p *processorImpl) classify(frame audio_capture.Frame) (speech bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Frame classification panicked, treating frame as speech",
				zap.Uint64("seq", frame.Seq), zap.Any("panic", r))

			speech = true
		}
	}()

	samples := normalize(frame)
	if len(samples) == 0 {
		return true
	}

	if p.filterEnabled {
		samples = p.filter(samples, frame.SampleRate)
	}

	if p.detector != nil {
		isSpeech, err := p.detector.IsSpeech(samples)
		if err == nil {
			return isSpeech
		}

		logger.Debug("VAD failed, falling back to energy", zap.Error(err))
	}

	energy, err := voice_activity_detection.MeanAbsAmplitude(samples)
	if err != nil {
		return true
	}

	return energy > p.energyThreshold
}

// filter returns the unfiltered samples whenever filtering is not possible.
func (p *processorImpl) filter(samples []float64, sampleRate int) (out []float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Band-pass filter panicked", zap.Any("panic", r))
			out = samples
		}
	}()

	filtered, err := BandPass(samples, sampleRate, p.lowCutHz, p.highCutHz)
	if err != nil {
		logger.Debug("Band-pass filter failed, using raw signal", zap.Error(err))
		return samples
	}

	return filtered
}

// normalize decodes the first channel to [-1, 1].
func normalize(frame audio_capture.Frame) []float64 {
	pcm := audio_capture.DecodePCM16(frame.Data)

	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}

	out := make([]float64, 0, len(pcm)/channels)
	for i := 0; i < len(pcm); i += channels {
		out = append(out, float64(pcm[i])/32768.0)
	}

	return out
}
