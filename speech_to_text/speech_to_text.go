package speech_to_text

import (
	"context"
	"fmt"
	"io"
	"strings"

	"canopus/audio_capture"
	"canopus/frame_processor"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/audio"
)

type sttImpl struct {
	model    whisper.Model
	language string
}

type Config struct {
	Model    whisper.Model
	Language string
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	return &sttImpl{
		model:    cfg.Model,
		language: cfg.Language,
	}, nil
}

func (stt *sttImpl) Transcribe(ctx context.Context, segment frame_processor.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if segment.SampleRate != whisper.SampleRate {
		return "", fmt.Errorf("%w: sample rate %d, model expects %d",
			ErrTranscription, segment.SampleRate, whisper.SampleRate)
	}

	// Create processing context
	context, err := stt.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: new context: %v", ErrTranscription, err)
	}

	if stt.language != "" {
		if err := context.SetLanguage(stt.language); err != nil {
			return "", fmt.Errorf("%w: set language %q: %v", ErrTranscription, stt.language, err)
		}
	}

	var cb whisper.SegmentCallback

	if err := context.Process(toFloat32(segment), cb); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	texts, err := outputSegments(context)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	return strings.TrimSpace(strings.Join(texts, " ")), nil
}

func (stt *sttImpl) Close() error {
	return stt.model.Close()
}

// toFloat32 converts a segment to mono samples in [-1, 1].
func toFloat32(segment frame_processor.Segment) []float32 {
	pcm := audio_capture.DecodePCM16(segment.Data)

	channels := segment.Channels
	if channels <= 0 {
		channels = 1
	}

	data := make([]int, 0, len(pcm)/channels)
	for i := 0; i < len(pcm); i += channels {
		data = append(data, int(pcm[i]))
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  segment.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	floats := buf.AsFloat32Buffer().Data
	for i := range floats {
		floats[i] /= 32768
	}

	return floats
}

func outputSegments(context whisper.Context) ([]string, error) {
	seen := make(map[string]bool)

	texts := make([]string, 0)

	for {
		segment, err := context.NextSegment()
		if err == io.EOF {
			return texts, nil
		} else if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(segment.Text)
		if !keepSegment(text, seen) {
			continue
		}

		texts = append(texts, text)
	}
}

// keepSegment drops empty text, annotations such as "[BLANK_AUDIO]" or
// "(music)", and text already seen in this transcription.
func keepSegment(text string, seen map[string]bool) bool {
	if text == "" {
		return false
	}

	if text[0] == '(' || text[0] == '[' ||
		text[len(text)-1] == ')' || text[len(text)-1] == ']' {
		return false
	}

	if seen[text] {
		return false
	}

	seen[text] = true

	return true
}
