package speech_to_text

import (
	"context"
	"errors"

	"canopus/frame_processor"
)

// ErrTranscription marks a failed transcription. It is not fatal: the user is
// asked to repeat themselves.
var ErrTranscription = errors.New("transcription failed")

type Interface interface {
	Transcribe(ctx context.Context, segment frame_processor.Segment) (string, error)
	Close() error
}
