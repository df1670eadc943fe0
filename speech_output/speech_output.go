package speech_output

import (
	"context"
	"errors"
	"strings"
	"sync"

	"canopus/logger"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("speaker is closed")

type logSpeaker struct {
	mu     sync.Mutex
	closed bool
	spoken int
}

// NewLogSpeaker returns a Speaker that writes replies to the structured log.
func NewLogSpeaker() Speaker {
	return &logSpeaker{}
}

func (s *logSpeaker) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.spoken++

	logger.Info("Reply", zap.String("text", text), zap.Int("n", s.spoken))

	return nil
}

func (s *logSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
