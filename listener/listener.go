package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"canopus/audio_capture"
	"canopus/frame_processor"
	"canopus/logger"
	"canopus/session"
	"canopus/speech_extraction"
	"canopus/speech_output"
	"canopus/speech_to_text"

	"go.uber.org/zap"
)

const (
	ReplyRepeat = "I didn't catch that. What did you say?"

	defaultPollInterval    = 100 * time.Millisecond
	defaultShutdownTimeout = 2 * time.Second
)

// Machine is the part of session.Machine the loop drives.
type Machine interface {
	HandleText(ctx context.Context, text string) session.Outcome
	Tick() session.Outcome
	State() session.State
}

// finiteSource is implemented by sources that run dry, such as wav replay.
type finiteSource interface {
	Done() <-chan struct{}
}

type listenerImpl struct {
	source          audio_capture.Source
	queue           *audio_capture.Queue
	processor       frame_processor.Interface
	sttEngine       speech_to_text.Interface
	machine         Machine
	speaker         speech_output.Speaker
	recorder        speech_extraction.Interface
	pollInterval    time.Duration
	shutdownTimeout time.Duration

	halt     chan struct{}
	haltOnce sync.Once
}

type Config struct {
	Source    audio_capture.Source
	Queue     *audio_capture.Queue
	Processor frame_processor.Interface
	STTEngine speech_to_text.Interface
	Machine   Machine
	Speaker   speech_output.Speaker
	// Recorder is optional.
	Recorder        speech_extraction.Interface
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Source == nil {
		return nil, fmt.Errorf("source is nil")
	}

	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is nil")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is nil")
	}

	if cfg.STTEngine == nil {
		return nil, fmt.Errorf("sttEngine is nil")
	}

	if cfg.Machine == nil {
		return nil, fmt.Errorf("machine is nil")
	}

	if cfg.Speaker == nil {
		return nil, fmt.Errorf("speaker is nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &listenerImpl{
		source:          cfg.Source,
		queue:           cfg.Queue,
		processor:       cfg.Processor,
		sttEngine:       cfg.STTEngine,
		machine:         cfg.Machine,
		speaker:         cfg.Speaker,
		recorder:        cfg.Recorder,
		pollInterval:    pollInterval,
		shutdownTimeout: shutdownTimeout,
		halt:            make(chan struct{}),
	}, nil
}

// HaltListening asks a running ListenLoop to shut down.
func (l *listenerImpl) HaltListening() {
	l.haltOnce.Do(func() {
		logger.Info("Halt requested")

		close(l.halt)
	})
}

func (l *listenerImpl) ListenLoop(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := l.source.Start(ctx); err != nil {
		return errors.Join(err, l.source.Stop(), l.closeOutputs())
	}

	logger.Info("Starting to listen", zap.String("source", l.source.Name()))

	loopDone := make(chan error, 1)

	go func() {
		loopDone <- l.processLoop(ctx)
	}()

	var (
		loopErr error
		joined  bool
	)

	select {
	case loopErr = <-loopDone:
		joined = true
	case <-ctx.Done():
		logger.Info("Shutting down", zap.Error(context.Cause(ctx)))
	case <-l.halt:
		logger.Info("Shutting down")
	}

	cancel()

	// the source goes first so nothing else is enqueued
	stopErr := l.source.Stop()
	if stopErr != nil {
		logger.Error("Failed to stop audio source", zap.Error(stopErr))
	}

	if !joined {
		select {
		case loopErr = <-loopDone:
			joined = true
		case <-time.After(l.shutdownTimeout):
			logger.Warn("Processing loop did not stop in time, outputs are released when it returns",
				zap.Duration("timeout", l.shutdownTimeout))
		}
	}

	logger.Info("Stopped listening", zap.Uint64("dropped_frames", l.queue.DroppedTotal()))

	if !joined {
		// the loop may still be inside the transcoder or a handler
		go func() {
			if err := <-loopDone; err != nil {
				logger.Error("Processing loop failed after shutdown", zap.Error(err))
			}

			if err := l.closeOutputs(); err != nil {
				logger.Error("Failed to release outputs", zap.Error(err))
			}
		}()

		return stopErr
	}

	return errors.Join(loopErr, stopErr, l.closeOutputs())
}

func (l *listenerImpl) closeOutputs() error {
	var errs []error

	if err := l.speaker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close speaker: %w", err))
	}

	if err := l.sttEngine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transcoder: %w", err))
	}

	return errors.Join(errs...)
}

// processLoop is the only goroutine that touches the processor and the
// session machine.
func (l *listenerImpl) processLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Processing loop panicked", zap.Any("panic", r), zap.Stack("stack"))

			err = fmt.Errorf("processing loop panicked: %v", r)
		}
	}()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	var sourceDone <-chan struct{}
	if finite, ok := l.source.(finiteSource); ok {
		sourceDone = finite.Done()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-l.queue.Frames():
			if ctx.Err() != nil {
				return nil
			}

			if segment, ready := l.processor.Process(frame); ready {
				if l.handleSegment(ctx, segment) {
					return nil
				}
			}
		case <-ticker.C:
			l.reportDropped()
			l.respond(ctx, l.machine.Tick())
		case <-sourceDone:
			l.drain(ctx)

			logger.Info("Audio source finished")

			return nil
		}
	}
}

// drain processes whatever is still queued, then flushes the open segment.
func (l *listenerImpl) drain(ctx context.Context) {
	for {
		select {
		case frame := <-l.queue.Frames():
			if ctx.Err() != nil {
				return
			}

			if segment, ready := l.processor.Process(frame); ready {
				if l.handleSegment(ctx, segment) {
					return
				}
			}
		default:
			if segment, ready := l.processor.Flush(); ready {
				l.handleSegment(ctx, segment)
			}

			return
		}
	}
}

// handleSegment transcribes a segment and feeds the text to the machine. It
// reports whether an exit keyword was heard.
func (l *listenerImpl) handleSegment(ctx context.Context, segment frame_processor.Segment) bool {
	logger.Debug("Speech segment",
		zap.Uint64("first_seq", segment.FirstSeq),
		zap.Uint64("last_seq", segment.LastSeq),
		zap.Duration("duration", segment.Duration()))

	if l.recorder != nil {
		if path, err := l.recorder.Save(segment); err != nil {
			logger.Warn("Failed to record segment", zap.Error(err))
		} else {
			logger.Debug("Segment recorded", zap.String("path", path))
		}
	}

	if ctx.Err() != nil {
		return false
	}

	text, err := l.sttEngine.Transcribe(ctx, segment)
	if err != nil {
		logger.Warn("Transcription failed", zap.Error(err))

		if l.machine.State() != session.Idle {
			l.say(ctx, ReplyRepeat)
		}

		return false
	}

	if text == "" {
		return false
	}

	logger.Info("Heard", zap.String("text", text), zap.String("state", l.machine.State().String()))

	out := l.machine.HandleText(ctx, text)
	l.respond(ctx, out)

	return out.Exit
}

func (l *listenerImpl) respond(ctx context.Context, out session.Outcome) {
	if out.Result != nil && out.Result.Err != nil {
		logger.Debug("Dispatch result", zap.Bool("success", out.Result.Success), zap.Error(out.Result.Err))
	}

	if out.Reply != "" {
		l.say(ctx, out.Reply)
	}
}

func (l *listenerImpl) say(ctx context.Context, text string) {
	if err := l.speaker.Speak(ctx, text); err != nil {
		logger.Warn("Failed to speak reply", zap.Error(err))
	}
}

func (l *listenerImpl) reportDropped() {
	if dropped := l.queue.TakeDropped(); dropped > 0 {
		logger.Warn("Dropped audio frames, processing is falling behind",
			zap.Uint64("dropped", dropped),
			zap.Int("queue_capacity", l.queue.Cap()))
	}
}
