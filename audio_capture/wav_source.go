package audio_capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"canopus/logger"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// WavFileSource replays a 16-bit wav file as if it were a capture device.
type WavFileSource struct {
	fileSys   afero.Fs
	path      string
	blockSize int
	paced     bool
	queue     *Queue

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

type WavFileConfig struct {
	FileSys   afero.Fs
	Path      string
	BlockSize int
	// Paced delivers one block per block duration, like real hardware.
	Paced bool
	Queue *Queue
}

func NewWavFile(cfg *WavFileConfig) (*WavFileSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is nil")
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive")
	}

	return &WavFileSource{
		fileSys:   cfg.FileSys,
		path:      cfg.Path,
		blockSize: cfg.BlockSize,
		paced:     cfg.Paced,
		queue:     cfg.Queue,
		done:      make(chan struct{}),
	}, nil
}

func (w *WavFileSource) Name() string {
	return "wav:" + w.path
}

func (w *WavFileSource) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil || w.stopped {
		return nil
	}

	buf, err := w.load()
	if err != nil {
		return &DeviceInitError{Op: "open " + w.path, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.replay(runCtx, buf)

	logger.Info("Replaying wav input",
		zap.String("path", w.path),
		zap.Int("sample_rate", buf.Format.SampleRate),
		zap.Int("channels", buf.Format.NumChannels))

	return nil
}

func (w *WavFileSource) load() (*audio.IntBuffer, error) {
	file, err := w.fileSys.Open(w.path)
	if err != nil {
		return nil, err
	}

	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}

	if decoder.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav file has no sample rate")
	}

	return buf, nil
}

func (w *WavFileSource) replay(ctx context.Context, buf *audio.IntBuffer) {
	defer close(w.done)

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	step := w.blockSize * channels
	blockDuration := time.Duration(w.blockSize) * time.Second / time.Duration(buf.Format.SampleRate)

	var ticker *time.Ticker
	if w.paced {
		ticker = time.NewTicker(blockDuration)
		defer ticker.Stop()
	}

	samples := make([]int16, 0, step)

	var seq uint64

	for start := 0; start < len(buf.Data); start += step {
		end := start + step
		if end > len(buf.Data) {
			end = len(buf.Data)
		}

		samples = samples[:0]
		for _, s := range buf.Data[start:end] {
			samples = append(samples, int16(s))
		}

		seq++

		w.queue.TryPush(Frame{
			Data:       EncodePCM16(samples),
			SampleRate: buf.Format.SampleRate,
			Channels:   channels,
			Seq:        seq,
		})

		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// Done is closed once the whole file has been delivered or the source stopped.
func (w *WavFileSource) Done() <-chan struct{} {
	return w.done
}

func (w *WavFileSource) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true

	if w.cancel != nil {
		w.cancel()
	} else {
		close(w.done)
	}

	return nil
}
