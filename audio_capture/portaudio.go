package audio_capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"canopus/logger"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

type portAudioImpl struct {
	mu sync.Mutex

	deviceName string
	sampleRate int
	channels   int
	blockSize  int
	queue      *Queue

	initialized bool
	stream      *portaudio.Stream
	started     bool

	seq uint64
}

type PortAudioConfig struct {
	// DeviceName selects an input device by name; empty uses the default input.
	DeviceName string
	SampleRate int
	Channels   int
	BlockSize  int
	Queue      *Queue
}

func NewPortAudio(cfg *PortAudioConfig) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is nil")
	}

	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid stream format: rate=%d channels=%d block=%d",
			cfg.SampleRate, cfg.Channels, cfg.BlockSize)
	}

	return &portAudioImpl{
		deviceName: cfg.DeviceName,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		blockSize:  cfg.BlockSize,
		queue:      cfg.Queue,
	}, nil
}

func (p *portAudioImpl) Name() string {
	if p.deviceName == "" {
		return "portaudio:default"
	}

	return "portaudio:" + p.deviceName
}

func (p *portAudioImpl) Start(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	// anything acquired before a failure is released here
	defer func() {
		if err != nil {
			if releaseErr := p.release(); releaseErr != nil {
				logger.Warn("Failed to release audio device after startup error", zap.Error(releaseErr))
			}
		}
	}()

	if err = portaudio.Initialize(); err != nil {
		return &DeviceInitError{Op: "initialize", Err: err}
	}

	p.initialized = true

	device, err := p.inputDevice()
	if err != nil {
		return &DeviceInitError{Op: "select device", Err: err}
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = p.channels
	params.SampleRate = float64(p.sampleRate)
	params.FramesPerBuffer = p.blockSize

	stream, err := portaudio.OpenStream(params, p.onAudio)
	if err != nil {
		return &DeviceInitError{Op: "open stream", Err: err}
	}

	p.stream = stream

	if err = stream.Start(); err != nil {
		return &DeviceInitError{Op: "start stream", Err: err}
	}

	p.started = true

	logger.Info("Audio capture started",
		zap.String("device", device.Name),
		zap.Int("sample_rate", p.sampleRate),
		zap.Int("channels", p.channels),
		zap.Int("block_size", p.blockSize))

	return nil
}

// onAudio runs on the PortAudio thread. It copies the block and hands it to
// the queue without blocking.
func (p *portAudioImpl) onAudio(in []int16) {
	p.seq++

	p.queue.TryPush(Frame{
		Data:       EncodePCM16(in),
		SampleRate: p.sampleRate,
		Channels:   p.channels,
		Seq:        p.seq,
	})
}

func (p *portAudioImpl) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	err := p.release()

	logger.Info("Audio capture stopped", zap.Uint64("dropped_frames", p.queue.DroppedTotal()))

	return err
}

// release must be called with mu held.
func (p *portAudioImpl) release() error {
	var errs []error

	if p.stream != nil {
		if p.started {
			if err := p.stream.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop stream: %w", err))
			}
		}

		if err := p.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
	}

	if p.initialized {
		if err := portaudio.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("terminate: %w", err))
		}
	}

	p.stream = nil
	p.started = false
	p.initialized = false

	return errors.Join(errs...)
}

func (p *portAudioImpl) inputDevice() (*portaudio.DeviceInfo, error) {
	if p.deviceName == "" {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.Name == p.deviceName && device.MaxInputChannels > 0 {
			return device, nil
		}
	}

	return nil, fmt.Errorf("input device %q not found", p.deviceName)
}

type DeviceDescription struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListDevices enumerates the input-capable devices.
func ListDevices() ([]DeviceDescription, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &DeviceInitError{Op: "initialize", Err: err}
	}

	defer func() {
		if err := portaudio.Terminate(); err != nil {
			logger.Warn("Error while freeing audio", zap.Error(err))
		}
	}()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	defaultName := ""
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	descriptions := make([]DeviceDescription, 0, len(devices))

	for i, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}

		descriptions = append(descriptions, DeviceDescription{
			Index:             i,
			Name:              device.Name,
			MaxInputChannels:  device.MaxInputChannels,
			DefaultSampleRate: device.DefaultSampleRate,
			IsDefault:         device.Name == defaultName,
		})
	}

	return descriptions, nil
}
