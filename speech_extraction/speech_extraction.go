package speech_extraction

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"canopus/audio_capture"
	"canopus/frame_processor"

	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
)

type recorderImpl struct {
	fileSys afero.Fs
	dir     string
	now     func() time.Time
}

type Config struct {
	FileSys afero.Fs
	Dir     string
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("dir is empty")
	}

	if err := cfg.FileSys.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", cfg.Dir, err)
	}

	return &recorderImpl{
		fileSys: cfg.FileSys,
		dir:     cfg.Dir,
		now:     time.Now,
	}, nil
}

func (r *recorderImpl) Save(segment frame_processor.Segment) (string, error) {
	if len(segment.Data) == 0 {
		return "", fmt.Errorf("segment is empty")
	}

	waveFilename := filepath.Join(r.dir,
		"segment-"+strconv.FormatInt(r.now().UnixMilli(), 10)+"-"+strconv.FormatUint(segment.FirstSeq, 10)+".wav")

	waveFile, err := r.fileSys.Create(waveFilename)
	if err != nil {
		return "", err
	}

	channels := segment.Channels
	if channels <= 0 {
		channels = 1
	}

	param := wave.WriterParam{
		Out:           waveFile,
		Channel:       channels,
		SampleRate:    segment.SampleRate,
		BitsPerSample: 16,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		waveFile.Close()
		return "", err
	}

	if _, err := waveWriter.WriteSample16(audio_capture.DecodePCM16(segment.Data)); err != nil {
		waveWriter.Close()
		return "", err
	}

	if err := waveWriter.Close(); err != nil {
		return "", err
	}

	return waveFilename, nil
}
