package audio_capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(2)

	assert.True(t, q.TryPush(Frame{Seq: 1}))
	assert.True(t, q.TryPush(Frame{Seq: 2}))
	assert.False(t, q.TryPush(Frame{Seq: 3}))
	assert.False(t, q.TryPush(Frame{Seq: 4}))

	assert.Len(t, q.Frames(), 2)
	assert.Equal(t, uint64(2), q.TakeDropped())
	assert.Equal(t, uint64(0), q.TakeDropped())
	assert.Equal(t, uint64(2), q.DroppedTotal())

	first := <-q.Frames()
	assert.Equal(t, uint64(1), first.Seq)
}

func TestQueue_TryPushNeverBlocks(t *testing.T) {
	q := NewQueue(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.TryPush(Frame{Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryPush blocked on a full queue")
	}
}

func TestPCM16(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}

	data := EncodePCM16(samples)
	assert.Len(t, data, 10)
	assert.Equal(t, samples, DecodePCM16(data))
}

func TestFrame_Duration(t *testing.T) {
	frame := Frame{Data: make([]byte, 960), SampleRate: 16000, Channels: 1}

	assert.Equal(t, 480, frame.Samples())
	assert.Equal(t, 30*time.Millisecond, frame.Duration())
}

func writeWav(t *testing.T, fs afero.Fs, path string, samples []int) {
	t.Helper()

	file, err := fs.Create(path)
	require.NoError(t, err)

	encoder := wav.NewEncoder(file, 16000, 16, 1, 1)
	require.NoError(t, encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, encoder.Close())
	require.NoError(t, file.Close())
}

func TestWavFileSource_Replay(t *testing.T) {
	fs := afero.NewMemMapFs()

	samples := make([]int, 1000)
	for i := range samples {
		samples[i] = i
	}

	writeWav(t, fs, "input.wav", samples)

	q := NewQueue(16)

	src, err := NewWavFile(&WavFileConfig{
		FileSys:   fs,
		Path:      "input.wav",
		BlockSize: 160,
		Queue:     q,
	})
	require.NoError(t, err)
	require.NoError(t, src.Start(context.Background()))

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}

	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())

	var (
		total  int
		frames int
		last   Frame
	)

	for len(q.Frames()) > 0 {
		last = <-q.Frames()
		total += len(last.Data)
		frames++
	}

	assert.Equal(t, 7, frames)
	assert.Equal(t, 2000, total)
	assert.Equal(t, uint64(7), last.Seq)
	assert.Equal(t, 16000, last.SampleRate)
	assert.Equal(t, int16(999), DecodePCM16(last.Data)[len(last.Data)/2-1])
}

func TestWavFileSource_MissingFile(t *testing.T) {
	src, err := NewWavFile(&WavFileConfig{
		FileSys:   afero.NewMemMapFs(),
		Path:      "nope.wav",
		BlockSize: 160,
		Queue:     NewQueue(1),
	})
	require.NoError(t, err)

	err = src.Start(context.Background())

	var initErr *DeviceInitError
	require.True(t, errors.As(err, &initErr))
	assert.Contains(t, initErr.Op, "nope.wav")
}

func TestNewPortAudio_Validation(t *testing.T) {
	_, err := NewPortAudio(nil)
	assert.Error(t, err)

	_, err = NewPortAudio(&PortAudioConfig{SampleRate: 16000, Channels: 1, BlockSize: 480})
	assert.Error(t, err)

	_, err = NewPortAudio(&PortAudioConfig{SampleRate: 0, Channels: 1, BlockSize: 480, Queue: NewQueue(1)})
	assert.Error(t, err)
}
