package audio_capture

import (
	"context"
	"fmt"
)

type Source interface {
	Start(ctx context.Context) error
	// Stop is idempotent and may be called from any goroutine.
	Stop() error
	Name() string
}

// DeviceInitError is returned when the audio device cannot be brought up.
// It is fatal for the process.
type DeviceInitError struct {
	Op  string
	Err error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("audio device init (%s): %v", e.Op, e.Err)
}

func (e *DeviceInitError) Unwrap() error {
	return e.Err
}
