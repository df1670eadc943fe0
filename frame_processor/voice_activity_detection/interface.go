package voice_activity_detection

import "errors"

var ErrEmptyFrame = errors.New("empty frame")

// Detector classifies consecutive frames of normalized samples as speech or not.
// Implementations may keep state between calls.
type Detector interface {
	IsSpeech(samples []float64) (bool, error)
	Reset()
}
