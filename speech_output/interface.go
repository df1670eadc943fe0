package speech_output

import "context"

// Speaker renders replies to the user. Speech synthesis engines live behind it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Close() error
}
