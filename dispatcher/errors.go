package dispatcher

import (
	"errors"
	"fmt"
)

var (
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNotRecognized        = errors.New("command not recognized")
)

// HandlerExecutionError wraps a handler failure or panic. It is isolated to
// that handler: dispatch carries on with the next one.
type HandlerExecutionError struct {
	Handler string
	Err     error
	Panic   any
}

func (e *HandlerExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Panic)
	}

	return fmt.Sprintf("handler %s: %v", e.Handler, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}
