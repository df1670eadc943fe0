package listener

import "context"

type Interface interface {
	// ListenLoop runs until ctx is cancelled, an exit keyword is heard, the
	// source runs dry or the loop fails. Resources are released on every path,
	// but never while the processing loop is still running.
	ListenLoop(ctx context.Context) error
	HaltListening()
}
