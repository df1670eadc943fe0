package audio_capture

import "sync/atomic"

// Queue is the only structure shared between the capture callback and the
// processing loop. TryPush never blocks: a full queue drops the frame.
type Queue struct {
	frames       chan Frame
	dropped      atomic.Uint64
	droppedTotal atomic.Uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue{
		frames: make(chan Frame, capacity),
	}
}

func (q *Queue) TryPush(frame Frame) bool {
	select {
	case q.frames <- frame:
		return true
	default:
		q.dropped.Add(1)
		q.droppedTotal.Add(1)

		return false
	}
}

func (q *Queue) Frames() <-chan Frame {
	return q.frames
}

func (q *Queue) Cap() int {
	return cap(q.frames)
}

// TakeDropped returns the number of frames dropped since the previous call.
func (q *Queue) TakeDropped() uint64 {
	return q.dropped.Swap(0)
}

func (q *Queue) DroppedTotal() uint64 {
	return q.droppedTotal.Load()
}
