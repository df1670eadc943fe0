package ring_buffer

// Buffer keeps the most recent items up to a fixed capacity, overwriting the
// oldest once full. It is not safe for concurrent use.
type Buffer[T any] struct {
	buffer []T
	head   int
	count  int
}

func New[T any](size int) *Buffer[T] {
	if size < 1 {
		size = 1
	}

	return &Buffer[T]{
		buffer: make([]T, size),
	}
}

func (r *Buffer[T]) Add(items ...T) {
	for _, s := range items {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)

		if r.count < len(r.buffer) {
			r.count++
		}
	}
}

// Read returns the stored items, oldest first.
func (r *Buffer[T]) Read() []T {
	items := make([]T, r.count)
	start := (r.head - r.count + len(r.buffer)) % len(r.buffer)

	for i := 0; i < r.count; i++ {
		items[i] = r.buffer[(start+i)%len(r.buffer)]
	}

	return items
}

// Last returns up to n of the newest items, oldest first.
func (r *Buffer[T]) Last(n int) []T {
	items := r.Read()
	if n >= 0 && n < len(items) {
		return items[len(items)-n:]
	}

	return items
}

func (r *Buffer[T]) Len() int {
	return r.count
}

func (r *Buffer[T]) Cap() int {
	return len(r.buffer)
}
