package cache

// ring is a fixed-capacity FIFO buffer. Logical index 0 is the oldest element.
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) len() int {
	return r.n
}

// push appends v. A full ring overwrites its oldest element.
func (r *ring[T]) push(v T) {
	if r.n == len(r.buf) {
		r.popFront()
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) popFront() {
	var zero T
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
}

func (r *ring[T]) at(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}
