// Package ring provides a fixed-capacity FIFO buffer that overwrites its oldest entry.
package ring

// Ring holds at most Cap() values. Push never allocates after construction.
// A Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int
	n     int
}

// New creates a ring with the given capacity (minimum 1).
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting and returning the oldest value when full.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return evicted, false
	}
	evicted = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return evicted, true
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the next Push evicts.
func (r *Ring[T]) Full() bool { return r.n == len(r.buf) }

// At returns the i-th value, 0 being the oldest. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("ring: index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Last returns the newest value.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	return r.At(r.n - 1), true
}

// AppendTo appends the values oldest first to dst and returns it.
func (r *Ring[T]) AppendTo(dst []T) []T {
	for i := 0; i < r.n; i++ {
		dst = append(dst, r.buf[(r.start+i)%len(r.buf)])
	}
	return dst
}

// Values returns a copy of the values oldest first.
func (r *Ring[T]) Values() []T {
	return r.AppendTo(make([]T, 0, r.n))
}

// Reset drops every value and keeps the capacity.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.n = 0, 0
}
