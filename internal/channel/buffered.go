// Package channel provides a bounded outbox for per-connection writers.
package channel

// Buffered is a bounded channel whose senders never block
type Buffered[T any] struct {
	ch chan T
}

// NewBuffered creates a buffered channel holding at most size items
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// TrySend queues v, reporting false when the buffer is full
func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of queued items
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}
