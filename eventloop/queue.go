package eventloop

import "context"

// Queue is a bounded, channel-backed CommandSource.
type Queue[T any] struct {
	ch chan T
}

// NewQueue returns a queue holding at most buffer pending commands.
func NewQueue[T any](buffer int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, buffer)}
}

// Enqueue adds cmd without blocking; it reports false when the queue is full.
func (q *Queue[T]) Enqueue(cmd T) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// Put blocks until cmd is queued or ctx is done.
func (q *Queue[T]) Put(ctx context.Context, cmd T) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextCommand returns a queued command without blocking.
func (q *Queue[T]) NextCommand() (T, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		var zero T
		return zero, false
	}
}

// WaitCommand blocks for the next command or until ctx is done.
func (q *Queue[T]) WaitCommand(ctx context.Context) (T, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Len returns the number of pending commands.
func (q *Queue[T]) Len() int { return len(q.ch) }
