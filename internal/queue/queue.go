// Package queue implements the bounded, non-blocking queues tasks use to
// pass packets, samples, and commands between each other. Every queue is
// backed by a buffered channel; TryPush/TryPop never block, matching the
// pipeline's requirement that no task stall indefinitely waiting on another.
package queue

// Queue is a bounded multi-producer/multi-consumer queue of T with
// non-blocking push/pop.
type Queue[T any] struct {
	ch chan T
}

// New returns a Queue with the given capacity.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPush enqueues v, returning false if the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop dequeues a value, returning ok=false if the queue is empty.
func (q *Queue[T]) TryPop() (v T, ok bool) {
	select {
	case v = <-q.ch:
		return v, true
	default:
		return v, false
	}
}

// Len reports the number of currently queued items (best-effort, racy by
// nature of concurrent producers/consumers).
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap reports the queue's configured capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Drain pops every currently available item, in FIFO order. Used by tasks
// that finish work on kill before exiting.
func (q *Queue[T]) Drain() []T {
	out := make([]T, 0, q.Len())
	for {
		v, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
