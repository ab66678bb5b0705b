package radio

import (
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by TrySubmit when no capacity is left.
	ErrQueueFull = errors.New("transmit queue full")
	// ErrQueueClosed is returned by TrySubmit once the consumer has gone away.
	ErrQueueClosed = errors.New("transmit queue closed")
)

// DefaultQueueSize is used when a queue is created with a non-positive size.
const DefaultQueueSize = 32

// Queue is a bounded single-consumer queue of transmit jobs. Producers never
// block: a submit against a full queue fails immediately.
type Queue struct {
	jobs      chan TxJob
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most size jobs.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		jobs: make(chan TxJob, size),
		done: make(chan struct{}),
	}
}

// TrySubmit enqueues job without blocking. A job that slips in while Close
// is running is never sent, exactly like jobs still buffered at shutdown.
func (q *Queue) TrySubmit(job TxJob) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case <-q.done:
		return ErrQueueClosed
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs returns the channel the consumer drains.
func (q *Queue) Jobs() <-chan TxJob {
	return q.jobs
}

// Done is closed when the consumer has shut the queue.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close is called by the consumer when it stops draining. The jobs channel
// itself is left open so that a racing producer cannot panic.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.jobs)
}
