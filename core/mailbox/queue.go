package mailbox

import (
	"context"
	"sync"
)

// DefaultCapacity is used when NewQueue is given a non-positive capacity.
const DefaultCapacity = 8

// Queue is a bounded FIFO shared by many producers and drained by exactly
// one consumer. Items whose Enqueue returned before another Enqueue started
// are dequeued first.
type Queue[T any] struct {
	items chan T

	mu         sync.Mutex
	sendClosed bool
	recvClosed bool
	// enqueues that passed the closed check and may still touch items
	inflight sync.WaitGroup

	gone     chan struct{}
	goneOnce sync.Once
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{
		items: make(chan T, capacity),
		gone:  make(chan struct{}),
	}
}

// Enqueue appends item to the tail of the queue. It blocks while the queue is
// full, until space frees up, the consumer terminates (ErrClosed) or ctx is
// done.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.sendClosed || q.recvClosed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.inflight.Add(1)
	q.mu.Unlock()
	defer q.inflight.Done()

	select {
	case <-q.gone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.items <- item:
		return nil
	}
}

// TryEnqueue is the non-blocking variant of Enqueue. It fails with ErrFull
// when the queue has no free slot and with ErrClosed once it is closed.
func (q *Queue[T]) TryEnqueue(item T) error {
	q.mu.Lock()
	if q.sendClosed || q.recvClosed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.inflight.Add(1)
	q.mu.Unlock()
	defer q.inflight.Done()

	select {
	case <-q.gone:
		return ErrClosed
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue removes the head of the queue, blocking while the queue is empty.
// It returns ErrEndOfStream once the producer side is closed and drained.
// Only the consumer may call Dequeue.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case item, ok := <-q.items:
		if !ok {
			return zero, ErrEndOfStream
		}
		return item, nil
	}
}

// Recv exposes the receive side for consumers that select over several
// channels. A closed channel means end-of-stream.
func (q *Queue[T]) Recv() <-chan T { return q.items }

// Len reports the number of queued items.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap reports the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }

// CloseSend signals that no more items will be produced. Items already queued
// stay available to the consumer. Idempotent.
func (q *Queue[T]) CloseSend() {
	q.mu.Lock()
	if q.sendClosed {
		q.mu.Unlock()
		return
	}
	q.sendClosed = true
	q.mu.Unlock()

	// blocked producers either get space from the consumer or are released
	// by CloseRecv, so this wait terminates
	q.inflight.Wait()
	close(q.items)
}

// CloseRecv marks the consumer as gone: pending and future Enqueue calls fail
// with ErrClosed. It returns the items that were queued but never consumed.
// Only the consumer may call CloseRecv. Subsequent calls return nil.
func (q *Queue[T]) CloseRecv() []T {
	q.mu.Lock()
	if q.recvClosed {
		q.mu.Unlock()
		return nil
	}
	q.recvClosed = true
	q.mu.Unlock()

	q.goneOnce.Do(func() { close(q.gone) })
	q.inflight.Wait()

	var rest []T
	for {
		select {
		case item, ok := <-q.items:
			if !ok {
				return rest
			}
			rest = append(rest, item)
		default:
			return rest
		}
	}
}
