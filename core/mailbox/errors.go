package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Enqueue once the queue no longer accepts items.
	ErrClosed = errors.New("mailbox closed")
	// ErrFull is returned by TryEnqueue when the queue has no free slot.
	ErrFull = errors.New("mailbox full")
	// ErrEndOfStream is returned by Dequeue after the producer side was
	// closed and every queued item was consumed.
	ErrEndOfStream = errors.New("mailbox drained")

	// ErrNoReply is observed by a waiter whose slot was dropped unfulfilled.
	ErrNoReply = fmt.Errorf("%w: reply slot dropped", ErrClosed)
	// ErrAbandoned is returned by Fulfill when the waiter already gave up.
	ErrAbandoned = errors.New("reply slot abandoned")
	// ErrSlotSpent is returned when a slot is fulfilled or dropped twice.
	ErrSlotSpent = errors.New("reply slot already used")
)
