package mailbox

import (
	"context"
	"sync/atomic"
)

const (
	slotPending uint32 = iota
	slotFulfilled
	slotDropped
	slotAbandoned
)

// Reply is the value carried by a ReplySlot.
type Reply[V any] struct {
	Value V
	Err   error
}

// ReplySlot is a single-use reply cell. Exactly one party fulfills or drops
// it and exactly one waiter reads it.
type ReplySlot[V any] struct {
	ch    chan Reply[V]
	state atomic.Uint32
}

// NewReplySlot creates an empty slot.
func NewReplySlot[V any]() *ReplySlot[V] {
	return &ReplySlot[V]{ch: make(chan Reply[V], 1)}
}

// Fulfill delivers the outcome. It never blocks. ErrAbandoned means the
// waiter is gone, which is an expected outcome for the caller of Fulfill.
func (s *ReplySlot[V]) Fulfill(value V, err error) error {
	if !s.state.CompareAndSwap(slotPending, slotFulfilled) {
		if s.state.Load() == slotAbandoned {
			return ErrAbandoned
		}
		return ErrSlotSpent
	}
	s.ch <- Reply[V]{Value: value, Err: err}
	return nil
}

// Drop releases the slot without a value; the waiter observes ErrNoReply.
// It reports whether the slot was still pending.
func (s *ReplySlot[V]) Drop() bool {
	if !s.state.CompareAndSwap(slotPending, slotDropped) {
		return false
	}
	close(s.ch)
	return true
}

// Abandon marks the waiter as gone. It reports false when the outcome was
// already decided.
func (s *ReplySlot[V]) Abandon() bool {
	return s.state.CompareAndSwap(slotPending, slotAbandoned)
}

// Wait blocks until the slot is fulfilled or dropped, or ctx is done. On ctx
// cancellation the slot is abandoned, unless the outcome raced in first, in
// which case that outcome is returned.
func (s *ReplySlot[V]) Wait(ctx context.Context) (V, error) {
	var zero V
	select {
	case r, ok := <-s.ch:
		if !ok {
			return zero, ErrNoReply
		}
		return r.Value, r.Err
	case <-ctx.Done():
		if s.Abandon() || s.state.Load() == slotAbandoned {
			return zero, ctx.Err()
		}
		// fulfilled or dropped: the value (or close) is in flight
		r, ok := <-s.ch
		if !ok {
			return zero, ErrNoReply
		}
		return r.Value, r.Err
	}
}

// Done reports whether the slot was fulfilled, dropped or abandoned.
func (s *ReplySlot[V]) Done() bool { return s.state.Load() != slotPending }
