package actor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/codewandler/connbox-go/core/mailbox"
)

// Handle submits work to an owner. Handles are cheap: Clone one per caller
// and Close it when done. The owner drains its queue and terminates once the
// last clone is closed.
type Handle struct {
	o      *owner
	closed atomic.Bool
}

// New takes ownership of res, starts the owner goroutine and returns the
// root Handle. res must not be used by anything else afterwards.
func New(res Resource, opts Options) *Handle {
	opts = opts.withDefaults()
	o := newOwner(res, opts)
	o.refs.Store(1)
	go o.run()
	return &Handle{o: o}
}

// Clone returns a new Handle for the same owner. Cloning a closed handle
// yields a closed handle.
func (h *Handle) Clone() *Handle {
	if h.closed.Load() {
		c := &Handle{o: h.o}
		c.closed.Store(true)
		return c
	}
	h.o.refs.Add(1)
	return &Handle{o: h.o}
}

// Close releases this handle. Idempotent. Closing the last handle lets the
// owner finish the queued requests and then terminate.
func (h *Handle) Close() {
	if h.closed.Swap(true) {
		return
	}
	if h.o.refs.Add(-1) == 0 {
		h.o.queue.CloseSend()
	}
}

// Submit writes payload and waits for the fixed-width reply
// (Options.ReplyWidth).
func (h *Handle) Submit(ctx context.Context, payload []byte) (uint64, error) {
	return h.Do(ctx, Exchange(payload, h.o.opts.ReplyWidth))
}

// TrySubmit is Submit without waiting for mailbox space: it fails with
// ErrMailboxFull instead of blocking. Waiting for the reply still honors ctx.
func (h *Handle) TrySubmit(ctx context.Context, payload []byte) (uint64, error) {
	if h.closed.Load() {
		return 0, ErrHandleClosed
	}
	req := Exchange(payload, h.o.opts.ReplyWidth)
	if err := req.validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	env := &envelope{req: req, reply: mailbox.NewReplySlot[uint64]()}
	if err := h.o.queue.TryEnqueue(env); err != nil {
		return 0, err
	}
	return env.reply.Wait(ctx)
}

// Write sends payload without reading a reply.
func (h *Handle) Write(ctx context.Context, payload []byte) error {
	_, err := h.Do(ctx, Request{Kind: KindWrite, Payload: payload})
	return err
}

// ReadFixed reads one value of width w.
func (h *Handle) ReadFixed(ctx context.Context, w Width) (uint64, error) {
	return h.Do(ctx, Request{Kind: KindRead, Width: w})
}

// Do enqueues req and waits for its reply. Errors are ErrClosed (owner gone,
// request not accepted), ErrNoReply (accepted but never serviced), a
// *ResourceError, or the ctx error. A canceled wait does not retract the
// request: the owner still performs it.
func (h *Handle) Do(ctx context.Context, req Request) (uint64, error) {
	if h.closed.Load() {
		return 0, ErrHandleClosed
	}
	if err := req.validate(); err != nil {
		return 0, err
	}

	env := &envelope{req: req, reply: mailbox.NewReplySlot[uint64]()}
	if err := h.o.queue.Enqueue(ctx, env); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, fmt.Errorf("enqueue %s: %w", req.Kind, err)
	}
	return env.reply.Wait(ctx)
}

// Stop forces the owner to terminate after the request in progress. Queued
// requests observe ErrNoReply. Stop waits for termination and is idempotent.
func (h *Handle) Stop() {
	h.o.stop()
	<-h.o.done
}

// Pause stops the owner from taking requests off the queue until Resume or
// Step. It returns once the owner applied it.
func (h *Handle) Pause() error { return h.o.sendCtrl(ctrlPause) }

// Resume continues normal processing.
func (h *Handle) Resume() error { return h.o.sendCtrl(ctrlResume) }

// Step lets a paused owner process exactly one request.
func (h *Handle) Step() error { return h.o.sendCtrl(ctrlStep) }

// Done is closed when the owner terminated.
func (h *Handle) Done() <-chan struct{} { return h.o.done }

// Err returns why the owner terminated: nil after a natural drain,
// ErrStopped, the owner context error, or the fatal *ResourceError.
// It is nil while the owner is running.
func (h *Handle) Err() error {
	h.o.errMu.Lock()
	defer h.o.errMu.Unlock()
	return h.o.err
}

func (h *Handle) State() State { return State(h.o.state.Load()) }

func (h *Handle) ID() string { return h.o.id }

// Pending reports how many requests wait in the mailbox.
func (h *Handle) Pending() int { return h.o.queue.Len() }
