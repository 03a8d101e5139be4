package actor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/codewandler/connbox-go/core/mailbox"
)

// State is the lifecycle state of an owner loop.
type State int32

const (
	StateRunning State = iota
	StateTerminated
)

func (s State) String() string {
	if s == StateTerminated {
		return "terminated"
	}
	return "running"
}

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlStep
)

type ctrlMsg struct {
	kind    ctrlKind
	applied chan struct{}
}

// owner holds the resource. Only the run goroutine touches res.
type owner struct {
	id      string
	ctx     context.Context
	log     *slog.Logger
	opts    Options
	metrics OwnerMetrics

	res     Resource
	queue   *mailbox.Queue[*envelope]
	control chan ctrlMsg

	refs     atomic.Int64
	cancel   context.CancelFunc
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	state atomic.Int32
	errMu sync.Mutex
	err   error
}

func newOwner(res Resource, opts Options) *owner {
	// canceled by Stop as well, so an in-flight resource call is interrupted
	ctx, cancel := context.WithCancel(opts.Context)
	return &owner{
		id:      opts.ID,
		ctx:     ctx,
		cancel:  cancel,
		log:     opts.Logger,
		opts:    opts,
		metrics: opts.Metrics,
		res:     res,
		queue:   mailbox.NewQueue[*envelope](opts.MailboxSize),
		control: make(chan ctrlMsg),
		done:    make(chan struct{}),
	}
}

func (o *owner) run() {
	defer close(o.done)

	var cause error
	defer func() { o.terminate(cause) }()

	o.log.Debug("owner started", slog.Int("mailbox_size", o.queue.Cap()), slog.String("policy", o.opts.FailurePolicy.String()))

	// execution state lives only in this goroutine
	paused := false
	permit := 1 // when >0 one request may be processed; renewed unless paused

	apply := func(c ctrlMsg) {
		switch c.kind {
		case ctrlPause:
			paused = true
			permit = 0
		case ctrlResume:
			paused = false
			if permit <= 0 {
				permit = 1
			}
		case ctrlStep:
			permit++
		}
		close(c.applied)
	}

	for {
		// control has priority over the mailbox
		if !o.drainControl(apply) {
			cause = o.stopCause(nil)
			return
		}

		if permit <= 0 {
			select {
			case <-o.ctx.Done():
				cause = o.stopCause(nil)
				return
			case c := <-o.control:
				apply(c)
			}
			continue
		}

		select {
		case <-o.ctx.Done():
			cause = o.stopCause(nil)
			return
		case c := <-o.control:
			apply(c)
		case env, ok := <-o.queue.Recv():
			if !ok {
				// every handle closed and the queue is drained
				return
			}
			permit--
			if err := o.handle(env); err != nil {
				cause = o.stopCause(err)
				return
			}
			if !paused {
				permit++
			}
		}
	}
}

// stopCause picks the termination cause once the loop decided to exit.
func (o *owner) stopCause(err error) error {
	switch {
	case o.stopped.Load():
		return ErrStopped
	case err != nil:
		return err
	}
	return context.Cause(o.ctx)
}

func (o *owner) stop() {
	o.stopOnce.Do(func() {
		o.stopped.Store(true)
		o.cancel()
	})
}

func (o *owner) drainControl(apply func(ctrlMsg)) bool {
	for {
		select {
		case <-o.ctx.Done():
			return false
		case c := <-o.control:
			apply(c)
		default:
			return true
		}
	}
}

// handle executes one request and fulfills its reply slot. A non-nil return
// is a fatal error that ends the loop.
func (o *owner) handle(env *envelope) error {
	kind := env.req.Kind.String()
	o.metrics.MailboxDepth(o.id, o.queue.Len())

	timer := o.metrics.RequestDuration(kind)
	value, err := o.execute(env.req)
	timer.ObserveDuration()
	o.metrics.RequestProcessed(kind, err == nil)

	if ferr := env.reply.Fulfill(value, err); ferr != nil {
		// the caller gave up waiting; the side effect already happened
		o.metrics.ReplyAbandoned(kind)
		o.log.Debug("reply abandoned", slog.String("kind", kind), slog.Any("reason", ferr))
	}

	if err == nil {
		return nil
	}
	if o.fatal(err) {
		return err
	}
	o.log.Warn("request failed", slog.String("kind", kind), slog.Any("error", err))
	return nil
}

func (o *owner) fatal(err error) bool {
	switch {
	case o.opts.FailurePolicy == FailFatal, errors.Is(err, ErrUnusable):
		return true
	case o.opts.IsFatal != nil:
		return o.opts.IsFatal(err)
	}
	return false
}

func (o *owner) execute(req Request) (value uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.RequestPanic(req.Kind.String())
			o.opts.OnPanic(r, debug.Stack(), req)
			value = 0
			err = &ResourceError{Op: "call", Kind: req.Kind, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()

	ctx := o.ctx
	if o.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RequestTimeout)
		defer cancel()
	}

	if req.Kind == KindExchange || req.Kind == KindWrite {
		if err := o.res.Write(ctx, req.Payload); err != nil {
			return 0, &ResourceError{Op: "write", Kind: req.Kind, Err: err}
		}
	}
	if req.Kind == KindExchange || req.Kind == KindRead {
		v, err := o.res.ReadFixed(ctx, req.Width)
		if err != nil {
			return 0, &ResourceError{Op: "read", Kind: req.Kind, Err: err}
		}
		return v, nil
	}
	return 0, nil
}

func (o *owner) terminate(cause error) {
	defer o.cancel()

	o.errMu.Lock()
	o.err = cause
	o.errMu.Unlock()
	o.state.Store(int32(StateTerminated))

	pending := o.queue.CloseRecv()
	for _, env := range pending {
		env.reply.Drop()
	}
	if len(pending) > 0 {
		o.metrics.RepliesDropped(o.id, len(pending))
	}
	o.metrics.MailboxDepth(o.id, 0)

	if c, ok := o.res.(io.Closer); ok {
		if err := c.Close(); err != nil {
			o.log.Warn("failed to close resource", slog.Any("error", err))
		}
	}

	reason := terminationReason(cause)
	o.metrics.OwnerTerminated(reason)
	o.log.Debug("owner terminated", slog.String("reason", reason), slog.Int("dropped", len(pending)), slog.Any("cause", cause))
}

func terminationReason(cause error) string {
	var re *ResourceError
	switch {
	case cause == nil:
		return "drained"
	case errors.As(cause, &re):
		return "fatal"
	case errors.Is(cause, ErrStopped):
		return "stopped"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return "canceled"
	}
	return "fatal"
}

func (o *owner) sendCtrl(k ctrlKind) error {
	c := ctrlMsg{kind: k, applied: make(chan struct{})}
	select {
	case <-o.done:
		return ErrClosed
	case o.control <- c:
	}
	select {
	case <-o.done:
		return ErrClosed
	case <-c.applied:
		return nil
	}
}
