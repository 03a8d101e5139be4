package actor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// FailurePolicy decides whether a resource error ends the owner loop.
type FailurePolicy int

const (
	// FailIsolated reports the error to the failing request only and keeps
	// serving the queue.
	FailIsolated FailurePolicy = iota
	// FailFatal terminates the owner after the first resource error. Requests
	// still queued observe ErrNoReply, later submissions ErrClosed.
	FailFatal
)

func (p FailurePolicy) String() string {
	switch p {
	case FailIsolated:
		return "isolated"
	case FailFatal:
		return "fatal"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// DefaultMailboxSize matches the small mailbox of the reference owner.
const DefaultMailboxSize = 8

type (
	OnPanic func(recovered any, stack []byte, req Request)

	Options struct {
		// ID names the owner in logs and metrics. Generated when empty.
		ID string
		// MailboxSize bounds the queue; producers block beyond it.
		MailboxSize int
		// ReplyWidth is the width read by Submit. Defaults to Width32.
		ReplyWidth Width
		// FailurePolicy sets the blast radius of resource errors.
		FailurePolicy FailurePolicy
		// IsFatal marks errors after which the resource is unusable, even
		// under FailIsolated (e.g. io.EOF on a closed connection). Errors
		// wrapping ErrUnusable are always fatal.
		IsFatal func(err error) bool
		// RequestTimeout bounds each resource operation when > 0.
		RequestTimeout time.Duration
		// Context terminates the owner when canceled.
		Context context.Context
		Logger  *slog.Logger
		Metrics OwnerMetrics
		OnPanic OnPanic
	}
)

func (o Options) withDefaults() Options {
	if o.ID == "" {
		o.ID = "owner-" + gonanoid.Must(6)
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = DefaultMailboxSize
	}
	if o.ReplyWidth == 0 {
		o.ReplyWidth = Width32
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With(slog.String("owner", o.ID))
	if o.Metrics == nil {
		o.Metrics = NopOwnerMetrics()
	}
	if o.OnPanic == nil {
		log := o.Logger
		o.OnPanic = func(recovered any, stack []byte, req Request) {
			log.Error("resource panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.String("kind", req.Kind.String()))
		}
	}
	return o
}
