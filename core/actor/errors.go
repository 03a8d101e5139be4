package actor

import (
	"errors"
	"fmt"

	"github.com/codewandler/connbox-go/core/mailbox"
)

var (
	// ErrClosed means the owner is gone and the request was not accepted.
	ErrClosed = mailbox.ErrClosed
	// ErrNoReply means the request was accepted but the owner terminated
	// before servicing it. errors.Is(ErrNoReply, ErrClosed) holds.
	ErrNoReply = mailbox.ErrNoReply
	// ErrHandleClosed is returned when submitting through a closed Handle.
	ErrHandleClosed = fmt.Errorf("%w: handle closed", ErrClosed)

	// ErrUnusable marks resource errors that leave the resource out of sync
	// with its peer, e.g. a read interrupted after the request was written.
	// The owner always terminates on them, whatever the FailurePolicy.
	ErrUnusable = errors.New("resource unusable")
	// ErrMailboxFull is returned by TrySubmit when the mailbox has no space.
	ErrMailboxFull = mailbox.ErrFull

	ErrStopped        = errors.New("owner stopped")
	ErrPanic          = errors.New("resource panicked")
	ErrInvalidRequest = errors.New("invalid request")
)

// ResourceError wraps a failure of the owned resource for the request that
// triggered it.
type ResourceError struct {
	Op   string // "write" or "read"
	Kind Kind
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
