// Package actor serializes all access to an exclusively owned resource, such
// as a network connection, through a single owner goroutine fed by a bounded
// mailbox.
//
// # Ownership
//
// [New] takes the [Resource] by value and starts the owner. From then on only
// the owner goroutine calls the resource, so the resource needs no locks:
//
//	h := actor.New(conn, actor.Options{MailboxSize: 8})
//	defer h.Close()
//
//	n, err := h.Submit(ctx, []byte("hello"))
//
// # Handles
//
// A [Handle] is the producer end of the mailbox. Give every caller its own
// [Handle.Clone] and [Handle.Close] it when done; once the last clone is
// closed the owner finishes the queued requests and terminates. [Handle.Stop]
// terminates immediately, dropping queued requests.
//
// # Replies and errors
//
// Every request carries its own reply slot, so concurrent callers never see
// each other's results. A caller receives either the value or one of:
//
//   - [ErrClosed]: the owner is gone, the request was not accepted
//   - [ErrNoReply]: accepted, but the owner terminated before serving it
//   - [*ResourceError]: the resource failed for this request
//   - the caller's context error
//
// A caller that stops waiting does not retract its request: the owner still
// performs the write. Resource errors are isolated to their request unless
// [FailFatal] or [Options.IsFatal] says otherwise.
//
// # Lifecycle control
//
//	h.Pause()   // stop taking requests off the mailbox
//	h.Step()    // serve exactly one request
//	h.Resume()  // continue normally
//	<-h.Done()  // wait for termination
package actor
