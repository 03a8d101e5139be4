// Package mailbox provides the two concurrency primitives an owner loop is
// built from:
//
//   - [Queue]: a bounded multi-producer single-consumer FIFO with separate
//     close signals for the producer side ([Queue.CloseSend]) and the
//     consumer side ([Queue.CloseRecv]).
//   - [ReplySlot]: a one-shot, single-value reply cell created per request
//     and fulfilled at most once.
//
// # Queue lifecycle
//
// Producers call [Queue.Enqueue], which blocks while the queue is at capacity.
// The consumer reads with [Queue.Dequeue] or selects on [Queue.Recv].
//
// Closing the producer side lets the consumer drain what is left and then
// observe [ErrEndOfStream]. Closing the consumer side fails every current and
// future Enqueue with [ErrClosed] and hands the undelivered items back to the
// consumer so their reply slots can be dropped:
//
//	for _, req := range q.CloseRecv() {
//	    req.Reply.Drop()
//	}
//
// # Reply slots
//
// A waiter that gives up (context canceled) abandons its slot. A later
// [ReplySlot.Fulfill] then reports [ErrAbandoned] and never blocks. A slot
// that is dropped unfulfilled wakes its waiter with [ErrNoReply].
package mailbox
