package actor

import "github.com/codewandler/connbox-go/core/metrics"

// OwnerMetrics is the instrumentation surface of an owner loop.
// Implementations must be safe for concurrent use.
type OwnerMetrics interface {
	RequestDuration(kind string) metrics.Timer
	RequestProcessed(kind string, success bool)
	RequestPanic(kind string)
	ReplyAbandoned(kind string)

	MailboxDepth(ownerID string, depth int)
	RepliesDropped(ownerID string, n int)
	OwnerTerminated(reason string)
}

type nopOwnerMetrics struct{}

func (nopOwnerMetrics) RequestDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopOwnerMetrics) RequestProcessed(string, bool)        {}
func (nopOwnerMetrics) RequestPanic(string)                  {}
func (nopOwnerMetrics) ReplyAbandoned(string)                {}

func (nopOwnerMetrics) MailboxDepth(string, int)   {}
func (nopOwnerMetrics) RepliesDropped(string, int) {}
func (nopOwnerMetrics) OwnerTerminated(string)     {}

// NopOwnerMetrics returns an OwnerMetrics that records nothing.
func NopOwnerMetrics() OwnerMetrics { return nopOwnerMetrics{} }
