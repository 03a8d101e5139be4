package actor

import (
	"fmt"

	"github.com/codewandler/connbox-go/core/mailbox"
)

// Kind tags the operation a Request performs against the resource.
type Kind uint8

const (
	// KindExchange writes the payload, then reads one fixed-width value.
	KindExchange Kind = iota
	// KindWrite only writes the payload; the reply value is 0.
	KindWrite
	// KindRead only reads one fixed-width value.
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindExchange:
		return "exchange"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Request describes one operation against the owned resource.
type Request struct {
	Kind    Kind
	Payload []byte
	Width   Width
}

// Exchange is the reference request: send p, read back a w-wide value.
func Exchange(p []byte, w Width) Request { return Request{Kind: KindExchange, Payload: p, Width: w} }

func (r Request) validate() error {
	switch r.Kind {
	case KindWrite:
		return nil
	case KindExchange, KindRead:
		if !r.Width.Valid() {
			return fmt.Errorf("%w: %s with width %d", ErrInvalidRequest, r.Kind, r.Width)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %s", ErrInvalidRequest, r.Kind)
}

// envelope pairs a request with the reply slot of the caller that sent it.
type envelope struct {
	req   Request
	reply *mailbox.ReplySlot[uint64]
}
