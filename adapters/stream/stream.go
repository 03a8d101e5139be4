// Package stream adapts byte streams such as net.Conn to actor.Resource.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/codewandler/connbox-go/core/actor"
)

// Option configures a Conn.
type Option func(*config)

type config struct {
	order binary.ByteOrder
}

// WithByteOrder sets the byte order of fixed-width reads (default big-endian).
func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *config) {
		if order != nil {
			c.order = order
		}
	}
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// ErrEmptyPayload is returned for writes of zero bytes: the peer would never
// see them and so never reply.
var ErrEmptyPayload = errors.New("stream: empty payload")

// Conn is an actor.Resource over an io.ReadWriter. It is not safe for
// concurrent use; hand it to actor.New and nothing else.
//
// The stream carries no framing: a reply is the next w bytes read. Once a
// read or write fails, possibly halfway, the Conn is broken and every later
// call returns the first error wrapped in actor.ErrUnusable.
type Conn struct {
	rw     io.ReadWriter
	order  binary.ByteOrder
	buf    [8]byte
	broken error
}

// New wraps rw. Each Write should be one message the peer can answer on its
// own; a peer that reads the stream in chunks (see ServeConn) must see each
// payload in a single read, so keep payloads small.
func New(rw io.ReadWriter, opts ...Option) *Conn {
	cfg := &config{order: binary.BigEndian}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Conn{rw: rw, order: cfg.order}
}

func (c *Conn) Write(ctx context.Context, p []byte) error {
	if c.broken != nil {
		return c.broken
	}
	if len(p) == 0 {
		return ErrEmptyPayload
	}
	release := c.bind(ctx)
	defer release()

	if _, err := c.rw.Write(p); err != nil {
		return c.fail(ctx, "write", err)
	}
	return nil
}

func (c *Conn) ReadFixed(ctx context.Context, w actor.Width) (uint64, error) {
	if c.broken != nil {
		return 0, c.broken
	}
	if !w.Valid() {
		return 0, fmt.Errorf("read: unsupported width %d", w)
	}
	release := c.bind(ctx)
	defer release()

	b := c.buf[:w]
	if _, err := io.ReadFull(c.rw, b); err != nil {
		return 0, c.fail(ctx, "read", err)
	}
	return actor.DecodeFixed(c.order, w, b)
}

// Close closes the underlying stream if it is an io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// bind interrupts a blocked Read or Write once ctx is done, when the stream
// supports deadlines. The returned func clears the deadline again.
func (c *Conn) bind(ctx context.Context) func() {
	d, ok := c.rw.(deadliner)
	if !ok {
		return func() {}
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = d.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = d.SetDeadline(time.Time{})
	}
}

// fail marks the Conn broken. Bytes of the interrupted operation may still be
// in flight, so nothing read afterwards can be matched to a request.
func (c *Conn) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	c.broken = fmt.Errorf("%s: %w: %w", op, actor.ErrUnusable, err)
	return c.broken
}

var _ actor.Resource = (*Conn)(nil)
