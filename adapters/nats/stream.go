// Package nats carries an owned byte stream over a pair of NATS subjects so it
// can be driven by an actor owner like any socket.
package nats

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	gonanoid "github.com/matoous/go-nanoid/v2"
	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/connbox-go/core/actor"
)

// Subjects names the two directions of a stream.
type Subjects struct {
	TX string // stream -> peer
	RX string // peer -> stream
}

// SubjectsFor returns <prefix>.<streamID>.tx and .rx.
func SubjectsFor(prefix, streamID string) Subjects {
	if prefix == "" {
		prefix = "connbox"
	}
	base := prefix + "." + streamID
	return Subjects{TX: base + ".tx", RX: base + ".rx"}
}

type StreamConfig struct {
	Connect       Connector        // If nil, ConnectDefault() is used.
	Log           *slog.Logger     // Log for diagnostics (optional)
	SubjectPrefix string           // SubjectPrefix, e.g. "connbox" -> connbox.<id>.tx
	StreamID      string           // StreamID is generated when empty.
	ByteOrder     binary.ByteOrder // ByteOrder of fixed-width reads, big-endian by default.
	BufferSize    int              // BufferSize of inbound messages not yet read (default 256).
}

// Stream is an actor.Resource over NATS. Like any Resource it must only be
// used by its owner. A failed publish or an interrupted read breaks the
// Stream: a late reply would otherwise be taken for the next one.
type Stream struct {
	nc       *natsgo.Conn
	closeNc  closeFunc
	log      *slog.Logger
	subjects Subjects
	order    binary.ByteOrder

	sub     *natsgo.Subscription
	msgs    chan *natsgo.Msg
	pending []byte
	broken  error

	closed atomic.Bool
}

// Dial connects and subscribes to the inbound subject.
func Dial(cfg StreamConfig) (*Stream, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.StreamID == "" {
		cfg.StreamID = gonanoid.Must(10)
	}
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.BigEndian
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	s := &Stream{
		nc:       nc,
		closeNc:  closeNc,
		subjects: SubjectsFor(cfg.SubjectPrefix, cfg.StreamID),
		order:    cfg.ByteOrder,
		msgs:     make(chan *natsgo.Msg, cfg.BufferSize),
	}
	s.log = log.With(slog.String("resource", "nats"), slog.String("tx", s.subjects.TX))

	s.sub, err = nc.ChanSubscribe(s.subjects.RX, s.msgs)
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("nats: subscribe %s: %w", s.subjects.RX, err)
	}
	if err := nc.Flush(); err != nil {
		_ = s.sub.Unsubscribe()
		closeNc()
		return nil, fmt.Errorf("nats: flush: %w", err)
	}
	return s, nil
}

func (s *Stream) Subjects() Subjects { return s.subjects }

func (s *Stream) Write(ctx context.Context, p []byte) error {
	if s.closed.Load() {
		return io.ErrClosedPipe
	}
	if s.broken != nil {
		return s.broken
	}
	if err := ctx.Err(); err != nil {
		return s.fail("publish", err)
	}
	if err := s.nc.Publish(s.subjects.TX, p); err != nil {
		return s.fail("publish", err)
	}
	return nil
}

func (s *Stream) ReadFixed(ctx context.Context, w actor.Width) (uint64, error) {
	if s.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	if s.broken != nil {
		return 0, s.broken
	}
	if !w.Valid() {
		return 0, fmt.Errorf("nats: unsupported width %d", w)
	}
	for len(s.pending) < int(w) {
		select {
		case <-ctx.Done():
			return 0, s.fail("read", ctx.Err())
		case msg := <-s.msgs:
			s.pending = append(s.pending, msg.Data...)
		}
	}
	v, err := actor.DecodeFixed(s.order, w, s.pending[:w])
	s.pending = s.pending[w:]
	return v, err
}

func (s *Stream) fail(op string, err error) error {
	s.broken = fmt.Errorf("nats: %s: %w: %w", op, actor.ErrUnusable, err)
	s.log.Warn("stream broken", slog.Any("error", err))
	return s.broken
}

// Close unsubscribes and releases the connection. Idempotent.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.closeNc()
	s.log.Debug("stream closed")
	return err
}

// ServeLengthEcho answers every message on subjects.TX with its length as a
// big-endian uint32 on subjects.RX until ctx is done.
func ServeLengthEcho(ctx context.Context, nc *natsgo.Conn, subjects Subjects) (*natsgo.Subscription, error) {
	sub, err := nc.Subscribe(subjects.TX, func(msg *natsgo.Msg) {
		_ = nc.Publish(subjects.RX, binary.BigEndian.AppendUint32(nil, uint32(len(msg.Data))))
	})
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", subjects.TX, err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats: flush: %w", err)
	}
	context.AfterFunc(ctx, func() { _ = sub.Unsubscribe() })
	return sub, nil
}

var _ actor.Resource = (*Stream)(nil)
