package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/connbox-go/core/actor"
)

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeLengthEcho(ctx, ln, nil) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return ln.Addr().String()
}

func TestConn_OverTCP_Scenario(t *testing.T) {
	addr := startEchoServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	h := actor.CreateTestHandle(t, New(conn), actor.Options{})

	v, err := h.Submit(t.Context(), []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)

	a, b := h.Clone(), h.Clone()
	var (
		wg         sync.WaitGroup
		va, vb     uint64
		errA, errB error
	)
	wg.Add(2)
	go func() { defer wg.Done(); va, errA = a.Submit(t.Context(), []byte("ab")) }()
	go func() { defer wg.Done(); vb, errB = b.Submit(t.Context(), []byte("cde")) }()
	wg.Wait()
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, uint64(2), va)
	require.Equal(t, uint64(3), vb)

	a.Close()
	b.Close()
	h.Close()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("owner did not drain")
	}
	require.NoError(t, h.Err())
}

func TestConn_OverPipe(t *testing.T) {
	client, server := net.Pipe()
	go func() { _ = ServeConn(t.Context(), server) }()

	c := New(client)
	defer c.Close()

	require.NoError(t, c.Write(t.Context(), []byte("pipe!")))
	v, err := c.ReadFixed(t.Context(), actor.Width32)
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)
}

func TestConn_ContextDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := New(client)
	defer c.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ReadFixed(ctx, actor.Width32)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, actor.ErrUnusable)

	// the late reply is never handed to the next read
	go func() { _, _ = server.Write([]byte{0, 0, 0, 9}) }()
	_, err = c.ReadFixed(t.Context(), actor.Width32)
	require.ErrorIs(t, err, actor.ErrUnusable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, c.Write(t.Context(), []byte("x")), actor.ErrUnusable)
}

func TestConn_ContextCanceled(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := New(client)
	defer c.Close()

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.ReadFixed(ctx, actor.Width16)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, actor.ErrUnusable)
}

func TestConn_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	require.ErrorIs(t, c.Write(t.Context(), nil), ErrEmptyPayload)

	// rejected before touching the stream, so the Conn stays usable
	require.NoError(t, c.Write(t.Context(), []byte("ok")))
	require.Equal(t, "ok", buf.String())
}

// startSlowFirstReplyServer answers the first chunk only after delay, all
// later chunks immediately.
func startSlowFirstReplyServer(t *testing.T, delay time.Duration) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		for first := true; ; first = false {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if first {
				time.Sleep(delay)
			}
			if _, err := conn.Write(binary.BigEndian.AppendUint32(nil, uint32(n))); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestConn_TimedOutExchangeEndsOwner(t *testing.T) {
	addr := startSlowFirstReplyServer(t, 100*time.Millisecond)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	h := actor.CreateTestHandle(t, New(conn), actor.Options{RequestTimeout: 30 * time.Millisecond})

	_, err = h.Submit(t.Context(), []byte("hello"))
	var re *actor.ResourceError
	require.ErrorAs(t, err, &re)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, actor.ErrUnusable)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("owner kept running on a broken stream")
	}
	require.Equal(t, actor.StateTerminated, h.State())
	require.ErrorIs(t, h.Err(), actor.ErrUnusable)

	// give the late reply time to arrive; it must not become this answer
	time.Sleep(150 * time.Millisecond)
	v, err := h.Submit(t.Context(), []byte("abc"))
	require.ErrorIs(t, err, actor.ErrClosed)
	require.Zero(t, v)
}

func TestConn_PlainReadWriter(t *testing.T) {
	var rw struct {
		bytes.Buffer
	}
	rw.Write([]byte{7, 0})

	c := New(&rw, WithByteOrder(binary.LittleEndian))
	v, err := c.ReadFixed(t.Context(), actor.Width16)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	require.NoError(t, c.Write(t.Context(), []byte("x")))
	require.Equal(t, "x", rw.String())
	require.NoError(t, c.Close())

	_, err = c.ReadFixed(t.Context(), actor.Width(5))
	require.Error(t, err)
}

func TestConn_ShortRead(t *testing.T) {
	c := New(bytes.NewBuffer([]byte{1, 2}))
	_, err := c.ReadFixed(t.Context(), actor.Width32)
	require.Error(t, err)
}
