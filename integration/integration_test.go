package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	promadapter "github.com/codewandler/connbox-go/adapters/prometheus"
	"github.com/codewandler/connbox-go/adapters/stream"
	"github.com/codewandler/connbox-go/core/actor"
)

func dialEcho(t *testing.T, ctx context.Context, log *slog.Logger) net.Conn {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = stream.ServeLengthEcho(ctx, ln, log) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	return conn
}

func TestIntegration(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)
	log := slog.Default()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	root := actor.New(stream.New(dialEcho(t, ctx, log)), actor.Options{
		Context:     ctx,
		Logger:      log,
		MailboxSize: 4,
		Metrics:     promadapter.NewOwnerMetrics(prometheus.NewRegistry()),
	})

	const (
		callers  = 20
		requests = 50
	)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for c := 0; c < callers; c++ {
		h := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.Close()
			for i := 0; i < requests; i++ {
				payload := []byte(fmt.Sprintf("caller-%d-%d", c, i))
				v, err := h.Submit(ctx, payload)
				if err != nil {
					errs <- err
					return
				}
				if v != uint64(len(payload)) {
					errs <- fmt.Errorf("caller %d got %d for %q", c, v, payload)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	root.Close()
	select {
	case <-root.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("owner did not terminate after the last handle closed")
	}
	require.NoError(t, root.Err())
}

func TestIntegration_PeerGone(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	client, server := net.Pipe()
	h := actor.New(stream.New(client), actor.Options{Context: ctx})

	go func() { _ = stream.ServeConn(ctx, server) }()
	v, err := h.Submit(ctx, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)

	require.NoError(t, server.Close())

	_, err = h.Submit(ctx, []byte("abc"))
	var re *actor.ResourceError
	require.ErrorAs(t, err, &re)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.ErrorIs(t, err, actor.ErrUnusable)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("owner survived a fatal resource error")
	}
	_, err = h.Submit(ctx, []byte("abc"))
	require.ErrorIs(t, err, actor.ErrClosed)
}
