package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
)

// MaxChunk is the largest chunk ServeConn answers with a single length.
const MaxChunk = 64 * 1024

// ServeConn answers every chunk read from conn with the chunk length as a
// big-endian uint32 until conn fails or ctx is done. A chunk is whatever one
// Read returns: a payload split across segments, or longer than MaxChunk, is
// answered with several lengths, and peers should not pipeline writes.
func ServeConn(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, MaxChunk)
	hdr := make([]byte, 4)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(hdr, uint32(n))
			if _, werr := conn.Write(hdr); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// ServeLengthEcho accepts connections on ln and runs ServeConn for each until
// ctx is done.
func ServeLengthEcho(ctx context.Context, ln net.Listener, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("server", "length-echo"), slog.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Debug("accepted", slog.String("remote", conn.RemoteAddr().String()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			if err := ServeConn(ctx, conn); err != nil {
				log.Warn("connection failed", slog.Any("error", err))
			}
		}()
	}
}
