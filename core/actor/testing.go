package actor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"testing"
)

// LengthEchoResource is an in-memory peer that answers every write with the
// write's length as a big-endian uint32, the way the reference echo server
// does. Reads consume the queued answers byte-wise.
type LengthEchoResource struct {
	mu      sync.Mutex
	pending []byte
	writes  [][]byte
	closed  bool
}

func NewLengthEchoResource() *LengthEchoResource { return &LengthEchoResource{} }

func (r *LengthEchoResource) Write(_ context.Context, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return io.ErrClosedPipe
	}
	r.writes = append(r.writes, append([]byte(nil), p...))
	r.pending = binary.BigEndian.AppendUint32(r.pending, uint32(len(p)))
	return nil
}

func (r *LengthEchoResource) ReadFixed(_ context.Context, w Width) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if len(r.pending) < int(w) {
		return 0, fmt.Errorf("need %d bytes, have %d: %w", w, len(r.pending), io.ErrUnexpectedEOF)
	}
	b := r.pending[:w]
	r.pending = r.pending[w:]
	return DecodeFixed(binary.BigEndian, w, b)
}

func (r *LengthEchoResource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Writes returns a copy of every payload written so far, in order.
func (r *LengthEchoResource) Writes() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.writes...)
}

func (r *LengthEchoResource) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// FuncResource adapts plain functions to Resource. Nil funcs succeed with
// zero values.
type FuncResource struct {
	WriteFunc func(ctx context.Context, p []byte) error
	ReadFunc  func(ctx context.Context, w Width) (uint64, error)
}

func (f FuncResource) Write(ctx context.Context, p []byte) error {
	if f.WriteFunc == nil {
		return nil
	}
	return f.WriteFunc(ctx, p)
}

func (f FuncResource) ReadFixed(ctx context.Context, w Width) (uint64, error) {
	if f.ReadFunc == nil {
		return 0, nil
	}
	return f.ReadFunc(ctx, w)
}

// CreateTestHandle starts an owner bound to the test context and stops it on
// cleanup.
func CreateTestHandle(t *testing.T, res Resource, opts Options) *Handle {
	if opts.Context == nil {
		opts.Context = t.Context()
	}
	h := New(res, opts)
	t.Cleanup(h.Stop)
	return h
}
