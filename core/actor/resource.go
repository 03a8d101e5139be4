package actor

import (
	"context"
	"encoding/binary"
	"fmt"
)

type (
	// Resource is the exclusively owned collaborator, typically a byte-stream
	// connection. Only the owner goroutine ever calls it, so implementations
	// need no locking. If it also implements io.Closer, the owner closes it
	// when terminating.
	Resource interface {
		Write(ctx context.Context, p []byte) error
		ReadFixed(ctx context.Context, w Width) (uint64, error)
	}

	// Width is the size in bytes of a fixed-width value read from a Resource.
	Width uint8
)

const (
	Width8  Width = 1
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

func (w Width) String() string { return fmt.Sprintf("u%d", int(w)*8) }

// DecodeFixed turns exactly w bytes into a value using order.
func DecodeFixed(order binary.ByteOrder, w Width, b []byte) (uint64, error) {
	if len(b) != int(w) {
		return 0, fmt.Errorf("decode %s: got %d bytes", w, len(b))
	}
	switch w {
	case Width8:
		return uint64(b[0]), nil
	case Width16:
		return uint64(order.Uint16(b)), nil
	case Width32:
		return uint64(order.Uint32(b)), nil
	case Width64:
		return order.Uint64(b), nil
	}
	return 0, fmt.Errorf("decode: unsupported width %d", w)
}

// EncodeFixed is the inverse of DecodeFixed. Values are truncated to w.
func EncodeFixed(order binary.ByteOrder, w Width, v uint64) ([]byte, error) {
	b := make([]byte, w)
	switch w {
	case Width8:
		b[0] = byte(v)
	case Width16:
		order.PutUint16(b, uint16(v))
	case Width32:
		order.PutUint32(b, uint32(v))
	case Width64:
		order.PutUint64(b, v)
	default:
		return nil, fmt.Errorf("encode: unsupported width %d", w)
	}
	return b, nil
}
