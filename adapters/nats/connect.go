package nats

import (
	"os"
	"sync"

	natsgo "github.com/nats-io/nats.go"
)

type closeFunc = func()

// Connector opens a NATS connection and returns the func that releases it.
type Connector func() (nc *natsgo.Conn, release closeFunc, err error)

// ReuseConnection shares a single connection between every caller of the
// returned Connector. The connection is closed when the last lease is
// released; the next call dials again.
func ReuseConnection(connect Connector) Connector {
	var (
		mu      sync.Mutex
		nc      *natsgo.Conn
		closeNc closeFunc
		leases  int
	)
	release := func() {
		mu.Lock()
		defer mu.Unlock()
		leases--
		if leases == 0 && nc != nil {
			closeNc()
			nc = nil
		}
	}
	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if nc == nil {
			c, cl, err := connect()
			if err != nil {
				return nil, nil, err
			}
			nc, closeNc = c, cl
		}
		leases++
		var once sync.Once
		return nc, func() { once.Do(release) }, nil
	}
}

// ConnectURL dials natsURL with a bounded reconnect budget.
func ConnectURL(natsURL string, opts ...natsgo.Option) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(
			natsURL,
			append([]natsgo.Option{natsgo.MaxReconnects(3)}, opts...)...,
		)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ConnectDefault dials $NATS_URL, falling back to the local default server.
func ConnectDefault() Connector {
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		return ConnectURL(natsURL)
	}
	return ConnectURL(natsgo.DefaultURL)
}
