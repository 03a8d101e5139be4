package nats

import (
	"context"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
	Skip(args ...any)
}

// NewTestContainer starts a throwaway nats server and returns a Connector
// for it. It skips the test in -short mode.
func NewTestContainer(t Testing, short bool) Connector {
	if short {
		t.Skip("nats container tests need docker")
	}
	ctx := t.Context()
	natsC, err := testcontainers.Run(
		ctx, "nats:latest",
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(natsC); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})

	endpoint, err := natsC.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	t.Logf("nats endpoint: %s", endpoint)
	return ConnectURL(endpoint)
}
