package valkeytest

import (
	"context"
	"net"
	"slices"

	"github.com/docker/go-connections/nat"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const image = "valkey/valkey:8-alpine"

// Instance is a running ValKey container with a connected client.
type Instance struct {
	Client valkey.Client
	Port   nat.Port

	container *valkeycontainer.ValkeyContainer
}

// Start runs a ValKey container and waits until it answers a PING. It panics
// on failure since it is meant for TestMain.
func Start(ctx context.Context) *Instance {
	container, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start ValKey container", "error", err)
		panic(err)
	}

	port, err := container.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		slogctx.Error(ctx, "Failed to map a port for the ValKey container", "error", err)
		panic(err)
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address(port)},
	})
	if err != nil {
		slogctx.Error(ctx, "Failed to initialise a ValKey client", "error", err)
		panic(err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		slogctx.Error(ctx, "ValKey did not answer a PING", "error", err)
		panic(err)
	}

	return &Instance{
		Client:    client,
		Port:      port,
		container: container,
	}
}

// Address returns the host:port of the instance.
func (i *Instance) Address() string {
	return address(i.Port)
}

// Keys returns the sorted keys matching pattern.
func (i *Instance) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := i.Client.Do(ctx, i.Client.B().Keys().Pattern(pattern).Build()).AsStrSlice()
	if err != nil {
		return nil, err
	}

	slices.Sort(keys)
	return keys, nil
}

// Terminate closes the client and removes the container.
func (i *Instance) Terminate(ctx context.Context) {
	i.Client.Close()

	if err := i.container.Terminate(ctx); err != nil {
		slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
		panic(err)
	}
}

func address(port nat.Port) string {
	return net.JoinHostPort("localhost", port.Port())
}
