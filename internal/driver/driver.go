// Package driver defines the abstraction layer over the container engine.
//
// The executor service talks to this interface only; the Docker
// implementation lives in the docker subpackage. Keeping the seam here lets
// tests substitute an in-memory engine and leaves room for other backends.
package driver

import (
	"context"
	"errors"
)

// Common errors returned by Driver implementations.
var (
	// ErrContainerNotFound indicates the named container does not exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrExecutorUnavailable indicates the exec stream could not be attached.
	ErrExecutorUnavailable = errors.New("executor unavailable")
)

// OwnedContainer describes a container carrying this service's ownership label.
type OwnedContainer struct {
	ID   string
	Name string
}

// Driver is the thin abstraction over the container engine.
// Implementations must be safe for concurrent use.
type Driver interface {
	// BuildImage builds an image tagged imageTag from the build-context
	// archive at contextTarPath. The build output stream is drained; any
	// error reported mid-stream aborts the build and is returned.
	BuildImage(ctx context.Context, contextTarPath, dockerfileName, imageTag string) error

	// CreateContainer creates a container from imageTag under the given
	// name, applying labels and binding host port 5001 to container port
	// 5001 for the in-container execution protocol.
	CreateContainer(ctx context.Context, name, imageTag string, labels map[string]string) error

	// StartContainer starts a previously created container.
	StartContainer(ctx context.Context, name string) error

	// RemoveContainer force-removes a container. Removing a container that
	// does not exist returns ErrContainerNotFound.
	RemoveContainer(ctx context.Context, name string) error

	// Exec runs shellCommand via `sh -c` inside the named container with
	// both standard streams attached, and returns the captured output:
	// stdout and stderr chunks concatenated in arrival order, decoded as
	// UTF-8 with invalid bytes replaced. Callers relying on line structure
	// must tolerate interleaving.
	Exec(ctx context.Context, containerName, shellCommand string) (string, error)

	// ListOwned returns every container whose labelKey label equals podTag.
	ListOwned(ctx context.Context, labelKey, podTag string) ([]OwnedContainer, error)

	// Ping checks connectivity with the engine daemon.
	Ping(ctx context.Context) error

	// Close releases the engine client.
	Close() error
}
