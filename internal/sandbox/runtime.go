// Package sandbox binds one conversation to one isolated container and
// exposes the filesystem/execute operations tool calls route through.
package sandbox

import (
	"context"
	"io"
)

// WorkspaceRoot is the fixed in-container mount point every sandbox's
// uploads/intermediate/skills directories hang off of.
const WorkspaceRoot = "/workspace"

// Mount describes a host directory bind-mounted into the container.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// ContainerSpec describes the container a ContainerRuntime should start.
type ContainerSpec struct {
	Name       string // encodes (user_id, conversation_id)
	Image      string
	WorkingDir string
	Mounts     []Mount
	DisableNet bool
}

// ExecResult is the outcome of a command run inside a container.
type ExecResult struct {
	Output    string
	ExitCode  int
	TimedOut  bool
	Truncated bool
}

// ContainerRuntime is the minimal container API the Sandbox drives. It is
// satisfied by a Docker Engine API client (DockerRuntime); the Sandbox type
// never talks to a container runtime directly, matching "drives an existing
// container API" rather than implementing one.
type ContainerRuntime interface {
	// EnsureContainer starts spec's container if absent, or confirms an
	// existing one matching spec.Name is running. Returns the runtime's
	// container ID.
	EnsureContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	// Exec runs command inside containerID's working directory and returns
	// combined stdout+stderr, the exit code, and whether the context
	// deadline was hit before the process exited.
	Exec(ctx context.Context, containerID string, command string) (output string, exitCode int, timedOut bool, err error)
	// CopyToContainer writes content to path inside the container.
	CopyToContainer(ctx context.Context, containerID string, path string, content io.Reader) error
	// CopyFromContainer reads path out of the container.
	CopyFromContainer(ctx context.Context, containerID string, path string) (io.ReadCloser, error)
	// Stop stops (but does not remove) the container.
	Stop(ctx context.Context, containerID string) error
}
