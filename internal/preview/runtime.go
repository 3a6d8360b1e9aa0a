package preview

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"appforge/internal/logging"
)

// RunSpec describes one container start.
type RunSpec struct {
	Image         string
	Name          string
	HostPort      int
	ContainerPort int
	Network       string
	Memory        string
	CPUs          string
}

// ContainerRuntime abstracts the container engine so the manager is
// testable without a Docker daemon.
type ContainerRuntime interface {
	// Available reports whether the engine is reachable.
	Available() bool
	// EnsureNetwork creates the bridge network if missing.
	EnsureNetwork(ctx context.Context, name string) error
	// BuildImage builds dir (containing a Dockerfile) into tag.
	BuildImage(ctx context.Context, dir, tag string) (string, error)
	// RunContainer starts a detached container and returns its id.
	RunContainer(ctx context.Context, spec RunSpec) (string, error)
	// StopContainer stops a running container.
	StopContainer(ctx context.Context, id string) error
	// RemoveContainer force-removes a container.
	RemoveContainer(ctx context.Context, id string) error
	// RemoveImage removes a built image.
	RemoveImage(ctx context.Context, tag string) error
	// Logs returns the last n lines of a container's output.
	Logs(ctx context.Context, id string, n int) (string, error)
}

// DockerRuntime drives the docker binary. Shelling out keeps the
// daemon-unavailable path trivially detectable and needs no SDK pinning.
type DockerRuntime struct {
	dockerPath string
	available  bool
}

// NewDockerRuntime locates the docker binary and probes the daemon.
func NewDockerRuntime() *DockerRuntime {
	r := &DockerRuntime{}

	dockerPath, err := exec.LookPath("docker")
	if err != nil {
		logging.Preview("docker binary not found; preview subsystem unavailable")
		return r
	}
	r.dockerPath = dockerPath

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, dockerPath, "version", "--format", "{{.Server.Version}}").Run(); err != nil {
		logging.Preview("docker daemon unreachable; preview subsystem unavailable")
		return r
	}

	r.available = true
	return r
}

// Available reports whether the docker daemon responded to the probe.
func (r *DockerRuntime) Available() bool { return r.available }

func (r *DockerRuntime) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.dockerPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil {
		return out.String(), fmt.Errorf("docker %s: %w: %s", args[0], err, lastLines(out.String(), 5))
	}
	return out.String(), nil
}

// EnsureNetwork creates the dedicated bridge network if missing.
func (r *DockerRuntime) EnsureNetwork(ctx context.Context, name string) error {
	if _, err := r.run(ctx, "network", "inspect", name); err == nil {
		return nil
	}
	_, err := r.run(ctx, "network", "create", "--driver", "bridge", name)
	return err
}

// BuildImage builds the directory into the tag.
func (r *DockerRuntime) BuildImage(ctx context.Context, dir, tag string) (string, error) {
	return r.run(ctx, "build", "-t", tag, dir)
}

// RunContainer starts a detached container with the spec's port mapping and
// resource caps.
func (r *DockerRuntime) RunContainer(ctx context.Context, spec RunSpec) (string, error) {
	args := []string{
		"run", "-d", "--rm",
		"--name", spec.Name,
		"-p", fmt.Sprintf("%d:%d", spec.HostPort, spec.ContainerPort),
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	if spec.CPUs != "" {
		args = append(args, "--cpus", spec.CPUs)
	}
	args = append(args, spec.Image)

	out, err := r.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// StopContainer stops a running container.
func (r *DockerRuntime) StopContainer(ctx context.Context, id string) error {
	_, err := r.run(ctx, "stop", id)
	return err
}

// RemoveContainer force-removes a container; already-gone is not an error.
func (r *DockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	if _, err := r.run(ctx, "rm", "-f", id); err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil
		}
		return err
	}
	return nil
}

// RemoveImage removes a built image.
func (r *DockerRuntime) RemoveImage(ctx context.Context, tag string) error {
	_, err := r.run(ctx, "rmi", "-f", tag)
	return err
}

// Logs returns the last n lines of a container's combined output.
func (r *DockerRuntime) Logs(ctx context.Context, id string, n int) (string, error) {
	return r.run(ctx, "logs", "--tail", fmt.Sprintf("%d", n), id)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var _ ContainerRuntime = (*DockerRuntime)(nil)
