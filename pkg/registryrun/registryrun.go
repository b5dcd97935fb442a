// Package registryrun wraps docker build/push/pull/inspect and skopeo
// copy/delete/list-tags/inspect invocations through the Command Runner
// (§4.4 "MirrorImage", §6.1).
package registryrun

import (
	"context"
	"time"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/command"
	"github.com/deployforge/engine/pkg/dockerfile"
)

// maxMirrorAttempts is the retry budget for MirrorImage (§4.4: "retry 5×").
const maxMirrorAttempts = 5

// Docker drives the docker CLI through the Command Runner.
type Docker struct {
	binary string
	runner *command.Runner
}

func NewDocker(binary string) *Docker {
	return &Docker{binary: binary, runner: command.New()}
}

// BuildOpts parameterizes one `docker build` invocation.
type BuildOpts struct {
	ContextDir string
	Dockerfile string
	Tag        string
	BuildArgs  []dockerfile.EnvVar
}

// Build runs `docker build` with --build-arg pairs pre-filtered by
// dockerfile.MatchUsedEnvVarArgs.
func (d *Docker) Build(ctx context.Context, opts BuildOpts, env []string, onLine func(string)) command.Result {
	args := []string{"build", "-f", opts.Dockerfile, "-t", opts.Tag}
	args = append(args, dockerfile.BuildArgs(opts.BuildArgs)...)
	args = append(args, opts.ContextDir)

	return d.runner.Run(ctx, command.Spec{
		Binary:   d.binary,
		Args:     args,
		Env:      env,
		OnStdout: onLine,
		OnStderr: onLine,
	})
}

// Login runs `docker login`, credentials passed only via env (never argv,
// §6.1).
func (d *Docker) Login(ctx context.Context, registry string, env []string) command.Result {
	return d.runner.Run(ctx, command.Spec{
		Binary: d.binary,
		Args:   []string{"login", registry, "--username", "$DOCKER_USERNAME", "--password-stdin"},
		Env:    env,
	})
}

// Push runs `docker push`.
func (d *Docker) Push(ctx context.Context, tag string, env []string, onLine func(string)) command.Result {
	return d.runner.Run(ctx, command.Spec{
		Binary:   d.binary,
		Args:     []string{"push", tag},
		Env:      env,
		OnStdout: onLine,
		OnStderr: onLine,
	})
}

// Skopeo drives the skopeo CLI through the Command Runner. Its kill grace
// period is 0 (§4.2): skopeo copy operations have no mid-operation state
// worth preserving.
type Skopeo struct {
	binary string
	runner *command.Runner
}

func NewSkopeo(binary string) *Skopeo {
	return &Skopeo{binary: binary, runner: command.New()}
}

// Copy mirrors an image from sourceImage to destImage, retrying up to
// maxMirrorAttempts times on failure (§4.4 "MirrorImage").
func (s *Skopeo) Copy(ctx context.Context, sourceImage, destImage string, env []string, shouldBeKilled func() abortstatus.AbortStatus) command.Result {
	var last command.Result
	for attempt := 1; attempt <= maxMirrorAttempts; attempt++ {
		last = s.runner.Run(ctx, command.Spec{
			Binary:         s.binary,
			Args:           []string{"copy", "docker://" + sourceImage, "docker://" + destImage},
			Env:            env,
			ShouldBeKilled: shouldBeKilled,
			GracePeriod:    0,
		})
		if last.Outcome == command.Ok {
			return last
		}
		if last.Outcome == command.Killed {
			return last
		}
		if attempt < maxMirrorAttempts {
			time.Sleep(backoffDelay(attempt))
		}
	}
	return last
}

// ListTags runs `skopeo list-tags --raw`, enumerating all manifest
// digests of a multi-arch tag (§6.1).
func (s *Skopeo) ListTags(ctx context.Context, image string, env []string) (string, command.Result) {
	var out []byte
	res := s.runner.Run(ctx, command.Spec{
		Binary:   s.binary,
		Args:     []string{"list-tags", "--raw", "docker://" + image},
		Env:      env,
		OnStdout: func(l string) { out = append(out, []byte(l)...); out = append(out, '\n') },
	})
	return string(out), res
}

// Delete runs `skopeo delete`.
func (s *Skopeo) Delete(ctx context.Context, image string, env []string) command.Result {
	return s.runner.Run(ctx, command.Spec{
		Binary: s.binary,
		Args:   []string{"delete", "docker://" + image},
		Env:    env,
	})
}

// Inspect runs `skopeo inspect`.
func (s *Skopeo) Inspect(ctx context.Context, image string, env []string) (string, command.Result) {
	var out []byte
	res := s.runner.Run(ctx, command.Spec{
		Binary:   s.binary,
		Args:     []string{"inspect", "docker://" + image},
		Env:      env,
		OnStdout: func(l string) { out = append(out, []byte(l)...); out = append(out, '\n') },
	})
	return string(out), res
}

// backoffDelay is the fibonacci-ish retry schedule shared with the
// transient-error policy in §7 (retried at the adapter layer, not the
// orchestrator layer).
func backoffDelay(attempt int) time.Duration {
	fib := []time.Duration{1, 1, 2, 3, 5}
	idx := attempt - 1
	if idx >= len(fib) {
		idx = len(fib) - 1
	}
	return fib[idx] * time.Second
}
