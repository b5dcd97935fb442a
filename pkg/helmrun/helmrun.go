// Package helmrun wraps `helm upgrade --install|template|uninstall|get
// values` invocations through the Command Runner (§4.4, §6.1).
package helmrun

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/command"
)

// defaultGracePeriod is helm's SIGKILL grace period on user-forced
// cancellation — longer than skopeo's since `helm upgrade --atomic` rolls
// back on interrupt rather than leaving a half-applied release (§4.2).
const defaultGracePeriod = 30 * time.Second

// UpgradeOpts parameterizes a `helm upgrade --install` invocation.
type UpgradeOpts struct {
	ReleaseName  string
	Namespace    string
	ChartPath    string
	ValuesFiles  []string
	TimeoutSecs  int
	Atomic       bool
	CreateNS     bool
	KubeconfigPath string
}

// Runner drives helm through the Command Runner.
type Runner struct {
	binary  string
	timeout time.Duration
	runner  *command.Runner
}

func New(binary string) *Runner {
	return &Runner{binary: binary, runner: command.New()}
}

// NewWithTimeout is New plus a per-invocation timeout applied to every
// command.Spec this Runner builds (§6.4 CommandTimeoutSeconds).
func NewWithTimeout(binary string, timeout time.Duration) *Runner {
	return &Runner{binary: binary, timeout: timeout, runner: command.New()}
}

func (r *Runner) buildUpgradeArgs(opts UpgradeOpts) []string {
	args := []string{"upgrade", "--install", opts.ReleaseName, opts.ChartPath, "--namespace", opts.Namespace}
	if opts.CreateNS {
		args = append(args, "--create-namespace")
	}
	if opts.Atomic {
		args = append(args, "--atomic")
	}
	if opts.TimeoutSecs > 0 {
		args = append(args, "--timeout", strconv.Itoa(opts.TimeoutSecs)+"s")
	}
	for _, f := range opts.ValuesFiles {
		args = append(args, "--values", f)
	}
	return args
}

// Upgrade runs `helm upgrade --install` with atomic+timeout semantics
// (§4.4 "Deployment" step).
func (r *Runner) Upgrade(ctx context.Context, opts UpgradeOpts, env []string, shouldBeKilled func() abortstatus.AbortStatus, onLine func(string)) command.Result {
	env = withKubeconfig(env, opts.KubeconfigPath)
	return r.runner.Run(ctx, command.Spec{
		Binary:         r.binary,
		Args:           r.buildUpgradeArgs(opts),
		Env:            env,
		Timeout:        r.timeout,
		ShouldBeKilled: shouldBeKilled,
		// terraform/helm get a non-zero grace period, unlike skopeo (§4.2).
		GracePeriod: defaultGracePeriod,
		OnStdout:    onLine,
		OnStderr:    onLine,
	})
}

// TemplateValidate runs `helm template --validate` for pre-flight chart
// rendering checks before any upgrade is attempted.
func (r *Runner) TemplateValidate(ctx context.Context, releaseName, chartPath, namespace string, valuesFiles []string, env []string) (string, command.Result) {
	args := []string{"template", releaseName, chartPath, "--namespace", namespace, "--validate"}
	for _, f := range valuesFiles {
		args = append(args, "--values", f)
	}
	var out strings.Builder
	res := r.runner.Run(ctx, command.Spec{
		Binary:   r.binary,
		Args:     args,
		Env:      env,
		Timeout:  r.timeout,
		OnStdout: func(l string) { out.WriteString(l); out.WriteString("\n") },
		OnStderr: func(l string) { out.WriteString(l); out.WriteString("\n") },
	})
	return out.String(), res
}

// Uninstall runs `helm uninstall`.
func (r *Runner) Uninstall(ctx context.Context, releaseName, namespace string, env []string, shouldBeKilled func() abortstatus.AbortStatus) command.Result {
	return r.runner.Run(ctx, command.Spec{
		Binary:         r.binary,
		Args:           []string{"uninstall", releaseName, "--namespace", namespace},
		Env:            env,
		Timeout:        r.timeout,
		ShouldBeKilled: shouldBeKilled,
		GracePeriod:    defaultGracePeriod,
	})
}

// GetValues runs `helm get values` and returns its raw YAML stdout.
func (r *Runner) GetValues(ctx context.Context, releaseName, namespace string, env []string) (string, command.Result) {
	var out strings.Builder
	res := r.runner.Run(ctx, command.Spec{
		Binary:   r.binary,
		Args:     []string{"get", "values", releaseName, "--namespace", namespace, "--all"},
		Env:      env,
		Timeout:  r.timeout,
		OnStdout: func(l string) { out.WriteString(l); out.WriteString("\n") },
	})
	return out.String(), res
}

func withKubeconfig(env []string, kubeconfigPath string) []string {
	if kubeconfigPath == "" {
		return env
	}
	return append(env, fmt.Sprintf("KUBECONFIG=%s", kubeconfigPath))
}
