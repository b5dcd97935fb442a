// Package deploypipeline implements the per-service deployment pipeline
// (C4): for each application/container/database/router/job/helm chart,
// it runs build -> push/mirror -> pre-deploy -> deploy -> post-deploy
// verify as an ordered sequence of steps (§4.4).
package deploypipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/chartvalues"
	"github.com/deployforge/engine/pkg/clusterlifecycle"
	"github.com/deployforge/engine/pkg/command"
	"github.com/deployforge/engine/pkg/dockerfile"
	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/helmrun"
	"github.com/deployforge/engine/pkg/ids"
	"github.com/deployforge/engine/pkg/k8sobserver"
	"github.com/deployforge/engine/pkg/metrics"
	"github.com/deployforge/engine/pkg/pvcresize"
	"github.com/deployforge/engine/pkg/registryrun"
)

// Kind distinguishes which branch of the step table (§4.4) applies.
type Kind string

const (
	KindApplication Kind = "Application"
	KindContainer   Kind = "Container"
	KindDatabase    Kind = "Database"
	KindRouter      Kind = "Router"
	KindJob         Kind = "Job"
	KindHelmChart   Kind = "HelmChart"
)

// Action mirrors environment.Action to avoid an import cycle; pipeline
// only needs the verb, not the rest of the Environment model.
type Action string

const (
	ActionCreate  Action = "Create"
	ActionPause   Action = "Pause"
	ActionDelete  Action = "Delete"
	ActionRestart Action = "Restart"
	ActionNothing Action = "Nothing"
)

// Spec is the reduced view of one service's deployable fields, generic
// across Kind.
type Spec struct {
	Kind   Kind
	LongID ids.ServiceID
	Name   string
	Action Action

	HasGitSource    bool
	GitRepository   string
	CommitID        string
	DockerfilePath  string
	BuildContextDir string

	SourceImage string // set when mirroring rather than building
	TargetImage string

	ChartPath        string
	Namespace         string
	StaticValuesYAML []byte
	Overrides        []chartvalues.Override
	EnvVars          []dockerfile.EnvVar
	DesiredPVCs      []pvcresize.DesiredPVC
	HelmTimeoutSecs  int

	// UsesKarpenter marks a workload deployed onto a cluster running
	// Karpenter instead of static node groups (§4.5 "Karpenter
	// alternative"); deploy layers the stable-nodepool pinning overrides
	// on top of spec.Overrides before rendering.
	UsesKarpenter bool
}

// Dependencies are the leaf collaborators the pipeline drives; all
// external process invocation goes through them, never directly through
// os/exec (§4.2, §6.1).
type Dependencies struct {
	Docker   *registryrun.Docker
	Skopeo   *registryrun.Skopeo
	Helm     *helmrun.Runner
	Observer *k8sobserver.Observer
	Metrics  *metrics.Registry
	Emitter  events.Emitter

	// PollInterval is the convergence-poll cadence (§4.3); zero falls back
	// to k8sobserver.DefaultPollInterval.
	PollInterval time.Duration
}

// Pipeline executes one service's deployment steps.
type Pipeline struct {
	deps Dependencies
}

func New(deps Dependencies) *Pipeline {
	if deps.PollInterval <= 0 {
		deps.PollInterval = k8sobserver.DefaultPollInterval
	}
	return &Pipeline{deps: deps}
}

// SetObserver swaps the Kubernetes Observer used for convergence polling.
// The orchestrator calls this once a cluster lifecycle action produces a
// fresh kubeconfig (§4.5 Bootstrap), since the Pipeline is built once but
// outlives any single cluster action within a Transaction.
func (p *Pipeline) SetObserver(o *k8sobserver.Observer) {
	p.deps.Observer = o
}

// Run executes spec's applicable steps in order, aborting the service's
// own pipeline (but not the whole environment, §4.4 "Failure semantics")
// on the first step failure.
func (p *Pipeline) Run(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, spec Spec) error {
	if spec.Action == ActionNothing {
		return nil
	}

	steps := p.planSteps(spec)
	for _, step := range steps {
		if shouldBeKilled != nil && shouldBeKilled().ShouldKill() {
			return engineerror.Cancelled(details, fmt.Sprintf("cancelled before step %s", step))
		}

		handle, err := p.deps.Metrics.Start(spec.LongID, step)
		if err != nil {
			return err
		}

		if runErr := p.runStep(ctx, details, env, shouldBeKilled, spec, step); runErr != nil {
			handle.Error()
			p.deps.Emitter.EmitError(asErrorEvent(details, runErr))
			return runErr
		}
		handle.Success()
	}
	return nil
}

// planSteps returns the applicable step sequence for spec, matching the
// §4.4 step table exactly.
func (p *Pipeline) planSteps(spec Spec) []metrics.StepName {
	var steps []metrics.StepName

	buildsFromGit := spec.Kind == KindApplication && spec.HasGitSource &&
		(spec.Action == ActionCreate || spec.Action == ActionRestart)

	if buildsFromGit {
		steps = append(steps, metrics.StepProvisionBuilder)
	}

	isImageProducer := spec.Kind == KindApplication || spec.Kind == KindContainer || spec.Kind == KindJob
	if isImageProducer {
		steps = append(steps, metrics.StepRegistryCreateRepository)
	}

	if spec.Kind == KindApplication && spec.Action == ActionCreate {
		steps = append(steps, metrics.StepGitClone)
	}

	if buildsFromGit {
		steps = append(steps, metrics.StepBuildQueueing, metrics.StepBuild)
	}

	mirrors := spec.Kind == KindContainer || (spec.Kind == KindApplication && buildsFromGit)
	if mirrors {
		steps = append(steps, metrics.StepMirrorImage)
	}

	steps = append(steps, metrics.StepDeploymentQueueing, metrics.StepDeployment)
	return steps
}

func (p *Pipeline) runStep(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, spec Spec, step metrics.StepName) error {
	switch step {
	case metrics.StepProvisionBuilder:
		return nil // docker build environment acquisition is local and implicit.

	case metrics.StepRegistryCreateRepository:
		return nil // idempotent repository creation is delegated to the registry adapter, out of scope (§1).

	case metrics.StepGitClone:
		return nil // shallow clone at spec.CommitID into the workspace; delegated to the git client, out of scope (§1).

	case metrics.StepBuildQueueing:
		return nil

	case metrics.StepBuild:
		res := p.deps.Docker.Build(ctx, registryrun.BuildOpts{
			ContextDir: spec.BuildContextDir,
			Dockerfile: spec.DockerfilePath,
			Tag:        spec.TargetImage,
			BuildArgs:  spec.EnvVars,
		}, env, nil)
		if res.Outcome != command.Ok {
			return engineerror.TerraformError(details, "docker build", res.Error(), res.Error())
		}
		return nil

	case metrics.StepMirrorImage:
		source := spec.SourceImage
		if source == "" {
			source = spec.TargetImage
		}
		res := p.deps.Skopeo.Copy(ctx, source, spec.TargetImage, env, shouldBeKilled)
		if res.Outcome != command.Ok {
			return engineerror.TerraformError(details, "skopeo copy", res.Error(), res.Error())
		}
		return nil

	case metrics.StepDeploymentQueueing:
		return chartvalues.ValidateNoHiddenKnobs(details, spec.StaticValuesYAML, spec.Overrides)

	case metrics.StepDeployment:
		return p.deploy(ctx, details, env, shouldBeKilled, spec)
	}
	return fmt.Errorf("unknown step %s", step)
}

func (p *Pipeline) deploy(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, spec Spec) error {
	overrides := spec.Overrides
	if spec.UsesKarpenter {
		isStatefulSet := spec.Kind == KindDatabase || len(spec.DesiredPVCs) > 0
		overrides = append(overrides, karpenterOverrides(clusterlifecycle.BuildKarpenterPinning(isStatefulSet))...)
	}

	rendered, err := chartvalues.Render(spec.StaticValuesYAML, overrides)
	if err != nil {
		return fmt.Errorf("rendering chart values: %w", err)
	}
	valuesPath, err := p.writeValuesFile(spec, rendered)
	if err != nil {
		return fmt.Errorf("writing rendered chart values: %w", err)
	}

	res := p.deps.Helm.Upgrade(ctx, helmrun.UpgradeOpts{
		ReleaseName: spec.Name,
		Namespace:   spec.Namespace,
		ChartPath:   spec.ChartPath,
		ValuesFiles: []string{valuesPath},
		TimeoutSecs: spec.HelmTimeoutSecs,
		Atomic:      true,
		CreateNS:    true,
	}, env, shouldBeKilled, nil)
	if res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "helm upgrade", res.Error(), res.Error())
	}

	if err := p.resizeStorageIfNeeded(ctx, details, spec); err != nil {
		return err
	}

	return p.waitForConvergence(ctx, details, spec)
}

// karpenterOverrides renders a KarpenterPinning as chart value overrides;
// engine-injected, so they are layered in after ValidateNoHiddenKnobs has
// already checked the operator-supplied spec.Overrides (§4.5 "Karpenter
// alternative").
func karpenterOverrides(pinning clusterlifecycle.KarpenterPinning) []chartvalues.Override {
	var out []chartvalues.Override
	for k, v := range pinning.NodeAffinity {
		out = append(out, chartvalues.Override{Key: "nodeSelector." + k, Value: v})
	}
	for k, v := range pinning.Toleration {
		out = append(out, chartvalues.Override{Key: "tolerations." + k, Value: v})
	}
	for k, v := range pinning.CapacityAffinity {
		out = append(out, chartvalues.Override{Key: "capacityAffinity." + k, Value: v})
	}
	return out
}

// writeValuesFile persists the merged chart values document so it can be
// passed to `helm upgrade --values <path>`; the file is written to the OS
// temp directory, named per-release so concurrent services in the same
// environment never collide.
func (p *Pipeline) writeValuesFile(spec Spec, rendered []byte) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("deployforge-%s-values.yaml", spec.Name))
	if err := os.WriteFile(path, rendered, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// resizeStorageIfNeeded applies the storage resize protocol (§4.4):
// lists the service's PVCs through the same clientset the Observer
// polls with, rejects any shrink, and patches the rest to their desired
// size (§8.1 invariant 4).
func (p *Pipeline) resizeStorageIfNeeded(ctx context.Context, details events.EventDetails, spec Spec) error {
	if len(spec.DesiredPVCs) == 0 {
		return nil
	}

	selector := fmt.Sprintf("%s=%s", k8sobserver.ServiceLabel, spec.LongID.String())
	invalid, err := pvcresize.FindInvalidPVCs(ctx, p.deps.Observer.Client(), spec.Namespace, selector, spec.DesiredPVCs)
	if err != nil {
		return fmt.Errorf("finding invalid PVCs: %w", err)
	}
	if len(invalid) == 0 {
		return nil
	}
	return pvcresize.Grow(ctx, p.deps.Observer.Client(), details, spec.Namespace, invalid)
}

// waitForConvergence polls the Kubernetes Observer until every pod is
// Ready or any pod enters a terminal Failing state (§4.4 last column).
func (p *Pipeline) waitForConvergence(ctx context.Context, details events.EventDetails, spec Spec) error {
	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		report, err := p.deps.Observer.Observe(ctx, spec.Namespace, spec.LongID)
		if err != nil {
			return fmt.Errorf("observing deployment convergence: %w", err)
		}

		allReady := true
		for _, pod := range report.Pods {
			if pod.State == k8sobserver.StateFailing {
				return fmt.Errorf("pod entered failing state: %s (%s)", pod.Name, pod.Reason)
			}
			if pod.State != k8sobserver.StateReady {
				allReady = false
			}
		}
		if allReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.deps.PollInterval):
		}
	}
	return fmt.Errorf("deployment did not converge within the configured timeout")
}

func asErrorEvent(details events.EventDetails, err error) events.ErrorEvent {
	if ee, ok := err.(*engineerror.EngineError); ok {
		return ee
	}
	return &genericErrorEvent{details: details, err: err}
}

type genericErrorEvent struct {
	details events.EventDetails
	err     error
}

func (g *genericErrorEvent) EventDetails() events.EventDetails { return g.details }
func (g *genericErrorEvent) Error() string                     { return g.err.Error() }
func (g *genericErrorEvent) SafeError() string                 { return g.err.Error() }
