// Package clusterlifecycle implements the Cluster Lifecycle State Machine
// (C5): Bootstrap/Pause/Resume/Upgrade/Delete of a Kubernetes cluster via
// Terraform plus an ordered post-install Helm chart wave (§4.5).
package clusterlifecycle

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/cloudprovider"
	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/command"
	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/helmrun"
	"github.com/deployforge/engine/pkg/terraformrun"
)

// State is one node of the cluster lifecycle state machine (§4.5):
// Absent -> Bootstrapping -> Running <-> Paused, Running -> Upgrading ->
// Running, Running -> Deleting -> Absent.
type State string

const (
	StateAbsent        State = "Absent"
	StateBootstrapping State = "Bootstrapping"
	StateRunning        State = "Running"
	StatePaused          State = "Paused"
	StateUpgrading        State = "Upgrading"
	StateDeleting          State = "Deleting"
)

// ChartWave is one ordered group of Helm charts deployed together; later
// waves depend on earlier ones (§4.5 Bootstrap, GLOSSARY "Chart wave").
type ChartWave struct {
	Name   string
	Charts []helmrun.UpgradeOpts
}

// OrderedChartWaves returns the five post-install waves named in §4.5,
// appending the qovery cluster-agent/shell-agent/engine wave only when
// the engine runs client-side.
func OrderedChartWaves(engineLoc cluster.EngineLocation) []string {
	waves := []string{
		"storage-and-cni",
		"cert-manager",
		"ingress-and-dns",
		"observability",
	}
	if engineLoc == cluster.EngineLocationClientSide {
		waves = append(waves, "agents")
	}
	return waves
}

// TerraformInputs is the rendered set of per-cloud inputs passed to the
// Terraform module as `.tfvars` (§4.5 Bootstrap: "nodes, VPC mode, IAM
// roles, K8s version, subnet CIDRs"); rendering the actual module tree is
// out of scope (§1: "per-cloud Terraform module files... tree of assets
// consumed by the orchestrator").
type TerraformInputs struct {
	WorkDir string
	Vars    map[string]string
}

// Dependencies are the leaf collaborators the state machine drives.
type Dependencies struct {
	Terraform *terraformrun.Runner
	Helm      *helmrun.Runner
	Provider  cloudprovider.Provider
}

// Machine drives one cluster's lifecycle transitions.
type Machine struct {
	deps Dependencies
}

func New(deps Dependencies) *Machine {
	return &Machine{deps: deps}
}

func varArgs(vars map[string]string) []string {
	var args []string
	for k, v := range vars {
		args = append(args, "-var", fmt.Sprintf("%s=%s", k, v))
	}
	return args
}

// mergedEnv appends the cloud provider's resolved credential env vars
// (§6.2) after the caller-supplied env, so terraform/helm invocations
// always run against the right account without credentials ever
// touching argv.
func (m *Machine) mergedEnv(ctx context.Context, env []string) ([]string, error) {
	credEnv, err := m.deps.Provider.CredentialEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving cloud credentials: %w", err)
	}
	merged := make([]string, 0, len(env)+len(credEnv))
	merged = append(merged, env...)
	merged = append(merged, credEnv...)
	return merged, nil
}

// Bootstrap runs terraform init/plan/apply against inputs and returns the
// resulting kubeconfig, fetched from the provider unless the caller
// supplied one (§4.5 Bootstrap). It deploys no chart wave itself; each
// wave is deployed separately through DeployChartWave.
func (m *Machine) Bootstrap(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, c cluster.Cluster, inputs TerraformInputs, clusterName string) ([]byte, error) {
	if c.Provider == cluster.CloudAWS && !cluster.ValidCloudwatchRetentionDays(c.Advanced.AWSCloudwatchEKSLogsRetentionDays) {
		return nil, engineerror.AwsWrongCloudwatchRetentionConfiguration(details, c.Advanced.AWSCloudwatchEKSLogsRetentionDays)
	}

	env, err := m.mergedEnv(ctx, env)
	if err != nil {
		return nil, err
	}

	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: []string{"init"}, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return nil, engineerror.TerraformError(details, "terraform init", res.Error(), res.Error())
	}

	planArgs := append([]string{"plan", "-out=plan.tfplan"}, varArgs(inputs.Vars)...)
	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: planArgs, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return nil, engineerror.TerraformError(details, "terraform plan", res.Error(), res.Error())
	}

	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: []string{"apply", "-auto-approve", "plan.tfplan"}, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return nil, engineerror.TerraformError(details, "terraform apply", res.Error(), res.Error())
	}

	if len(c.UserProvidedKubeconfig) > 0 {
		return []byte(c.UserProvidedKubeconfig), nil
	}

	region := ""
	if len(c.Regions) > 0 {
		region = c.Regions[0]
	}
	kubeconfig, err := m.deps.Provider.FetchKubeconfig(ctx, clusterName, region)
	if err != nil {
		return nil, errors.Wrap(err, "fetching kubeconfig after bootstrap")
	}
	return kubeconfig, nil
}

// DeployChartWave upgrades every chart in one wave, in order, stopping at
// the first failure (later waves depend on earlier ones, GLOSSARY "Chart
// wave").
func (m *Machine) DeployChartWave(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, wave ChartWave) error {
	for _, chart := range wave.Charts {
		res := m.deps.Helm.Upgrade(ctx, chart, env, shouldBeKilled, nil)
		if res.Outcome != command.Ok {
			return engineerror.TerraformError(details, fmt.Sprintf("helm upgrade (wave %s, release %s)", wave.Name, chart.ReleaseName), res.Error(), res.Error())
		}
	}
	return nil
}

// Pause rejects the request if a deployment task is still running for
// this cluster (hasRunningTask), then runs terraform apply with
// desired_node_count set to 0 (§4.5 Pause).
func (m *Machine) Pause(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, c cluster.Cluster, inputs TerraformInputs, hasRunningTask func() bool) error {
	if !m.deps.Provider.SupportsPause() {
		return fmt.Errorf("cloud provider %s does not support pausing a cluster", m.deps.Provider.Kind())
	}
	if hasRunningTask != nil && hasRunningTask() {
		return engineerror.CannotPauseClusterTasksAreRunning(details)
	}

	env, err := m.mergedEnv(ctx, env)
	if err != nil {
		return err
	}

	vars := make(map[string]string, len(inputs.Vars)+1)
	for k, v := range inputs.Vars {
		vars[k] = v
	}
	vars["desired_node_count"] = "0"

	args := append([]string{"apply", "-auto-approve"}, varArgs(vars)...)
	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: args, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "terraform apply (pause)", res.Error(), res.Error())
	}
	return nil
}

// Resume scales node groups back to at least their configured minimum.
func (m *Machine) Resume(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, inputs TerraformInputs) error {
	env, err := m.mergedEnv(ctx, env)
	if err != nil {
		return err
	}

	args := append([]string{"apply", "-auto-approve"}, varArgs(inputs.Vars)...)
	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: args, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "terraform apply (resume)", res.Error(), res.Error())
	}
	return nil
}

// Upgrade plans against targetK8sVersion, validates the plan carries no
// forbidden destructive changes to a protected resource, and only then
// applies (§4.5 Upgrade, §8.1 invariant 5).
func (m *Machine) Upgrade(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, inputs TerraformInputs, targetK8sVersion string) error {
	env, err := m.mergedEnv(ctx, env)
	if err != nil {
		return err
	}

	vars := make(map[string]string, len(inputs.Vars)+1)
	for k, v := range inputs.Vars {
		vars[k] = v
	}
	vars["kubernetes_version"] = targetK8sVersion

	planArgs := append([]string{"plan", "-out=upgrade.tfplan"}, varArgs(vars)...)
	planText, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: planArgs, ShouldBeKilled: shouldBeKilled})
	if res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "terraform plan (upgrade)", res.Error(), res.Error())
	}

	protected := cloudprovider.ProtectedTerraformResources(m.deps.Provider.Kind())
	if err := terraformrun.ValidateNoDestructiveChanges(details, planText, protected); err != nil {
		return err
	}

	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: []string{"apply", "-auto-approve", "upgrade.tfplan"}, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "terraform apply (upgrade)", res.Error(), res.Error())
	}
	return nil
}

// Delete refuses to run unless stateIsEmpty or force is set, guarding the
// invariant that state loss implies a resource leak (§4.5 Delete).
func (m *Machine) Delete(ctx context.Context, details events.EventDetails, env []string, shouldBeKilled func() abortstatus.AbortStatus, inputs TerraformInputs, stateIsEmpty, force bool) error {
	if !stateIsEmpty && !force {
		return engineerror.ClusterStateLossRefused(details)
	}

	env, err := m.mergedEnv(ctx, env)
	if err != nil {
		return err
	}

	args := append([]string{"destroy", "-auto-approve"}, varArgs(inputs.Vars)...)
	if _, res := m.deps.Terraform.Run(ctx, terraformrun.RunOpts{WorkDir: inputs.WorkDir, Env: env, Args: args, ShouldBeKilled: shouldBeKilled}); res.Outcome != command.Ok {
		return engineerror.TerraformError(details, "terraform destroy", res.Error(), res.Error())
	}
	return nil
}

// KarpenterPinning returns the affinity/toleration key-value pairs that
// must be injected into stateful workloads and singletons when the
// cluster uses Karpenter instead of static node groups (§4.5 "Karpenter
// alternative").
type KarpenterPinning struct {
	NodeAffinity     map[string]string
	Toleration       map[string]string
	CapacityAffinity map[string]string
}

// BuildKarpenterPinning returns the pinning labels for isForStatefulSet;
// StatefulSets additionally pin to on-demand capacity.
func BuildKarpenterPinning(isForStatefulSet bool) KarpenterPinning {
	pinning := KarpenterPinning{
		NodeAffinity: map[string]string{cluster.KarpenterStableNodePoolLabel: cluster.KarpenterStableNodePoolValue},
		Toleration:   map[string]string{cluster.KarpenterStableTolerationKey: "NoSchedule"},
	}
	if isForStatefulSet {
		pinning.CapacityAffinity = map[string]string{cluster.KarpenterStableCapacityTypeLabel: cluster.KarpenterStableCapacityTypeValue}
	}
	return pinning
}
