// Package orchestrator implements the Transaction (C6): it sequences C4
// (pkg/deploypipeline) and C5 (pkg/clusterlifecycle) actions, enforces
// ordering and cancellation, reverses committed actions in LIFO order on
// failure, and exposes the commit() entrypoint returning
// Ok | Rollback(EngineError) | UnrecoverableError(EngineError, EngineError)
// (§4.6).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/auditlog"
	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/clusterlifecycle"
	"github.com/deployforge/engine/pkg/clusterlock"
	"github.com/deployforge/engine/pkg/deploypipeline"
	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/enginectx"
	"github.com/deployforge/engine/pkg/environment"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/k8sobserver"
	"github.com/deployforge/engine/pkg/kubeconfig"
)

// Outcome is the tagged result of commit() (§6.3).
type Outcome int

const (
	// Ok means every action committed.
	Ok Outcome = iota
	// Rollback means at least one action failed and every prior action in
	// this Transaction was reversed successfully.
	Rollback
	// UnrecoverableError means an action failed AND reversing a prior
	// action also failed; state may now be inconsistent.
	UnrecoverableError
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case Rollback:
		return "Rollback"
	case UnrecoverableError:
		return "UnrecoverableError"
	default:
		return "Unknown"
	}
}

// CommitResult is the full return value of Transaction.Commit.
type CommitResult struct {
	Outcome       Outcome
	Cause         *engineerror.EngineError
	RollbackCause *engineerror.EngineError
}

// CancellationToken is the mutable cancellation state polled between
// actions and passed down to every C2 invocation (§4.6 execution rule 3,
// §5 "Cancellation semantics"). The zero value is None.
type CancellationToken struct {
	mu     sync.Mutex
	status abortstatus.AbortStatus
}

func NewCancellationToken() *CancellationToken { return &CancellationToken{} }

// Request signals a graceful cancellation: in-flight commands finish
// their current atomic step.
func (c *CancellationToken) Request() { c.merge(abortstatus.Requested) }

// ForceRequest signals a forced cancellation: in-flight commands are
// killed after their per-tool grace period.
func (c *CancellationToken) ForceRequest() { c.merge(abortstatus.UserForceRequested) }

func (c *CancellationToken) merge(s abortstatus.AbortStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = abortstatus.Merge(c.status, s)
}

// Current reports the strongest cancellation level requested so far. Its
// method value is passed directly as the shouldBeKilled callback every
// C2-driving component expects.
func (c *CancellationToken) Current() abortstatus.AbortStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Dependencies are the leaf collaborators a Transaction drives. Locker
// and Ledger are optional: a nil Locker skips cross-process cluster
// locking (single-process/test use), a nil Ledger skips the durable
// audit trail (the in-memory metrics.Registry inside Pipeline still
// records every step either way).
type Dependencies struct {
	ClusterMachine *clusterlifecycle.Machine
	Pipeline       *deploypipeline.Pipeline
	Locker         *clusterlock.Locker
	Ledger         *auditlog.Ledger
	Emitter        events.Emitter
}

// action is one unit of work inside a Transaction: a cluster action or
// an environment action (§4.6 contract).
type action interface {
	name() string
	details() events.EventDetails
	execute(ctx context.Context, token *CancellationToken) error
	rollback(ctx context.Context, token *CancellationToken) error
}

// Transaction owns an ordered action list; mutable only up to Commit,
// frozen thereafter (§3.2).
type Transaction struct {
	infraCtx *enginectx.Context
	deps     Dependencies
	token    *CancellationToken

	actions []action
	frozen  bool

	// kubeconfig is populated once a CreateKubernetes action succeeds, and
	// consumed by whichever DeployEnvironment action runs later in the
	// same Transaction (§4.5 Bootstrap -> §4.6 "cluster action preceding
	// an environment action blocks until it completes").
	kubeconfig []byte
}

// New builds a Transaction scoped to infraCtx (§4.6 "Transaction::new(infra_ctx)").
func New(infraCtx *enginectx.Context, deps Dependencies) *Transaction {
	return &Transaction{infraCtx: infraCtx, deps: deps, token: NewCancellationToken()}
}

// Token exposes the Transaction's cancellation token so an external
// cancellation request (user-issued) can be delivered to it.
func (tx *Transaction) Token() *CancellationToken { return tx.token }

func (tx *Transaction) append(a action) {
	if tx.frozen {
		panic("orchestrator: cannot add an action to a Transaction after Commit")
	}
	tx.actions = append(tx.actions, a)
}

// --- Cluster actions --------------------------------------------------------

// CreateKubernetes queues a cluster Bootstrap followed by its ordered
// chart waves (§4.5 Bootstrap).
func (tx *Transaction) CreateKubernetes(details events.EventDetails, env []string, c cluster.Cluster, inputs clusterlifecycle.TerraformInputs, clusterName string, waves []clusterlifecycle.ChartWave) {
	tx.append(&createKubernetesAction{tx: tx, d: details, env: env, cluster: c, inputs: inputs, clusterName: clusterName, waves: waves})
}

// PauseKubernetes queues a cluster Pause (§4.5 Pause).
func (tx *Transaction) PauseKubernetes(details events.EventDetails, env []string, c cluster.Cluster, inputs clusterlifecycle.TerraformInputs, hasRunningTask func() bool) {
	tx.append(&pauseKubernetesAction{tx: tx, d: details, env: env, cluster: c, inputs: inputs, hasRunningTask: hasRunningTask})
}

// UpgradeKubernetes queues a cluster Upgrade (§4.5 Upgrade).
func (tx *Transaction) UpgradeKubernetes(details events.EventDetails, env []string, inputs clusterlifecycle.TerraformInputs, targetK8sVersion string) {
	tx.append(&upgradeKubernetesAction{tx: tx, d: details, env: env, inputs: inputs, targetK8sVersion: targetK8sVersion})
}

// DeleteKubernetes queues a cluster Delete (§4.5 Delete).
func (tx *Transaction) DeleteKubernetes(details events.EventDetails, env []string, inputs clusterlifecycle.TerraformInputs, stateIsEmpty, force bool) {
	tx.append(&deleteKubernetesAction{tx: tx, d: details, env: env, inputs: inputs, stateIsEmpty: stateIsEmpty, force: force})
}

// ResumeKubernetes queues a cluster Resume, the inverse of PauseKubernetes
// (§4.5 Pause/Resume).
func (tx *Transaction) ResumeKubernetes(details events.EventDetails, env []string, inputs clusterlifecycle.TerraformInputs) {
	tx.append(&resumeKubernetesAction{tx: tx, d: details, env: env, inputs: inputs})
}

type createKubernetesAction struct {
	tx          *Transaction
	d           events.EventDetails
	env         []string
	cluster     cluster.Cluster
	inputs      clusterlifecycle.TerraformInputs
	clusterName string
	waves       []clusterlifecycle.ChartWave
}

func (a *createKubernetesAction) name() string                  { return "CreateKubernetes" }
func (a *createKubernetesAction) details() events.EventDetails { return a.d }

func (a *createKubernetesAction) execute(ctx context.Context, token *CancellationToken) error {
	kc, err := a.tx.deps.ClusterMachine.Bootstrap(ctx, a.d, a.env, token.Current, a.cluster, a.inputs, a.clusterName)
	if err != nil {
		return err
	}
	a.tx.kubeconfig = kc

	if _, err := kubeconfig.Persist(a.tx.infraCtx.ClusterWorkspace(), kc); err != nil {
		return err
	}

	if a.tx.deps.Pipeline != nil {
		if clientset, buildErr := kubeconfig.BuildClientset(kc); buildErr == nil {
			a.tx.deps.Pipeline.SetObserver(k8sobserver.New(clientset))
		}
	}

	for _, wave := range a.waves {
		if err := a.tx.deps.ClusterMachine.DeployChartWave(ctx, a.d, a.env, token.Current, wave); err != nil {
			return err
		}
	}
	return nil
}

func (a *createKubernetesAction) rollback(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Delete(ctx, a.d, a.env, token.Current, a.inputs, false, true)
}

type pauseKubernetesAction struct {
	tx             *Transaction
	d              events.EventDetails
	env            []string
	cluster        cluster.Cluster
	inputs         clusterlifecycle.TerraformInputs
	hasRunningTask func() bool
}

func (a *pauseKubernetesAction) name() string                  { return "PauseKubernetes" }
func (a *pauseKubernetesAction) details() events.EventDetails { return a.d }

func (a *pauseKubernetesAction) execute(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Pause(ctx, a.d, a.env, token.Current, a.cluster, a.inputs, a.hasRunningTask)
}

// rollback resumes the cluster: pausing is the only cluster action with a
// natural, cheap compensating action (§4.5 Pause/Resume are inverses).
func (a *pauseKubernetesAction) rollback(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Resume(ctx, a.d, a.env, token.Current, a.inputs)
}

type resumeKubernetesAction struct {
	tx     *Transaction
	d      events.EventDetails
	env    []string
	inputs clusterlifecycle.TerraformInputs
}

func (a *resumeKubernetesAction) name() string                  { return "ResumeKubernetes" }
func (a *resumeKubernetesAction) details() events.EventDetails { return a.d }

func (a *resumeKubernetesAction) execute(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Resume(ctx, a.d, a.env, token.Current, a.inputs)
}

// rollback is a no-op: re-pausing a freshly resumed cluster is not a
// required compensating action (§4.5 Pause/Resume are both operator
// intents, neither reverses data loss the other would cause).
func (a *resumeKubernetesAction) rollback(context.Context, *CancellationToken) error {
	return nil
}

type upgradeKubernetesAction struct {
	tx               *Transaction
	d                events.EventDetails
	env              []string
	inputs           clusterlifecycle.TerraformInputs
	targetK8sVersion string
}

func (a *upgradeKubernetesAction) name() string                  { return "UpgradeKubernetes" }
func (a *upgradeKubernetesAction) details() events.EventDetails { return a.d }

func (a *upgradeKubernetesAction) execute(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Upgrade(ctx, a.d, a.env, token.Current, a.inputs, a.targetK8sVersion)
}

// rollback is a no-op: an already-applied Kubernetes minor version
// upgrade has no safe, generic compensating Terraform plan (downgrades
// are not supported by any managed control plane in scope, §1).
func (a *upgradeKubernetesAction) rollback(context.Context, *CancellationToken) error {
	return nil
}

type deleteKubernetesAction struct {
	tx           *Transaction
	d            events.EventDetails
	env          []string
	inputs       clusterlifecycle.TerraformInputs
	stateIsEmpty bool
	force        bool
}

func (a *deleteKubernetesAction) name() string                  { return "DeleteKubernetes" }
func (a *deleteKubernetesAction) details() events.EventDetails { return a.d }

func (a *deleteKubernetesAction) execute(ctx context.Context, token *CancellationToken) error {
	return a.tx.deps.ClusterMachine.Delete(ctx, a.d, a.env, token.Current, a.inputs, a.stateIsEmpty, a.force)
}

// rollback is a no-op: recreating a deleted cluster from scratch is not a
// safe automatic compensating action (new endpoint, new CA, lost addon
// state) and is left to an operator-initiated CreateKubernetes.
func (a *deleteKubernetesAction) rollback(context.Context, *CancellationToken) error {
	return nil
}

// --- Environment actions -----------------------------------------------------

// DeployEnvironment queues the per-service pipeline run for every spec
// (§4.4, §5 "Across services in one environment, steps may run in
// parallel"). env is used only for its uniqueness/schedule validation;
// specs carry the reduced per-service fields pkg/deploypipeline needs.
func (tx *Transaction) DeployEnvironment(details events.EventDetails, rawEnv []string, env environment.Environment, specs []deploypipeline.Spec) {
	tx.append(&environmentAction{tx: tx, verb: "DeployEnvironment", d: details, rawEnv: rawEnv, env: env, specs: specs, rollbackAction: deploypipeline.ActionDelete})
}

// PauseEnvironment queues a pause of every spec's running workload.
func (tx *Transaction) PauseEnvironment(details events.EventDetails, rawEnv []string, specs []deploypipeline.Spec) {
	tx.append(&environmentAction{tx: tx, verb: "PauseEnvironment", d: details, rawEnv: rawEnv, specs: specs})
}

// DeleteEnvironment queues teardown of every spec.
func (tx *Transaction) DeleteEnvironment(details events.EventDetails, rawEnv []string, specs []deploypipeline.Spec) {
	tx.append(&environmentAction{tx: tx, verb: "DeleteEnvironment", d: details, rawEnv: rawEnv, specs: specs})
}

// RestartEnvironment queues a restart of every spec.
func (tx *Transaction) RestartEnvironment(details events.EventDetails, rawEnv []string, specs []deploypipeline.Spec) {
	tx.append(&environmentAction{tx: tx, verb: "RestartEnvironment", d: details, rawEnv: rawEnv, specs: specs})
}

// environmentAction fans its specs out across the Pipeline concurrently
// (§5 ordering guarantees) and joins every failure into one action-level
// error; rollbackAction, when set, reverses every spec that completed
// before the failure by re-running the pipeline with that verb.
type environmentAction struct {
	tx             *Transaction
	verb           string
	d              events.EventDetails
	rawEnv         []string
	env            environment.Environment
	specs          []deploypipeline.Spec
	rollbackAction deploypipeline.Action

	mu        sync.Mutex
	succeeded []deploypipeline.Spec
}

func (a *environmentAction) name() string                  { return a.verb }
func (a *environmentAction) details() events.EventDetails { return a.d }

func (a *environmentAction) execute(ctx context.Context, token *CancellationToken) error {
	if err := a.env.ValidateUniqueServiceIDs(); err != nil {
		return err
	}
	if err := a.env.ValidateJobSchedules(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range a.specs {
		spec := spec
		g.Go(func() error {
			if err := a.tx.deps.Pipeline.Run(gctx, a.d, a.rawEnv, token.Current, spec); err != nil {
				return fmt.Errorf("service %s: %w", spec.Name, err)
			}
			a.mu.Lock()
			a.succeeded = append(a.succeeded, spec)
			a.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (a *environmentAction) rollback(ctx context.Context, token *CancellationToken) error {
	if a.rollbackAction == "" || len(a.succeeded) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range a.succeeded {
		spec := spec
		spec.Action = a.rollbackAction
		g.Go(func() error {
			return a.tx.deps.Pipeline.Run(gctx, a.d, a.rawEnv, token.Current, spec)
		})
	}
	return g.Wait()
}

// --- Commit ------------------------------------------------------------------

// Commit executes every queued action in insertion order (§4.6 execution
// rule 1). On the first failure it reverses every already-succeeded
// action in this Transaction in LIFO order (rule 2) and returns Rollback,
// or UnrecoverableError if a reversal itself fails.
func (tx *Transaction) Commit(ctx context.Context) CommitResult {
	tx.frozen = true

	lease, err := tx.acquireClusterLock(ctx)
	if err != nil {
		return CommitResult{Outcome: Rollback, Cause: asEngineError(err, tx.fallbackDetails())}
	}
	if lease != nil {
		defer lease.Release(ctx)
	}

	var executed []action
	for _, a := range tx.actions {
		if tx.token.Current().IsCancelled() {
			cause := engineerror.Cancelled(a.details(), fmt.Sprintf("cancelled before action %s", a.name()))
			tx.audit(ctx, a.details(), a.name(), "cancelled")
			return tx.rollbackFrom(ctx, executed, cause)
		}

		if err := a.execute(ctx, tx.token); err != nil {
			cause := asEngineError(err, a.details())
			tx.audit(ctx, a.details(), a.name(), "error")
			if tx.deps.Emitter != nil {
				tx.deps.Emitter.EmitError(cause)
			}
			return tx.rollbackFrom(ctx, executed, cause)
		}

		tx.audit(ctx, a.details(), a.name(), "success")
		executed = append(executed, a)
	}
	return CommitResult{Outcome: Ok}
}

func (tx *Transaction) rollbackFrom(ctx context.Context, executed []action, cause *engineerror.EngineError) CommitResult {
	for i := len(executed) - 1; i >= 0; i-- {
		a := executed[i]
		if err := a.rollback(ctx, tx.token); err != nil {
			rollbackCause := asEngineError(err, a.details())
			tx.audit(ctx, a.details(), a.name(), "rollback_failed")
			return CommitResult{Outcome: UnrecoverableError, Cause: cause, RollbackCause: rollbackCause}
		}
		tx.audit(ctx, a.details(), a.name(), "rolled_back")
	}
	return CommitResult{Outcome: Rollback, Cause: cause}
}

func (tx *Transaction) acquireClusterLock(ctx context.Context) (*clusterlock.Lease, error) {
	if tx.deps.Locker == nil {
		return nil, nil
	}
	details := tx.fallbackDetails()
	return clusterlock.Acquire(ctx, tx.deps.Locker, details, tx.infraCtx.ClusterID, string(tx.infraCtx.ExecutionID))
}

func (tx *Transaction) audit(ctx context.Context, details events.EventDetails, actionName, status string) {
	if tx.deps.Ledger == nil {
		return
	}
	_ = tx.deps.Ledger.Record(ctx, details, actionName, status)
}

// fallbackDetails builds an EventDetails carrying only the Transaction's
// own identity, used for errors that occur before any action-specific
// EventDetails is available (e.g. failing to acquire the cluster lock).
func (tx *Transaction) fallbackDetails() events.EventDetails {
	return events.NewEventDetails(
		"",
		tx.infraCtx.OrganizationID,
		tx.infraCtx.ClusterID,
		tx.infraCtx.ExecutionID,
		"",
		events.InfraStage(events.InfraInstantiate),
		events.Transmitter{Kind: events.TransmitterEngine},
	)
}

func asEngineError(err error, details events.EventDetails) *engineerror.EngineError {
	var ee *engineerror.EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return engineerror.Internal(details, err)
}
