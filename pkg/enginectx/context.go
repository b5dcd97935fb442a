// Package enginectx carries the per-commit request state (§3.2): identity,
// scratch paths, feature flags, and metadata knobs. It is immutable once
// built and scoped to exactly one Transaction.commit() call, unlike the
// process-wide pkg/config.
package enginectx

import (
	"github.com/deployforge/engine/pkg/ids"
)

// FeatureFlags are optional capability toggles for one commit.
type FeatureFlags struct {
	LogsHistory    bool
	MetricsHistory bool
}

// Metadata carries knobs that alter commit behavior without changing the
// declared Environment/Cluster model.
type Metadata struct {
	DryRunDeploy                bool
	ForcedUpgrade               bool
	DisablePleco                bool
	ResourceExpirationInSeconds int64
}

// Context is the immutable per-commit state threaded through every C2/C3
// call. Built at request ingress, discarded after commit() returns.
type Context struct {
	OrganizationID ids.OrganizationID
	ClusterID      ids.ClusterID
	ExecutionID    ids.ExecutionID

	// WorkspaceRoot is the scratch directory for generated Terraform/Helm
	// files, owned exclusively by this Context's Transaction.
	WorkspaceRoot string
	// LibraryRoot is the read-only templates directory (chart/module
	// sources).
	LibraryRoot string

	Features FeatureFlags
	Metadata Metadata

	// DockerSocketURL is empty for the default local socket.
	DockerSocketURL string
}

// New builds a Context for one commit() invocation.
func New(org ids.OrganizationID, cluster ids.ClusterID, workspaceRoot, libraryRoot string) *Context {
	return &Context{
		OrganizationID: org,
		ClusterID:      cluster,
		ExecutionID:    ids.NewExecutionID(),
		WorkspaceRoot:  workspaceRoot,
		LibraryRoot:    libraryRoot,
	}
}

// ClusterWorkspace returns the scratch directory for this cluster's
// generated Terraform assets (§6.5: `terraform/<cluster>/`).
func (c *Context) ClusterWorkspace() string {
	return c.WorkspaceRoot + "/terraform/" + c.ClusterID.String()
}

// ChartWaveWorkspace returns the scratch directory for one chart wave's
// rendered values files (§6.5: `charts/<cluster>/<wave>/`).
func (c *Context) ChartWaveWorkspace(wave string) string {
	return c.WorkspaceRoot + "/charts/" + c.ClusterID.String() + "/" + wave
}
