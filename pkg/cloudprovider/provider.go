// Package cloudprovider defines the capability trait implemented by each
// supported cloud (§9 "Dynamic dispatch over cloud providers"): a closed
// tagged variant plus a narrow interface for the handful of operations
// that differ by cloud, instead of a deep inheritance hierarchy.
package cloudprovider

import (
	"context"

	"github.com/deployforge/engine/pkg/cluster"
)

// CredentialEnv is one KEY=VALUE pair destined for a spawned command's
// environment (§6.1: credentials never appear on argv).
type CredentialEnv = string

// Provider is implemented once per cluster.CloudProviderKind. It never
// shells out to terraform/helm itself — that remains the Command
// Runner's job — but it resolves credentials and, where the cloud has a
// control-plane API, performs the handful of calls that aren't naturally
// expressed as Terraform resources (kubeconfig retrieval, az login
// priming, GKE-specific introspection).
type Provider interface {
	Kind() cluster.CloudProviderKind

	// CredentialEnv resolves the environment variables a spawned
	// terraform/helm/kubectl invocation needs for this cloud (§6.2).
	CredentialEnv(ctx context.Context) ([]CredentialEnv, error)

	// FetchKubeconfig retrieves a kubeconfig for an already-bootstrapped
	// cluster, used after Terraform apply succeeds (§4.5 Bootstrap) unless
	// the caller supplied UserProvidedKubeconfig.
	FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error)

	// SupportsPause reports whether this cloud's managed control plane can
	// be paused by scaling node groups to zero while billing for the
	// control plane continues (§4.5 Pause).
	SupportsPause() bool
}

// ProtectedTerraformResources lists the Terraform resource type prefixes
// whose destruction/replacement the no-destructive-changes validator
// refuses during an Upgrade (§4.5), per cloud.
func ProtectedTerraformResources(kind cluster.CloudProviderKind) []string {
	switch kind {
	case cluster.CloudAWS:
		return []string{"aws_eks_cluster"}
	case cluster.CloudGCP:
		return []string{"google_container_cluster"}
	case cluster.CloudScaleway:
		return []string{"scaleway_k8s_cluster"}
	case cluster.CloudAzure:
		return []string{"azurerm_kubernetes_cluster"}
	default:
		return nil
	}
}
