// Package onpremise implements the cloudprovider.Provider capability
// trait for a self-managed Kubernetes cluster reachable only through a
// caller-supplied kubeconfig; there is no cloud control-plane API to
// call, so Bootstrap/Upgrade/Delete never run Terraform against a cloud
// provider for this kind.
package onpremise

import (
	"context"
	"fmt"

	"github.com/deployforge/engine/pkg/cluster"
)

type Provider struct {
	kubeconfig []byte
}

func New(kubeconfig []byte) *Provider {
	return &Provider{kubeconfig: kubeconfig}
}

func (p *Provider) Kind() cluster.CloudProviderKind { return cluster.CloudOnPremise }

func (p *Provider) CredentialEnv(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (p *Provider) FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error) {
	if len(p.kubeconfig) == 0 {
		return nil, fmt.Errorf("on-premise cluster requires a user-provided kubeconfig")
	}
	return p.kubeconfig, nil
}

func (p *Provider) SupportsPause() bool { return false }
