// Package azure implements the cloudprovider.Provider capability trait
// for Azure/AKS. Azure credentials are primed via `az login` before any
// Terraform run; IAM role propagation after login is eventually
// consistent, so login is retried (§6.2, SUPPLEMENTED FEATURES point 3).
package azure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/command"
)

// azLoginMaxAttempts and azLoginRetryDelay absorb IAM propagation delays
// after a fresh service-principal login (§6.2).
const (
	azLoginMaxAttempts = 10
	azLoginRetryDelay  = 5 * time.Second
)

// Credentials are the Azure service-principal fields carried in an
// enginectx Context (§6.2).
type Credentials struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	SubscriptionID string
}

type Provider struct {
	creds    Credentials
	azBinary string
	runner   *command.Runner
}

func New(creds Credentials, azBinary string) *Provider {
	return &Provider{creds: creds, azBinary: azBinary, runner: command.New()}
}

func (p *Provider) Kind() cluster.CloudProviderKind { return cluster.CloudAzure }

// CredentialEnv performs the `az login` retry loop and, once it
// succeeds, returns the subscription id as the only env var Terraform's
// azurerm provider strictly needs beyond an already-primed CLI session.
func (p *Provider) CredentialEnv(ctx context.Context) ([]string, error) {
	if err := p.login(ctx); err != nil {
		return nil, err
	}
	return []string{"ARM_SUBSCRIPTION_ID=" + p.creds.SubscriptionID}, nil
}

func (p *Provider) login(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= azLoginMaxAttempts; attempt++ {
		res := p.runner.Run(ctx, command.Spec{
			Binary: p.azBinary,
			Args: []string{
				"login", "--service-principal",
				"--username", p.creds.ClientID,
				"--tenant", p.creds.TenantID,
			},
			Env: []string{"AZURE_CLIENT_SECRET=" + p.creds.ClientSecret},
		})
		if res.Outcome == command.Ok {
			return nil
		}
		lastErr = fmt.Errorf("az login attempt %d/%d failed: %s", attempt, azLoginMaxAttempts, res.Error())
		if attempt < azLoginMaxAttempts {
			time.Sleep(azLoginRetryDelay)
		}
	}
	return lastErr
}

// FetchKubeconfig runs `az aks get-credentials` into a scratch file and
// reads it back; region is the resource group (AKS clusters are scoped
// by resource group, not location).
func (p *Provider) FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("deployforge-%s-kubeconfig", clusterName))
	res := p.runner.Run(ctx, command.Spec{
		Binary: p.azBinary,
		Args: []string{
			"aks", "get-credentials",
			"--name", clusterName,
			"--resource-group", region,
			"--file", path,
			"--overwrite-existing",
		},
	})
	if res.Outcome != command.Ok {
		return nil, fmt.Errorf("az aks get-credentials: %s", res.Error())
	}
	return os.ReadFile(path)
}

func (p *Provider) SupportsPause() bool { return true }
