// Package scaleway implements the cloudprovider.Provider capability
// trait for Scaleway Kapsule.
package scaleway

import (
	"context"
	"fmt"
	"strings"

	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/command"
)

// Credentials are the Scaleway credential fields carried in an
// enginectx Context (§6.2).
type Credentials struct {
	AccessKey       string
	SecretKey       string
	DefaultProjectID string
}

type Provider struct {
	creds  Credentials
	binary string
	runner *command.Runner
}

func New(creds Credentials, binary string) *Provider {
	return &Provider{creds: creds, binary: binary, runner: command.New()}
}

func (p *Provider) Kind() cluster.CloudProviderKind { return cluster.CloudScaleway }

func (p *Provider) CredentialEnv(ctx context.Context) ([]string, error) {
	return []string{
		"SCW_ACCESS_KEY=" + p.creds.AccessKey,
		"SCW_SECRET_KEY=" + p.creds.SecretKey,
		"SCW_DEFAULT_PROJECT_ID=" + p.creds.DefaultProjectID,
	}, nil
}

// FetchKubeconfig runs `scw k8s kubeconfig get`, which prints the
// kubeconfig YAML to stdout rather than writing a file.
func (p *Provider) FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error) {
	env, err := p.CredentialEnv(ctx)
	if err != nil {
		return nil, err
	}
	var out strings.Builder
	res := p.runner.Run(ctx, command.Spec{
		Binary: p.binary,
		Args:   []string{"k8s", "kubeconfig", "get", clusterName, "region=" + region},
		Env:    env,
		OnStdout: func(line string) {
			out.WriteString(line)
			out.WriteString("\n")
		},
	})
	if res.Outcome != command.Ok {
		return nil, fmt.Errorf("scw k8s kubeconfig get: %s", res.Error())
	}
	return []byte(out.String()), nil
}

func (p *Provider) SupportsPause() bool { return false }
