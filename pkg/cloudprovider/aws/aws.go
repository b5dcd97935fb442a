// Package aws implements the cloudprovider.Provider capability trait for
// AWS/EKS (§6.2).
package aws

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/command"
)

// Credentials are the AWS credential fields carried in an enginectx
// Context, never persisted to disk.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultRegion   string
}

type Provider struct {
	creds  Credentials
	binary string
	runner *command.Runner
}

func New(creds Credentials, binary string) *Provider {
	return &Provider{creds: creds, binary: binary, runner: command.New()}
}

func (p *Provider) Kind() cluster.CloudProviderKind { return cluster.CloudAWS }

func (p *Provider) CredentialEnv(ctx context.Context) ([]string, error) {
	env := []string{
		"AWS_ACCESS_KEY_ID=" + p.creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + p.creds.SecretAccessKey,
		"AWS_DEFAULT_REGION=" + p.creds.DefaultRegion,
	}
	if p.creds.SessionToken != "" {
		env = append(env, "AWS_SESSION_TOKEN="+p.creds.SessionToken)
	}
	return env, nil
}

// FetchKubeconfig runs `aws eks update-kubeconfig` against a scratch
// kubeconfig file and reads it back, rather than touching the caller's
// default ~/.kube/config.
func (p *Provider) FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("deployforge-%s-kubeconfig", clusterName))
	env, err := p.CredentialEnv(ctx)
	if err != nil {
		return nil, err
	}
	res := p.runner.Run(ctx, command.Spec{
		Binary: p.binary,
		Args: []string{
			"eks", "update-kubeconfig",
			"--name", clusterName,
			"--region", region,
			"--kubeconfig", path,
		},
		Env: env,
	})
	if res.Outcome != command.Ok {
		return nil, fmt.Errorf("aws eks update-kubeconfig: %s", res.Error())
	}
	return os.ReadFile(path)
}

func (p *Provider) SupportsPause() bool { return true }
