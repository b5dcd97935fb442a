// Package config loads process-wide configuration: default binary paths,
// state backend coordinates, polling cadence, and log settings. It is
// loaded once at process startup, unlike the per-commit enginectx.Context.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is process-wide configuration, parsed from the environment.
type Config struct {
	LogLevel  string `env:"DEPLOYFORGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DEPLOYFORGE_LOG_FORMAT" envDefault:"text"`

	WorkspaceRoot string `env:"DEPLOYFORGE_WORKSPACE_ROOT" envDefault:"/tmp/deployforge"`
	LibraryRoot   string `env:"DEPLOYFORGE_LIBRARY_ROOT" envDefault:"/etc/deployforge/templates"`

	TerraformBinary string `env:"DEPLOYFORGE_TERRAFORM_BIN" envDefault:"terraform"`
	HelmBinary      string `env:"DEPLOYFORGE_HELM_BIN" envDefault:"helm"`
	KubectlBinary   string `env:"DEPLOYFORGE_KUBECTL_BIN" envDefault:"kubectl"`
	SkopeoBinary    string `env:"DEPLOYFORGE_SKOPEO_BIN" envDefault:"skopeo"`
	DockerBinary    string `env:"DEPLOYFORGE_DOCKER_BIN" envDefault:"docker"`
	AWSBinary       string `env:"DEPLOYFORGE_AWS_BIN" envDefault:"aws"`
	ScalewayBinary  string `env:"DEPLOYFORGE_SCALEWAY_BIN" envDefault:"scw"`

	CommandTimeoutSeconds int `env:"DEPLOYFORGE_COMMAND_TIMEOUT_SECONDS" envDefault:"3600"`
	PollIntervalSeconds   int `env:"DEPLOYFORGE_POLL_INTERVAL_SECONDS" envDefault:"10"`

	TerraformStateBucket string `env:"DEPLOYFORGE_TF_STATE_BUCKET" envDefault:""`
	TerraformLockTable   string `env:"DEPLOYFORGE_TF_LOCK_TABLE" envDefault:""`

	RedisAddr string `env:"DEPLOYFORGE_REDIS_ADDR" envDefault:"localhost:6379"`

	PostgresDSN string `env:"DEPLOYFORGE_POSTGRES_DSN" envDefault:""`
}

// Load parses Config from the process environment, applying envDefault
// tags for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
