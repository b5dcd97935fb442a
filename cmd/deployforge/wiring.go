package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deployforge/engine/pkg/auditlog"
	"github.com/deployforge/engine/pkg/cloudprovider"
	"github.com/deployforge/engine/pkg/cloudprovider/aws"
	"github.com/deployforge/engine/pkg/cloudprovider/azure"
	"github.com/deployforge/engine/pkg/cloudprovider/gcp"
	"github.com/deployforge/engine/pkg/cloudprovider/onpremise"
	"github.com/deployforge/engine/pkg/cloudprovider/scaleway"
	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/clusterlifecycle"
	"github.com/deployforge/engine/pkg/clusterlock"
	"github.com/deployforge/engine/pkg/config"
	"github.com/deployforge/engine/pkg/deploypipeline"
	"github.com/deployforge/engine/pkg/enginectx"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/helmrun"
	"github.com/deployforge/engine/pkg/k8sobserver"
	"github.com/deployforge/engine/pkg/kubeconfig"
	"github.com/deployforge/engine/pkg/manifest"
	"github.com/deployforge/engine/pkg/metrics"
	"github.com/deployforge/engine/pkg/orchestrator"
	"github.com/deployforge/engine/pkg/registryrun"
	"github.com/deployforge/engine/pkg/terraformrun"
	"github.com/prometheus/client_golang/prometheus"
)

// manifestPath is the persistent --manifest flag shared by every
// subcommand (§6.2: one manifest describes the cluster and environment a
// Transaction acts on).
var manifestPath string

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// providerFor resolves the cloudprovider.Provider implementation for
// kind, reading credentials from the process environment (§6.2
// "credentials never appear on argv").
func providerFor(cfg *config.Config, kind cluster.CloudProviderKind, region string) (cloudprovider.Provider, error) {
	switch kind {
	case cluster.CloudAWS:
		return aws.New(aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			DefaultRegion:   region,
		}, cfg.AWSBinary), nil
	case cluster.CloudAzure:
		return azure.New(azure.Credentials{
			ClientID:       os.Getenv("AZURE_CLIENT_ID"),
			ClientSecret:   os.Getenv("AZURE_CLIENT_SECRET"),
			TenantID:       os.Getenv("AZURE_TENANT_ID"),
			SubscriptionID: os.Getenv("AZURE_SUBSCRIPTION_ID"),
		}, "az"), nil
	case cluster.CloudGCP:
		return gcp.New(gcp.Credentials{
			ProjectID: os.Getenv("GCP_PROJECT_ID"),
			Region:    region,
		}, "deployforge"), nil
	case cluster.CloudScaleway:
		return scaleway.New(scaleway.Credentials{
			AccessKey:        os.Getenv("SCW_ACCESS_KEY"),
			SecretKey:        os.Getenv("SCW_SECRET_KEY"),
			DefaultProjectID: os.Getenv("SCW_DEFAULT_PROJECT_ID"),
		}, cfg.ScalewayBinary), nil
	case cluster.CloudOnPremise:
		return onpremise.New(nil), nil
	default:
		return nil, fmt.Errorf("no cloud provider wired for %s", kind)
	}
}

// observerFromPersistedKubeconfig loads the kubeconfig a prior bootstrap
// run wrote to the cluster workspace (orchestrator.createKubernetesAction
// persists it there via kubeconfig.Persist), so a `deploy`/`pause`/etc
// invocation running in its own process still gets a live Observer
// without re-running Bootstrap. A fresh cluster with no prior bootstrap
// in this workspace yields a nil Observer; convergence polling then
// fails loudly the first time a step needs it, rather than silently
// no-op'ing.
func observerFromPersistedKubeconfig(infraCtx *enginectx.Context) *k8sobserver.Observer {
	path := filepath.Join(infraCtx.ClusterWorkspace(), "kubeconfig.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	clientset, err := kubeconfig.BuildClientset(raw)
	if err != nil {
		return nil
	}
	return k8sobserver.New(clientset)
}

// deps bundles everything one CLI invocation needs to build a
// Transaction: the parsed manifest plus every collaborator Commit drives.
type deps struct {
	cfg      *config.Config
	m        *manifest.Manifest
	infraCtx *enginectx.Context
	orch     orchestrator.Dependencies
	details  events.EventDetails
}

func loadDeps(ctx context.Context) *deps {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		log.Fatalf("loading manifest: %v", err)
	}

	orgID, err := m.OrgID()
	if err != nil {
		log.Fatalf("invalid manifest: %v", err)
	}
	clusterID, err := m.ClusterIDParsed()
	if err != nil {
		log.Fatalf("invalid manifest: %v", err)
	}
	kind, err := m.CloudKind()
	if err != nil {
		log.Fatalf("invalid manifest: %v", err)
	}

	infraCtx := enginectx.New(orgID, clusterID, cfg.WorkspaceRoot, cfg.LibraryRoot)
	logger := newLogger(cfg)
	emitter := events.NewLogrusEmitter(logger)

	details := events.NewEventDetails(
		events.ProviderKind(m.Provider),
		orgID, clusterID, infraCtx.ExecutionID,
		m.Region,
		events.InfraStage(events.InfraInstantiate),
		events.Transmitter{Kind: events.TransmitterEngine},
	)

	provider, err := providerFor(cfg, kind, m.Region)
	if err != nil {
		log.Fatalf("resolving cloud provider: %v", err)
	}

	commandTimeout := time.Duration(cfg.CommandTimeoutSeconds) * time.Second

	clusterMachine := clusterlifecycle.New(clusterlifecycle.Dependencies{
		Terraform: terraformrun.NewWithTimeout(cfg.TerraformBinary, commandTimeout),
		Helm:      helmrun.NewWithTimeout(cfg.HelmBinary, commandTimeout),
		Provider:  provider,
	})

	pipeline := deploypipeline.New(deploypipeline.Dependencies{
		Docker:       registryrun.NewDocker(cfg.DockerBinary),
		Skopeo:       registryrun.NewSkopeo(cfg.SkopeoBinary),
		Helm:         helmrun.NewWithTimeout(cfg.HelmBinary, commandTimeout),
		Observer:     observerFromPersistedKubeconfig(infraCtx),
		Metrics:      metrics.NewRegistry(prometheus.NewRegistry(), logger),
		Emitter:      emitter,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
	})

	var locker *clusterlock.Locker
	if cfg.RedisAddr != "" {
		locker = clusterlock.New(cfg.RedisAddr)
	}

	var ledger *auditlog.Ledger
	if cfg.PostgresDSN != "" {
		ledger, err = auditlog.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("opening audit log: %v", err)
		}
		if err := ledger.EnsureSchema(ctx); err != nil {
			log.Fatalf("preparing audit log schema: %v", err)
		}
	}

	return &deps{
		cfg:      cfg,
		m:        m,
		infraCtx: infraCtx,
		details:  details,
		orch: orchestrator.Dependencies{
			ClusterMachine: clusterMachine,
			Pipeline:       pipeline,
			Locker:         locker,
			Ledger:         ledger,
			Emitter:        emitter,
		},
	}
}

// report prints result in the teacher's fmt.Println/log.Fatalf idiom and
// exits non-zero on anything but Ok.
func report(result orchestrator.CommitResult) {
	switch result.Outcome {
	case orchestrator.Ok:
		fmt.Println("commit succeeded")
	case orchestrator.Rollback:
		log.Fatalf("commit rolled back: %v", result.Cause)
	case orchestrator.UnrecoverableError:
		log.Fatalf("commit left the cluster in an inconsistent state: %v (rollback also failed: %v)", result.Cause, result.RollbackCause)
	}
}
