package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/deployforge/engine/pkg/cloudprovider/aws"
	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/clusterlifecycle"
	"github.com/deployforge/engine/pkg/deploypipeline"
	"github.com/deployforge/engine/pkg/enginectx"
	"github.com/deployforge/engine/pkg/environment"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/helmrun"
	"github.com/deployforge/engine/pkg/ids"
	"github.com/deployforge/engine/pkg/k8sobserver"
	"github.com/deployforge/engine/pkg/metrics"
	"github.com/deployforge/engine/pkg/registryrun"
	"github.com/deployforge/engine/pkg/terraformrun"
)

func sampleDetails() events.EventDetails {
	return events.NewEventDetails(
		events.ProviderAWS,
		ids.OrganizationID(ids.MustParse("11111111-1111-1111-1111-111111111111")),
		ids.ClusterID(ids.MustParse("22222222-2222-2222-2222-222222222222")),
		ids.NewExecutionID(),
		"eu-west-3",
		events.InfraStage(events.InfraCreate),
		events.Transmitter{Kind: events.TransmitterEngine},
	)
}

func newTestContext() *enginectx.Context {
	return enginectx.New(
		ids.OrganizationID(ids.MustParse("11111111-1111-1111-1111-111111111111")),
		ids.ClusterID(ids.MustParse("22222222-2222-2222-2222-222222222222")),
		"/workspace", "/templates",
	)
}

func newTestPipeline() *deploypipeline.Pipeline {
	return deploypipeline.New(deploypipeline.Dependencies{
		Docker:   registryrun.NewDocker("true"),
		Skopeo:   registryrun.NewSkopeo("true"),
		Helm:     helmrun.New("true"),
		Observer: k8sobserver.New(fake.NewSimpleClientset()),
		Metrics:  metrics.NewRegistry(prometheus.NewRegistry(), logrus.New()),
		Emitter:  events.NopEmitter{},
	})
}

func newTestClusterMachine(terraformBinary string) *clusterlifecycle.Machine {
	return clusterlifecycle.New(clusterlifecycle.Dependencies{
		Terraform: terraformrun.New(terraformBinary),
		Helm:      helmrun.New("true"),
		Provider:  aws.New(aws.Credentials{AccessKeyID: "a", SecretAccessKey: "b", DefaultRegion: "eu-west-3"}, "aws"),
	})
}

func environmentWithOneService() environment.Environment {
	return environment.Environment{
		LongID:    ids.ServiceID(ids.New()),
		Namespace: "my-ns",
		Applications: []environment.Application{
			{LongID: ids.ServiceID(ids.New()), Name: "web"},
		},
	}
}

func oneApplicationSpec(action deploypipeline.Action) deploypipeline.Spec {
	return deploypipeline.Spec{
		Kind:             deploypipeline.KindApplication,
		LongID:           ids.ServiceID(ids.New()),
		Name:             "web",
		Action:           action,
		ChartPath:        "/templates/web",
		Namespace:        "my-ns",
		StaticValuesYAML: []byte("replicaCount: 1\n"),
		HelmTimeoutSecs:  60,
	}
}

func TestCommitReturnsOkWhenClusterAndEnvironmentActionsSucceed(t *testing.T) {
	tx := New(newTestContext(), Dependencies{
		ClusterMachine: newTestClusterMachine("true"),
		Pipeline:       newTestPipeline(),
	})

	details := sampleDetails()
	c := cluster.Cluster{Provider: cluster.CloudAWS, UserProvidedKubeconfig: "apiVersion: v1\nkind: Config\n"}
	inputs := clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}
	tx.CreateKubernetes(details, nil, c, inputs, "my-cluster", nil)
	tx.DeployEnvironment(details, nil, environmentWithOneService(), []deploypipeline.Spec{oneApplicationSpec(deploypipeline.ActionCreate)})

	result := tx.Commit(context.Background())
	if result.Outcome != Ok {
		t.Fatalf("expected Ok, got %s (cause: %v)", result.Outcome, result.Cause)
	}
}

func TestCommitRollsBackClusterCreationWhenDeployEnvironmentFails(t *testing.T) {
	tx := New(newTestContext(), Dependencies{
		ClusterMachine: newTestClusterMachine("true"),
		Pipeline: deploypipeline.New(deploypipeline.Dependencies{
			Docker:   registryrun.NewDocker("false"),
			Skopeo:   registryrun.NewSkopeo("true"),
			Helm:     helmrun.New("true"),
			Observer: k8sobserver.New(fake.NewSimpleClientset()),
			Metrics:  metrics.NewRegistry(prometheus.NewRegistry(), logrus.New()),
			Emitter:  events.NopEmitter{},
		}),
	})

	details := sampleDetails()
	c := cluster.Cluster{Provider: cluster.CloudAWS, UserProvidedKubeconfig: "apiVersion: v1\nkind: Config\n"}
	inputs := clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}
	tx.CreateKubernetes(details, nil, c, inputs, "my-cluster", nil)

	appSpec := oneApplicationSpec(deploypipeline.ActionCreate)
	appSpec.HasGitSource = true
	appSpec.CommitID = "abc123"
	appSpec.DockerfilePath = "Dockerfile"
	appSpec.BuildContextDir = t.TempDir()
	tx.DeployEnvironment(details, nil, environmentWithOneService(), []deploypipeline.Spec{appSpec})

	result := tx.Commit(context.Background())
	if result.Outcome != Rollback {
		t.Fatalf("expected Rollback, got %s", result.Outcome)
	}
	if result.Cause == nil {
		t.Fatal("expected a cause on a rolled-back commit")
	}
}

func TestCommitStopsBeforeAnyActionWhenAlreadyCancelled(t *testing.T) {
	tx := New(newTestContext(), Dependencies{
		ClusterMachine: newTestClusterMachine("true"),
		Pipeline:       newTestPipeline(),
	})
	tx.Token().ForceRequest()

	details := sampleDetails()
	c := cluster.Cluster{Provider: cluster.CloudAWS, UserProvidedKubeconfig: "apiVersion: v1\nkind: Config\n"}
	inputs := clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}
	tx.CreateKubernetes(details, nil, c, inputs, "my-cluster", nil)

	result := tx.Commit(context.Background())
	if result.Outcome != Rollback {
		t.Fatalf("expected Rollback from a pre-cancelled commit, got %s", result.Outcome)
	}
}

func TestCommitReturnsOkForResumeKubernetes(t *testing.T) {
	tx := New(newTestContext(), Dependencies{
		ClusterMachine: newTestClusterMachine("true"),
	})

	inputs := clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}
	tx.ResumeKubernetes(sampleDetails(), nil, inputs)

	result := tx.Commit(context.Background())
	if result.Outcome != Ok {
		t.Fatalf("expected Ok, got %s (cause: %v)", result.Outcome, result.Cause)
	}
}

func TestCommitRollsBackResumeKubernetesAsNoOpWhenLaterActionFails(t *testing.T) {
	tx := New(newTestContext(), Dependencies{
		ClusterMachine: newTestClusterMachine("true"),
	})

	details := sampleDetails()
	inputs := clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}
	tx.ResumeKubernetes(details, nil, inputs)
	tx.DeleteKubernetes(details, nil, clusterlifecycle.TerraformInputs{WorkDir: t.TempDir()}, false, false)

	result := tx.Commit(context.Background())
	if result.Outcome != Rollback {
		t.Fatalf("expected Rollback, got %s", result.Outcome)
	}
}

func TestAppendAfterCommitPanics(t *testing.T) {
	tx := New(newTestContext(), Dependencies{ClusterMachine: newTestClusterMachine("true"), Pipeline: newTestPipeline()})
	tx.Commit(context.Background())

	defer func() {
		if recover() == nil {
			t.Fatal("expected appending to a frozen Transaction to panic")
		}
	}()
	tx.DeployEnvironment(sampleDetails(), nil, environmentWithOneService(), nil)
}
