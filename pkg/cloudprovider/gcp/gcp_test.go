package gcp

import (
	"context"
	"strings"
	"testing"
)

func TestCredentialEnvIncludesProjectAndRegion(t *testing.T) {
	p := New(Credentials{ServiceAccountJSON: []byte(`{"type":"service_account"}`), ProjectID: "proj-1", Region: "europe-west1"}, "deployforge/1.0")
	env, err := p.CredentialEnv(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(env, "\n")
	if !strings.Contains(joined, "GOOGLE_PROJECT=proj-1") || !strings.Contains(joined, "GOOGLE_REGION=europe-west1") {
		t.Fatalf("missing expected env entries: %v", env)
	}
}

func TestClientOptionsOmitsCredentialsWhenUnset(t *testing.T) {
	p := New(Credentials{ProjectID: "proj-1"}, "deployforge/1.0")
	opts := p.clientOptions()
	if len(opts) != 1 {
		t.Fatalf("expected only the user-agent option without credentials, got %d options", len(opts))
	}
}

func TestClientOptionsIncludesCredentialsWhenSet(t *testing.T) {
	p := New(Credentials{ServiceAccountJSON: []byte(`{}`), ProjectID: "proj-1"}, "deployforge/1.0")
	opts := p.clientOptions()
	if len(opts) != 2 {
		t.Fatalf("expected user-agent and credentials options, got %d", len(opts))
	}
}

func TestRenderKubeconfigEmbedsClusterAndCAData(t *testing.T) {
	doc := string(renderKubeconfig("prod-cluster", "203.0.113.1", "BASE64CA=="))
	for _, want := range []string{"prod-cluster", "203.0.113.1", "BASE64CA==", "gke-gcloud-auth-plugin"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("rendered kubeconfig missing %q:\n%s", want, doc)
		}
	}
}

func TestObservabilitySinksNamesSinkAfterCluster(t *testing.T) {
	p := New(Credentials{ProjectID: "proj-1"}, "deployforge/1.0")
	sink := p.ObservabilitySinks("prod-cluster")
	if sink.MonitoringProject != "proj-1" {
		t.Fatalf("expected monitoring project proj-1, got %s", sink.MonitoringProject)
	}
	if !strings.Contains(sink.LogSinkName, "prod-cluster") {
		t.Fatalf("expected log sink name to reference the cluster, got %s", sink.LogSinkName)
	}
}

func TestDecodeCARoundTrips(t *testing.T) {
	raw, err := decodeCA("aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("expected decoded CA 'hello', got %q", raw)
	}
}

func TestSupportsPauseIsFalseForGKE(t *testing.T) {
	p := New(Credentials{}, "deployforge/1.0")
	if p.SupportsPause() {
		t.Fatal("GKE clusters do not support the pause lifecycle action")
	}
}
