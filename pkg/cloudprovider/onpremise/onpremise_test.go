package onpremise

import (
	"context"
	"testing"

	"github.com/deployforge/engine/pkg/cluster"
)

func TestFetchKubeconfigReturnsStoredDocument(t *testing.T) {
	p := New([]byte("apiVersion: v1\nkind: Config\n"))
	kc, err := p.FetchKubeconfig(context.Background(), "any", "any")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(kc) != "apiVersion: v1\nkind: Config\n" {
		t.Fatalf("unexpected kubeconfig: %s", kc)
	}
}

func TestFetchKubeconfigFailsWithoutUserProvidedDocument(t *testing.T) {
	p := New(nil)
	if _, err := p.FetchKubeconfig(context.Background(), "any", "any"); err == nil {
		t.Fatal("expected an error when no kubeconfig was provided")
	}
}

func TestCredentialEnvIsEmpty(t *testing.T) {
	p := New([]byte("x"))
	env, err := p.CredentialEnv(context.Background())
	if err != nil || env != nil {
		t.Fatalf("expected nil env and no error, got %v, %v", env, err)
	}
}

func TestKindIsOnPremise(t *testing.T) {
	p := New([]byte("x"))
	if p.Kind() != cluster.CloudOnPremise {
		t.Fatalf("expected CloudOnPremise, got %v", p.Kind())
	}
}
