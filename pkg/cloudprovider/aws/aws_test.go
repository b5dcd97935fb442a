package aws

import (
	"context"
	"testing"
)

func TestCredentialEnvNeverOmitsRequiredKeys(t *testing.T) {
	p := New(Credentials{AccessKeyID: "AKIA...", SecretAccessKey: "secret", DefaultRegion: "eu-west-3"}, "aws")
	env, err := p.CredentialEnv(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{
		"AWS_ACCESS_KEY_ID=AKIA...":             true,
		"AWS_SECRET_ACCESS_KEY=secret":          true,
		"AWS_DEFAULT_REGION=eu-west-3":          true,
	}
	for _, e := range env {
		delete(want, e)
	}
	if len(want) != 0 {
		t.Fatalf("missing expected env entries: %v", want)
	}
}

func TestCredentialEnvOmitsSessionTokenWhenUnset(t *testing.T) {
	p := New(Credentials{AccessKeyID: "a", SecretAccessKey: "b", DefaultRegion: "c"}, "aws")
	env, _ := p.CredentialEnv(context.Background())
	for _, e := range env {
		if len(e) >= len("AWS_SESSION_TOKEN") && e[:len("AWS_SESSION_TOKEN")] == "AWS_SESSION_TOKEN" {
			t.Fatal("did not expect AWS_SESSION_TOKEN without a session token")
		}
	}
}
