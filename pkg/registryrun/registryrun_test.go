package registryrun

import (
	"context"
	"testing"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/command"
	"github.com/deployforge/engine/pkg/dockerfile"
)

func TestDockerBuildSucceeds(t *testing.T) {
	d := NewDocker("true")
	res := d.Build(context.Background(), BuildOpts{
		ContextDir: ".",
		Dockerfile: "Dockerfile",
		Tag:        "example:1",
		BuildArgs:  []dockerfile.EnvVar{{Key: "FOO", Value: "bar"}},
	}, nil, nil)
	if res.Outcome != command.Ok {
		t.Fatalf("expected Ok, got %v", res.Outcome)
	}
}

func TestDockerBuildPropagatesFailure(t *testing.T) {
	d := NewDocker("false")
	res := d.Build(context.Background(), BuildOpts{ContextDir: ".", Dockerfile: "Dockerfile", Tag: "x"}, nil, nil)
	if res.Outcome == command.Ok {
		t.Fatal("expected a non-Ok outcome from a failing binary")
	}
}

func TestSkopeoCopySucceedsOnFirstAttempt(t *testing.T) {
	s := NewSkopeo("true")
	res := s.Copy(context.Background(), "src:1", "dst:1", nil, func() abortstatus.AbortStatus { return abortstatus.None })
	if res.Outcome != command.Ok {
		t.Fatalf("expected Ok, got %v", res.Outcome)
	}
}

func TestSkopeoCopyExhaustsRetriesOnPersistentFailure(t *testing.T) {
	s := NewSkopeo("false")
	res := s.Copy(context.Background(), "src:1", "dst:1", nil, func() abortstatus.AbortStatus { return abortstatus.None })
	if res.Outcome == command.Ok {
		t.Fatal("expected a failing outcome after exhausting all retry attempts")
	}
}

func TestBackoffDelayIsFibonacciCappedAtFiveAttempts(t *testing.T) {
	want := []int64{1, 1, 2, 3, 5, 5, 5}
	for i, w := range want {
		if got := backoffDelay(i + 1).Seconds(); int64(got) != w {
			t.Fatalf("attempt %d: got %.0fs, want %ds", i+1, got, w)
		}
	}
}
