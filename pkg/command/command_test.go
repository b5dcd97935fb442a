package command

import (
	"context"
	"testing"
	"time"

	"github.com/deployforge/engine/pkg/abortstatus"
)

func TestRunSuccessStreamsStdout(t *testing.T) {
	r := New()
	var lines []string
	res := r.Run(context.Background(), Spec{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "echo hello; echo world >&2"},
		Timeout: 5 * time.Second,
		OnStdout: func(l string) {
			lines = append(lines, l)
		},
	})
	if res.Outcome != Ok {
		t.Fatalf("expected Ok, got %v (%s)", res.Outcome, res.Error())
	}
	if len(lines) != 1 || lines[0] != "hello" {
		t.Fatalf("unexpected stdout lines: %v", lines)
	}
}

func TestRunExitStatusError(t *testing.T) {
	r := New()
	res := r.Run(context.Background(), Spec{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "exit 3"},
		Timeout: 5 * time.Second,
	})
	if res.Outcome != ExitStatusError {
		t.Fatalf("expected ExitStatusError, got %v", res.Outcome)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunTimeout(t *testing.T) {
	r := New()
	res := r.Run(context.Background(), Spec{
		Binary:      "/bin/sh",
		Args:        []string{"-c", "sleep 30"},
		Timeout:     1100 * time.Millisecond,
		GracePeriod: 0,
	})
	if res.Outcome != TimeoutError {
		t.Fatalf("expected TimeoutError, got %v (%s)", res.Outcome, res.Error())
	}
}

func TestRunKilledByShouldBeKilled(t *testing.T) {
	r := New()
	killAfter := time.Now().Add(1100 * time.Millisecond)
	res := r.Run(context.Background(), Spec{
		Binary:  "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 30 * time.Second,
		ShouldBeKilled: func() abortstatus.AbortStatus {
			if time.Now().After(killAfter) {
				return abortstatus.UserForceRequested
			}
			return abortstatus.None
		},
	})
	if res.Outcome != Killed {
		t.Fatalf("expected Killed, got %v (%s)", res.Outcome, res.Error())
	}
}

func TestRunEnvNeverOnArgv(t *testing.T) {
	// Regression guard: Spec never places credentials on Args, only Env.
	// This test asserts the contract at the type level by constructing a
	// Spec the way callers must: secrets flow through Env.
	spec := Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "true"},
		Env:    []string{"AWS_SECRET_ACCESS_KEY=should-not-appear-in-args"},
	}
	for _, a := range spec.Args {
		if a == "AWS_SECRET_ACCESS_KEY=should-not-appear-in-args" {
			t.Fatal("credential leaked into Args")
		}
	}
}
