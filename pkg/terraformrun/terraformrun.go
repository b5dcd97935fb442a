// Package terraformrun wraps terraform init/plan/apply/destroy/output
// invocations through the Command Runner, decodes terraform output JSON,
// and validates a plan's text output against a list of protected
// resources before any apply is allowed to run (§4.5, §6.1, §9 Open
// Question on destructive-replace detection precision).
package terraformrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deployforge/engine/pkg/abortstatus"
	"github.com/deployforge/engine/pkg/command"
	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/obfuscation"
)

// destructiveMarkers are the Terraform plan-text phrases that signal a
// resource will be destroyed or replaced. Matching is textual, not a
// structured `-json` plan parse — an intentional, documented limitation
// (§9 Open Question).
var destructiveMarkers = []string{"will be destroyed", "must be replaced"}

// Runner drives terraform through the Command Runner.
type Runner struct {
	binary  string
	timeout time.Duration
	runner  *command.Runner
}

func New(binary string) *Runner {
	return &Runner{binary: binary, runner: command.New()}
}

// NewWithTimeout is New plus a per-invocation timeout applied to every
// command.Spec this Runner builds (§6.4 CommandTimeoutSeconds).
func NewWithTimeout(binary string, timeout time.Duration) *Runner {
	return &Runner{binary: binary, timeout: timeout, runner: command.New()}
}

// RunOpts parameterizes one terraform invocation.
type RunOpts struct {
	WorkDir        string
	Env            []string
	Args           []string
	GracePeriod    int
	ShouldBeKilled func() abortstatus.AbortStatus
	Secrets        []string
}

// Run executes `terraform <args...>` and captures combined stdout/stderr,
// obfuscating secrets in the returned text.
func (r *Runner) Run(ctx context.Context, opts RunOpts) (string, command.Result) {
	var out strings.Builder
	obfuscator := obfuscation.New(opts.Secrets)
	collect := func(line string) {
		out.WriteString(obfuscator.Obfuscate(line))
		out.WriteString("\n")
	}

	res := r.runner.Run(ctx, command.Spec{
		Binary:         r.binary,
		Args:           opts.Args,
		Env:            opts.Env,
		Dir:            opts.WorkDir,
		Timeout:        r.timeout,
		GracePeriod:    time.Duration(opts.GracePeriod) * time.Second,
		ShouldBeKilled: opts.ShouldBeKilled,
		OnStdout:       collect,
		OnStderr:       collect,
	})
	return out.String(), res
}

// HasForbiddenDestructiveChanges scans planText for any destructiveMarker
// phrase whose resource prefix matches one of protectedResources (§4.5,
// S3). Matching is done line-by-line on raw plan text.
func HasForbiddenDestructiveChanges(planText string, protectedResources []string) (bool, string) {
	for _, line := range strings.Split(planText, "\n") {
		for _, marker := range destructiveMarkers {
			if !strings.Contains(line, marker) {
				continue
			}
			for _, resource := range protectedResources {
				if strings.Contains(line, resource) {
					return true, resource
				}
			}
		}
	}
	return false, ""
}

// ValidateNoDestructiveChanges returns a HasForbiddenDestructiveChanges
// EngineError if planText destroys/replaces a protected resource; apply
// must never run when this returns a non-nil error (invariant §8.1.5).
func ValidateNoDestructiveChanges(details events.EventDetails, planText string, protectedResources []string) error {
	if found, resource := HasForbiddenDestructiveChanges(planText, protectedResources); found {
		return engineerror.HasForbiddenDestructiveChanges(details, resource)
	}
	return nil
}

// outputEntry mirrors terraform's `output -json` per-key envelope
// `{ <key>: { value: <T> } }` (§6.1).
type outputEntry struct {
	Value json.RawMessage `json:"value"`
}

// DecodeOutputs decodes terraform output JSON and unmarshals each key's
// value into T (§ SUPPLEMENTED FEATURES point 2).
func DecodeOutputs[T any](raw []byte) (map[string]T, error) {
	var entries map[string]outputEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding terraform outputs: %w", err)
	}

	out := make(map[string]T, len(entries))
	for key, entry := range entries {
		var value T
		if err := json.Unmarshal(entry.Value, &value); err != nil {
			return nil, fmt.Errorf("decoding terraform output %q: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}
