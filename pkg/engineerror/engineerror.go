// Package engineerror implements the EngineError taxonomy (§3.5, §7):
// every user-visible failure carries a stable tag, a one-line hint, an
// optional documentation link, and the safe (obfuscated) underlying
// output — the raw output is preserved separately for an audit channel
// only. Modeled on infrastructure/errors' tagged ServiceError from the
// retrieval pack, adapted to the EventDetails envelope instead of an HTTP
// status code.
package engineerror

import (
	"fmt"

	"github.com/deployforge/engine/pkg/events"
)

// Tag is a stable error identifier surfaced to users and to dashboards;
// it must never change meaning once shipped.
type Tag string

const (
	TagUnsupportedInstanceType                  Tag = "UnsupportedInstanceType"
	TagCannotPauseClusterTasksAreRunning         Tag = "CannotPauseClusterTasksAreRunning"
	TagAwsWrongCloudwatchRetentionConfiguration Tag = "AwsWrongCloudwatchRetentionConfiguration"
	TagTerraformError                           Tag = "TerraformError"
	TagHasForbiddenDestructiveChanges           Tag = "HasForbiddenDestructiveChanges"
	TagCancelled                                Tag = "Cancelled"
	TagOutputVariableValidationError            Tag = "OutputVariableValidationError"
	TagInvalidPvcShrinkRequested                Tag = "InvalidPvcShrinkRequested"
	TagConcurrentClusterActionRejected          Tag = "ConcurrentClusterActionRejected"
	TagClusterStateLossRefused                  Tag = "ClusterStateLossRefused"
	TagInvalidCIDR                               Tag = "InvalidCIDR"
	TagInvalidIdentifier                         Tag = "InvalidIdentifier"
	TagInternal                                  Tag = "Internal"
)

// EngineError is the structured failure type that crosses every
// component boundary; raw strings never do (§4.1 Propagation).
type EngineError struct {
	details events.EventDetails
	tag     Tag
	hint    string
	link    string

	// underlying is the original error (may contain secrets); safeOutput
	// is its obfuscated counterpart, already safe to log or display.
	underlying error
	safeOutput string

	// Details carries tag-specific structured context, e.g. {"resource":
	// "aws_eks_cluster"} for HasForbiddenDestructiveChanges.
	Details map[string]string
}

// New builds an EngineError. hint is the one-line human-visible message;
// any underlying error and its obfuscated form are attached afterwards
// with WithUnderlying.
func New(details events.EventDetails, tag Tag, hint string) *EngineError {
	return &EngineError{details: details, tag: tag, hint: hint}
}

// WithUnderlying attaches the raw underlying error plus its pre-obfuscated
// safe form (the caller is responsible for obfuscating, since only it
// knows which secrets apply to this stream).
func (e *EngineError) WithUnderlying(raw error, safeOutput string) *EngineError {
	e.underlying = raw
	e.safeOutput = safeOutput
	return e
}

func (e *EngineError) WithLink(link string) *EngineError {
	e.link = link
	return e
}

func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *EngineError) Tag() Tag                        { return e.tag }
func (e *EngineError) Hint() string                     { return e.hint }
func (e *EngineError) Link() string                     { return e.link }
func (e *EngineError) EventDetails() events.EventDetails { return e.details }

// Error implements the error interface. It intentionally returns the safe
// form: EngineError values routinely end up in logs via %v/%s, and must
// never leak raw underlying output through that path.
func (e *EngineError) Error() string {
	return e.SafeError()
}

// SafeError returns the obfuscated, display-safe representation.
func (e *EngineError) SafeError() string {
	if e.safeOutput != "" {
		return fmt.Sprintf("[%s] %s: %s", e.tag, e.hint, e.safeOutput)
	}
	return fmt.Sprintf("[%s] %s", e.tag, e.hint)
}

// RawError returns the raw underlying error for the audit channel only;
// callers must never forward its result to a user-facing surface.
func (e *EngineError) RawError() error {
	return e.underlying
}

func (e *EngineError) Unwrap() error {
	return e.underlying
}

// --- Tag-specific constructors -------------------------------------------------

func UnsupportedInstanceType(details events.EventDetails, instanceType string) *EngineError {
	return New(details, TagUnsupportedInstanceType,
		fmt.Sprintf("instance type %q is not supported on this cloud provider", instanceType)).
		WithDetail("instance_type", instanceType)
}

func CannotPauseClusterTasksAreRunning(details events.EventDetails) *EngineError {
	return New(details, TagCannotPauseClusterTasksAreRunning,
		"cannot pause cluster: a deployment task is currently running")
}

func AwsWrongCloudwatchRetentionConfiguration(details events.EventDetails, days int) *EngineError {
	return New(details, TagAwsWrongCloudwatchRetentionConfiguration,
		fmt.Sprintf("cloudwatch retention of %d days is not one of the allowed values", days)).
		WithDetail("retention_days", fmt.Sprintf("%d", days))
}

func TerraformError(details events.EventDetails, kind string, rawOutput, safeOutput string) *EngineError {
	return New(details, TagTerraformError, fmt.Sprintf("terraform %s failed", kind)).
		WithDetail("kind", kind).
		WithUnderlying(fmt.Errorf("%s", rawOutput), safeOutput)
}

func HasForbiddenDestructiveChanges(details events.EventDetails, resource string) *EngineError {
	return New(details, TagHasForbiddenDestructiveChanges,
		fmt.Sprintf("terraform plan would destroy or replace protected resource %q", resource)).
		WithDetail("resource", resource)
}

func Cancelled(details events.EventDetails, reason string) *EngineError {
	return New(details, TagCancelled, reason)
}

func OutputVariableValidationError(details events.EventDetails, key string) *EngineError {
	return New(details, TagOutputVariableValidationError,
		fmt.Sprintf("output variable name %q is not a valid identifier", key)).
		WithDetail("key", key)
}

func InvalidPvcShrinkRequested(details events.EventDetails, pvcName string, currentGiB, desiredGiB int) *EngineError {
	return New(details, TagInvalidPvcShrinkRequested,
		fmt.Sprintf("pvc %q would shrink from %dGi to %dGi, which is not allowed", pvcName, currentGiB, desiredGiB)).
		WithDetail("pvc", pvcName)
}

func ConcurrentClusterActionRejected(details events.EventDetails) *EngineError {
	return New(details, TagConcurrentClusterActionRejected,
		"another action is already running for this cluster")
}

func ClusterStateLossRefused(details events.EventDetails) *EngineError {
	return New(details, TagClusterStateLossRefused,
		"refusing to delete: non-empty terraform state would be lost without --force")
}

// Internal wraps an error with no dedicated tag, used by the Transaction
// when an action returns a plain error instead of an already-tagged
// EngineError (§4.1 Propagation: errors never cross the transaction
// boundary as raw strings).
func Internal(details events.EventDetails, err error) *EngineError {
	return New(details, TagInternal, err.Error()).WithUnderlying(err, err.Error())
}
