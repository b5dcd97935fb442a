// Package events implements the structured event envelope (C1): every log
// line, error and metric emitted by the engine carries a complete
// EventDetails so messages are never anonymous.
package events

import (
	"fmt"

	"github.com/deployforge/engine/pkg/ids"
)

// ProviderKind identifies the cloud provider a cluster targets.
type ProviderKind string

const (
	ProviderAWS       ProviderKind = "aws"
	ProviderAzure     ProviderKind = "azure"
	ProviderGCP       ProviderKind = "gcp"
	ProviderScaleway  ProviderKind = "scaleway"
	ProviderOnPremise ProviderKind = "on_premise"
)

// InfrastructureStep names a stage within the cluster lifecycle.
type InfrastructureStep string

const (
	InfraInstantiate        InfrastructureStep = "instantiate"
	InfraCreate             InfrastructureStep = "create"
	InfraPause              InfrastructureStep = "pause"
	InfraUpgrade            InfrastructureStep = "upgrade"
	InfraDelete             InfrastructureStep = "delete"
	InfraValidateAPIInput   InfrastructureStep = "validate_api_input"
	InfraLoadConfiguration  InfrastructureStep = "load_configuration"
)

// EnvironmentStep names a stage within a service/environment deployment.
type EnvironmentStep string

const (
	EnvBuild   EnvironmentStep = "build"
	EnvDeploy  EnvironmentStep = "deploy"
	EnvPause   EnvironmentStep = "pause"
	EnvDelete  EnvironmentStep = "delete"
	EnvRestart EnvironmentStep = "restart"
)

// Stage is the tagged union of Infrastructure{...} and Environment{...}
// stages from §3.5. Exactly one of Infra/Env is set.
type Stage struct {
	Infra InfrastructureStep
	Env   EnvironmentStep
}

func InfraStage(s InfrastructureStep) Stage { return Stage{Infra: s} }
func EnvStage(s EnvironmentStep) Stage       { return Stage{Env: s} }

func (s Stage) String() string {
	if s.Infra != "" {
		return "infrastructure." + string(s.Infra)
	}
	return "environment." + string(s.Env)
}

// TransmitterKind enumerates the subsystems that can emit an event.
type TransmitterKind string

const (
	TransmitterEngine           TransmitterKind = "engine"
	TransmitterBuildPlatform    TransmitterKind = "build_platform"
	TransmitterContainerReg     TransmitterKind = "container_registry"
	TransmitterCloudProvider    TransmitterKind = "cloud_provider"
	TransmitterKubernetes       TransmitterKind = "kubernetes"
	TransmitterDNSProvider      TransmitterKind = "dns_provider"
	TransmitterObjectStorage    TransmitterKind = "object_storage"
	TransmitterEnvironment      TransmitterKind = "environment"
	TransmitterDatabase         TransmitterKind = "database"
	TransmitterApplication      TransmitterKind = "application"
	TransmitterContainer        TransmitterKind = "container"
	TransmitterRouter           TransmitterKind = "router"
	TransmitterJob              TransmitterKind = "job"
	TransmitterHelmChart        TransmitterKind = "helm_chart"
)

// Transmitter names the subsystem a message came from. Database carries
// additional identifying fields, matching the spec's tagged variant
// Database(id, type, name).
type Transmitter struct {
	Kind TransmitterKind

	// Populated only when Kind == TransmitterDatabase.
	DatabaseID   ids.ServiceID
	DatabaseType string
	DatabaseName string

	// Populated for the single-id transmitter kinds (Application, Container,
	// Router, Job, HelmChart).
	ServiceID ids.ServiceID
	Name      string
}

func (t Transmitter) String() string {
	if t.Kind == TransmitterDatabase {
		return fmt.Sprintf("database(%s,%s,%s)", t.DatabaseID, t.DatabaseType, t.DatabaseName)
	}
	if t.ServiceID != (ids.ServiceID{}) {
		return fmt.Sprintf("%s(%s,%s)", t.Kind, t.ServiceID, t.Name)
	}
	return string(t.Kind)
}

// EventDetails is the complete envelope attached to every emitted event.
type EventDetails struct {
	Provider       ProviderKind
	OrganizationID ids.OrganizationID
	ClusterID      ids.ClusterID
	ExecutionID    ids.ExecutionID
	Region         string
	Stage          Stage
	Transmitter    Transmitter
}

// NewEventDetails builds an EventDetails, the sole constructor per C1.
func NewEventDetails(
	provider ProviderKind,
	org ids.OrganizationID,
	cluster ids.ClusterID,
	execution ids.ExecutionID,
	region string,
	stage Stage,
	transmitter Transmitter,
) EventDetails {
	return EventDetails{
		Provider:       provider,
		OrganizationID: org,
		ClusterID:      cluster,
		ExecutionID:    execution,
		Region:         region,
		Stage:          stage,
		Transmitter:    transmitter,
	}
}

// Valid reports whether the envelope satisfies invariant §8.1.1: every
// emitted event has non-empty execution_id, cluster_id, organization_id.
func (d EventDetails) Valid() bool {
	return d.ExecutionID != "" && !ids.Identifier(d.ClusterID).IsZero() && !ids.Identifier(d.OrganizationID).IsZero()
}

// Level is the severity of an emitted log event.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Message holds both the raw form (may contain secrets) and the safe form
// (secrets replaced with "xxx" by the obfuscation service) of an emitted
// log line.
type Message struct {
	Raw  string
	Safe string
}

func NewMessage(raw, safe string) Message {
	return Message{Raw: raw, Safe: safe}
}
