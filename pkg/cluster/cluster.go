// Package cluster defines the Cluster Kubernetes Record (§3.4): the
// declarative target a cluster lifecycle state machine bootstraps,
// upgrades, pauses, resumes, and deletes.
package cluster

// CloudProviderKind is the closed tagged variant of supported clouds
// (§9 "Dynamic dispatch over cloud providers").
type CloudProviderKind string

const (
	CloudAWS       CloudProviderKind = "AWS"
	CloudAzure     CloudProviderKind = "Azure"
	CloudGCP       CloudProviderKind = "GCP"
	CloudScaleway  CloudProviderKind = "Scaleway"
	CloudOnPremise CloudProviderKind = "OnPremise"
)

// VPCMode selects whether the orchestrator creates the VPC or uses one
// the caller already provisioned.
type VPCMode string

const (
	VPCAutomatic    VPCMode = "Automatic"
	VPCUserProvided VPCMode = "UserProvided"
)

// EngineLocation selects where the deployment engine itself runs.
type EngineLocation string

const (
	EngineLocationClientSide  EngineLocation = "ClientSide"
	EngineLocationQoverySide  EngineLocation = "QoverySide"
)

// NodeArch is the CPU architecture of a node group's instances.
type NodeArch string

const (
	ArchAMD64 NodeArch = "amd64"
	ArchARM64 NodeArch = "arm64"
)

// NodeGroup is one statically-sized pool of worker nodes.
type NodeGroup struct {
	Name         string
	MinNodes     int
	MaxNodes     int
	InstanceType string
	DiskSizeGiB  int
	Arch         NodeArch
}

// NodeManagerMode selects between static NodeGroups and Karpenter-driven
// on-demand provisioning (§4.5 "Karpenter alternative", AWS/EKS only).
type NodeManagerMode string

const (
	NodeManagerStaticGroups NodeManagerMode = "StaticGroups"
	NodeManagerKarpenter    NodeManagerMode = "Karpenter"
)

// KarpenterParameters replaces NodeGroups when NodeManagerMode is
// NodeManagerKarpenter.
type KarpenterParameters struct {
	DefaultInstanceTypes []string
	SpotEnabled          bool
	DiskSizeGiB          int
}

// allowedCloudwatchRetentionDays is the closed set accepted for
// AdvancedSettings.AWSCloudwatchEKSLogsRetentionDays (§6.4).
var allowedCloudwatchRetentionDays = map[int]bool{
	0: true, 1: true, 3: true, 5: true, 7: true, 14: true, 30: true, 60: true,
	90: true, 120: true, 150: true, 180: true, 365: true, 400: true, 545: true,
	731: true, 1827: true, 2192: true, 2557: true, 2922: true, 3288: true, 3653: true,
}

// ValidCloudwatchRetentionDays reports whether days is one of the values
// AWS CloudWatch Logs accepts as a retention period.
func ValidCloudwatchRetentionDays(days int) bool {
	return allowedCloudwatchRetentionDays[days]
}

// AdvancedSettings are the persisted tunables listed in §6.4; the zero
// value is NOT valid configuration — use DefaultAdvancedSettings.
type AdvancedSettings struct {
	LoadBalancerSize                  string
	RegistryImageRetentionSeconds     int64
	PlecoResourcesTTL                 int64
	LokiLogRetentionInWeeks           int
	AWSCloudwatchEKSLogsRetentionDays int
	DatabaseDenyPublicAccess          bool
	DatabaseAllowedCIDRs              []string
}

// DefaultAdvancedSettings returns the defaults named in §6.4.
func DefaultAdvancedSettings() AdvancedSettings {
	return AdvancedSettings{
		LoadBalancerSize:                  "lb-s",
		RegistryImageRetentionSeconds:     31536000,
		PlecoResourcesTTL:                 -1,
		LokiLogRetentionInWeeks:           12,
		AWSCloudwatchEKSLogsRetentionDays: 90,
		DatabaseDenyPublicAccess:          false,
		DatabaseAllowedCIDRs:              []string{"0.0.0.0/0"},
	}
}

// Cluster is the declarative target of the cluster lifecycle state
// machine.
type Cluster struct {
	Provider     CloudProviderKind
	Regions      []string
	Zones        []string
	K8sVersion   string
	VPCMode      VPCMode
	NodeManager  NodeManagerMode
	NodeGroups   []NodeGroup
	Karpenter    *KarpenterParameters
	Advanced     AdvancedSettings
	EngineLoc    EngineLocation
	// UserProvidedKubeconfig, if non-empty, bypasses cloud-side kubeconfig
	// retrieval after Bootstrap.
	UserProvidedKubeconfig string
}

// addonPins are the default addon versions pinned per Kubernetes minor
// version (§4.5 "Addon version pinning").
type addonPins struct {
	VPCCNI     string
	KubeProxy  string
	CoreDNS    string
	EBSCSI     string
}

// defaultAddonVersions is the internal table of pinned defaults, indexed
// by "<major>.<minor>". Only EKS-relevant addons are pinned here; other
// providers manage their own addon lifecycle via the managed control
// plane.
var defaultAddonVersions = map[string]addonPins{
	"1.23": {VPCCNI: "v1.12.6-eksbuild.2", KubeProxy: "v1.23.17-eksbuild.8", CoreDNS: "v1.8.7-eksbuild.8", EBSCSI: "v1.25.0-eksbuild.1"},
	"1.24": {VPCCNI: "v1.15.4-eksbuild.1", KubeProxy: "v1.24.17-eksbuild.8", CoreDNS: "v1.9.3-eksbuild.9", EBSCSI: "v1.27.0-eksbuild.1"},
	"1.25": {VPCCNI: "v1.16.4-eksbuild.2", KubeProxy: "v1.25.16-eksbuild.8", CoreDNS: "v1.9.3-eksbuild.9", EBSCSI: "v1.28.0-eksbuild.1"},
	"1.26": {VPCCNI: "v1.17.1-eksbuild.1", KubeProxy: "v1.26.15-eksbuild.8", CoreDNS: "v1.9.3-eksbuild.10", EBSCSI: "v1.29.1-eksbuild.1"},
	"1.27": {VPCCNI: "v1.18.1-eksbuild.1", KubeProxy: "v1.27.16-eksbuild.8", CoreDNS: "v1.10.1-eksbuild.11", EBSCSI: "v1.30.0-eksbuild.1"},
	"1.28": {VPCCNI: "v1.18.1-eksbuild.1", KubeProxy: "v1.28.12-eksbuild.8", CoreDNS: "v1.10.1-eksbuild.11", EBSCSI: "v1.31.0-eksbuild.1"},
	"1.29": {VPCCNI: "v1.18.3-eksbuild.2", KubeProxy: "v1.29.10-eksbuild.8", CoreDNS: "v1.11.1-eksbuild.11", EBSCSI: "v1.32.0-eksbuild.1"},
	"1.30": {VPCCNI: "v1.18.3-eksbuild.2", KubeProxy: "v1.30.6-eksbuild.8", CoreDNS: "v1.11.1-eksbuild.11", EBSCSI: "v1.33.0-eksbuild.1"},
	"1.31": {VPCCNI: "v1.18.5-eksbuild.1", KubeProxy: "v1.31.2-eksbuild.8", CoreDNS: "v1.11.3-eksbuild.11", EBSCSI: "v1.34.0-eksbuild.1"},
	"1.32": {VPCCNI: "v1.19.0-eksbuild.1", KubeProxy: "v1.32.0-eksbuild.2", CoreDNS: "v1.11.3-eksbuild.13", EBSCSI: "v1.35.0-eksbuild.1"},
	"1.33": {VPCCNI: "v1.19.2-eksbuild.1", KubeProxy: "v1.33.0-eksbuild.2", CoreDNS: "v1.11.4-eksbuild.8", EBSCSI: "v1.36.0-eksbuild.1"},
}

// AddonOverrides lets a caller pin a specific addon to a version other
// than the table default.
type AddonOverrides struct {
	VPCCNI    string
	KubeProxy string
	CoreDNS   string
	EBSCSI    string
}

// ResolvedAddonVersions is the final per-addon version selection for one
// Kubernetes version, after applying any caller overrides.
type ResolvedAddonVersions struct {
	VPCCNI    string
	KubeProxy string
	CoreDNS   string
	EBSCSI    string
}

// ResolveAddonVersions selects the pinned defaults for k8sVersion and
// applies any non-empty fields of overrides on top.
func ResolveAddonVersions(k8sVersion string, overrides AddonOverrides) (ResolvedAddonVersions, bool) {
	pins, ok := defaultAddonVersions[k8sVersion]
	if !ok {
		return ResolvedAddonVersions{}, false
	}
	resolved := ResolvedAddonVersions{
		VPCCNI:    pins.VPCCNI,
		KubeProxy: pins.KubeProxy,
		CoreDNS:   pins.CoreDNS,
		EBSCSI:    pins.EBSCSI,
	}
	if overrides.VPCCNI != "" {
		resolved.VPCCNI = overrides.VPCCNI
	}
	if overrides.KubeProxy != "" {
		resolved.KubeProxy = overrides.KubeProxy
	}
	if overrides.CoreDNS != "" {
		resolved.CoreDNS = overrides.CoreDNS
	}
	if overrides.EBSCSI != "" {
		resolved.EBSCSI = overrides.EBSCSI
	}
	return resolved, true
}

// KarpenterStableNodePoolAffinity are the affinity/toleration keys
// injected into stateful workloads pinned to a stable node pool (§4.5).
const (
	KarpenterStableNodePoolLabel       = "karpenter.sh/nodepool"
	KarpenterStableNodePoolValue       = "stable"
	KarpenterStableTolerationKey       = "nodepool/stable"
	KarpenterStableCapacityTypeLabel   = "karpenter.sh/capacity-type"
	KarpenterStableCapacityTypeValue   = "on-demand"
)
