// Package manifest loads the operator-facing deployment manifest file the
// deployforge CLI reads for every subcommand: which cluster, which cloud,
// and which services to converge on it. It mirrors the teacher's config
// package in spirit (one small file parsed once at process startup) but
// is expressed as a YAML document rather than environment variables,
// since a cluster/environment description has too much structure for env
// vars alone.
package manifest

import (
	"fmt"
	"os"

	syaml "sigs.k8s.io/yaml"

	"github.com/deployforge/engine/pkg/cluster"
	"github.com/deployforge/engine/pkg/clusterlifecycle"
	"github.com/deployforge/engine/pkg/deploypipeline"
	"github.com/deployforge/engine/pkg/environment"
	"github.com/deployforge/engine/pkg/ids"
)

// Manifest is the full operator input for one cluster/environment pair.
type Manifest struct {
	OrganizationID string `json:"organizationId"`
	ClusterID      string `json:"clusterId"`
	ClusterName    string `json:"clusterName"`

	Provider         string `json:"provider"`
	Region           string `json:"region"`
	K8sVersion       string `json:"k8sVersion"`
	TargetK8sVersion string `json:"targetK8sVersion,omitempty"`

	// NodeManager selects the node group strategy (cluster.NodeManagerMode);
	// "karpenter" layers stable-nodepool pinning onto every service's
	// chart overrides (§4.5 "Karpenter alternative"). Empty means static
	// node groups.
	NodeManager string `json:"nodeManager,omitempty"`

	UserProvidedKubeconfig string `json:"userProvidedKubeconfig,omitempty"`

	TerraformWorkDir string            `json:"terraformWorkDir"`
	TerraformVars    map[string]string `json:"terraformVars,omitempty"`

	Namespace string    `json:"namespace"`
	Services  []Service `json:"services"`
}

// Service is the reduced, file-friendly view of one deployable service;
// ToSpecs expands it into a deploypipeline.Spec.
type Service struct {
	Name            string `json:"name"`
	ChartPath       string `json:"chartPath"`
	ValuesYAML      string `json:"valuesYaml"`
	HelmTimeoutSecs int    `json:"helmTimeoutSeconds"`

	HasGitSource    bool   `json:"hasGitSource,omitempty"`
	GitRepository   string `json:"gitRepository,omitempty"`
	CommitID        string `json:"commitId,omitempty"`
	DockerfilePath  string `json:"dockerfilePath,omitempty"`
	BuildContextDir string `json:"buildContextDir,omitempty"`
	TargetImage     string `json:"targetImage,omitempty"`
}

// Load reads and parses a manifest file. YAML and JSON are both accepted,
// matching pkg/chartvalues' use of sigs.k8s.io/yaml elsewhere in the
// module.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := syaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) OrgID() (ids.OrganizationID, error) {
	id, err := ids.Parse(m.OrganizationID)
	if err != nil {
		return ids.OrganizationID{}, fmt.Errorf("organizationId: %w", err)
	}
	return ids.OrganizationID(id), nil
}

func (m *Manifest) ClusterIDParsed() (ids.ClusterID, error) {
	id, err := ids.Parse(m.ClusterID)
	if err != nil {
		return ids.ClusterID{}, fmt.Errorf("clusterId: %w", err)
	}
	return ids.ClusterID(id), nil
}

// CloudKind maps the manifest's free-text provider field onto the closed
// CloudProviderKind enum.
func (m *Manifest) CloudKind() (cluster.CloudProviderKind, error) {
	switch m.Provider {
	case "aws":
		return cluster.CloudAWS, nil
	case "azure":
		return cluster.CloudAzure, nil
	case "gcp":
		return cluster.CloudGCP, nil
	case "scaleway":
		return cluster.CloudScaleway, nil
	case "onpremise":
		return cluster.CloudOnPremise, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want aws, azure, gcp, scaleway or onpremise)", m.Provider)
	}
}

// ToCluster builds the cluster.Cluster description Bootstrap/Pause/
// Upgrade/Delete operate on. Node groups and VPC mode are left at their
// zero values and advanced settings at cluster.DefaultAdvancedSettings();
// a manifest only needs to describe enough
// to exercise a Transaction end to end, full cluster topology authoring
// is left to a higher-level UI out of scope here (§1).
func (m *Manifest) ToCluster() (cluster.Cluster, error) {
	kind, err := m.CloudKind()
	if err != nil {
		return cluster.Cluster{}, err
	}
	nodeManager := cluster.NodeManagerStaticGroups
	if m.NodeManager == "karpenter" {
		nodeManager = cluster.NodeManagerKarpenter
	}
	return cluster.Cluster{
		Provider:               kind,
		Regions:                []string{m.Region},
		K8sVersion:             m.K8sVersion,
		Advanced:               cluster.DefaultAdvancedSettings(),
		EngineLoc:              cluster.EngineLocationQoverySide,
		UserProvidedKubeconfig: m.UserProvidedKubeconfig,
		NodeManager:            nodeManager,
	}, nil
}

func (m *Manifest) TerraformInputs() clusterlifecycle.TerraformInputs {
	return clusterlifecycle.TerraformInputs{WorkDir: m.TerraformWorkDir, Vars: m.TerraformVars}
}

// ToEnvironment builds the Environment used for uniqueness/schedule
// validation; every service becomes an Application (jobs, containers,
// databases and routers are authored the same way but are omitted here
// for manifest simplicity).
func (m *Manifest) ToEnvironment() environment.Environment {
	apps := make([]environment.Application, 0, len(m.Services))
	for _, s := range m.Services {
		apps = append(apps, environment.Application{LongID: ids.ServiceID(ids.New()), Name: s.Name})
	}
	return environment.Environment{
		LongID:       ids.ServiceID(ids.New()),
		Namespace:    m.Namespace,
		Applications: apps,
	}
}

// ToSpecs expands every manifest service into a deploypipeline.Spec
// carrying action, ready to queue on a Transaction.
func (m *Manifest) ToSpecs(action deploypipeline.Action) []deploypipeline.Spec {
	specs := make([]deploypipeline.Spec, 0, len(m.Services))
	for _, s := range m.Services {
		specs = append(specs, deploypipeline.Spec{
			Kind:             deploypipeline.KindApplication,
			LongID:           ids.ServiceID(ids.New()),
			Name:             s.Name,
			Action:           action,
			HasGitSource:     s.HasGitSource,
			GitRepository:    s.GitRepository,
			CommitID:         s.CommitID,
			DockerfilePath:   s.DockerfilePath,
			BuildContextDir:  s.BuildContextDir,
			TargetImage:      s.TargetImage,
			ChartPath:        s.ChartPath,
			Namespace:        m.Namespace,
			StaticValuesYAML: []byte(s.ValuesYAML),
			HelmTimeoutSecs:  s.HelmTimeoutSecs,
			UsesKarpenter:    m.NodeManager == "karpenter",
		})
	}
	return specs
}
