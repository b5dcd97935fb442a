// Package kubeconfig builds a live Kubernetes client from the raw
// kubeconfig bytes the cluster lifecycle state machine produces after
// Bootstrap (§4.5), and persists/merges that kubeconfig the way kubectl
// and helm invocations expect to find it on disk — mirrors the teacher's
// generated-kubeconfig merge flow (gke-mcp's cluster tool), generalized
// from a single cloud to any provider's kubeconfig bytes.
package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Persist writes raw kubeconfig bytes to <clusterWorkspace>/kubeconfig.yaml
// and returns the path, so later helm/kubectl invocations can reference
// it via the KUBECONFIG environment variable (§6.1, §6.5).
func Persist(clusterWorkspace string, raw []byte) (string, error) {
	if err := os.MkdirAll(clusterWorkspace, 0o755); err != nil {
		return "", fmt.Errorf("creating cluster workspace: %w", err)
	}
	path := filepath.Join(clusterWorkspace, "kubeconfig.yaml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("writing kubeconfig: %w", err)
	}
	return path, nil
}

// BuildClientset parses raw kubeconfig bytes and constructs a typed
// Kubernetes client, used to build the C3 Observer against a
// just-bootstrapped cluster.
func BuildClientset(raw []byte) (kubernetes.Interface, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("building rest config from kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	return clientset, nil
}

// Merge loads the operator's local kubeconfig (creating an empty one if
// none exists) via the default path options, merges in raw's cluster,
// user and context entries, points the current context at clusterName,
// and writes the result back. This is the same merge-into-local-config
// flow the teacher performs after provisioning a GKE cluster, adapted to
// an arbitrary cloud's kubeconfig bytes.
func Merge(clusterName string, raw []byte) error {
	parsed, err := clientcmd.Load(raw)
	if err != nil {
		return fmt.Errorf("parsing kubeconfig: %w", err)
	}

	pathOptions := clientcmd.NewDefaultPathOptions()
	existing, err := pathOptions.GetStartingConfig()
	if err != nil {
		return fmt.Errorf("loading local kubeconfig: %w", err)
	}

	for name, c := range parsed.Clusters {
		existing.Clusters[name] = c
	}
	for name, a := range parsed.AuthInfos {
		existing.AuthInfos[name] = a
	}
	for name, c := range parsed.Contexts {
		existing.Contexts[name] = c
	}
	existing.CurrentContext = clusterName

	return clientcmd.ModifyConfig(pathOptions, *existing, false)
}
