package terraformrun

import "testing"

func TestHasForbiddenDestructiveChangesMatchesSpecExample(t *testing.T) {
	plan := "# aws_eks_cluster.eks_cluster will be destroyed"
	found, resource := HasForbiddenDestructiveChanges(plan, []string{"aws_eks_cluster"})
	if !found || resource != "aws_eks_cluster" {
		t.Fatalf("expected match on aws_eks_cluster, got found=%v resource=%q", found, resource)
	}
}

func TestHasForbiddenDestructiveChangesEmptyProtectedListIsOK(t *testing.T) {
	plan := "# aws_eks_cluster.eks_cluster will be destroyed"
	found, _ := HasForbiddenDestructiveChanges(plan, nil)
	if found {
		t.Fatal("expected no match with empty protected resource list")
	}
}

func TestHasForbiddenDestructiveChangesMustBeReplaced(t *testing.T) {
	plan := "  # google_container_cluster.primary must be replaced"
	found, resource := HasForbiddenDestructiveChanges(plan, []string{"google_container_cluster"})
	if !found || resource != "google_container_cluster" {
		t.Fatalf("expected match, got found=%v resource=%q", found, resource)
	}
}

func TestDecodeOutputsDecodesStringValues(t *testing.T) {
	raw := []byte(`{"cluster_endpoint": {"value": "https://example"}, "cluster_name": {"value": "prod"}}`)
	outputs, err := DecodeOutputs[string](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["cluster_endpoint"] != "https://example" {
		t.Fatalf("unexpected endpoint: %v", outputs)
	}
}

func TestDecodeOutputsDecodesNumericValues(t *testing.T) {
	raw := []byte(`{"node_count": {"value": 3}}`)
	outputs, err := DecodeOutputs[int](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["node_count"] != 3 {
		t.Fatalf("unexpected node_count: %v", outputs)
	}
}
