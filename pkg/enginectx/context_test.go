package enginectx

import (
	"testing"

	"github.com/deployforge/engine/pkg/ids"
)

func TestNewGeneratesAFreshExecutionID(t *testing.T) {
	org := ids.OrganizationID(ids.New())
	cl := ids.ClusterID(ids.New())

	a := New(org, cl, "/workspace", "/templates")
	b := New(org, cl, "/workspace", "/templates")

	if a.ExecutionID == "" {
		t.Fatal("expected a non-empty execution id")
	}
	if a.ExecutionID == b.ExecutionID {
		t.Fatal("expected distinct execution ids across separate commits")
	}
}

func TestClusterWorkspaceIsScopedByCluster(t *testing.T) {
	cl := ids.ClusterID(ids.New())
	c := New(ids.OrganizationID(ids.New()), cl, "/workspace", "/templates")

	want := "/workspace/terraform/" + cl.String()
	if got := c.ClusterWorkspace(); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestChartWaveWorkspaceIsScopedByClusterAndWave(t *testing.T) {
	cl := ids.ClusterID(ids.New())
	c := New(ids.OrganizationID(ids.New()), cl, "/workspace", "/templates")

	want := "/workspace/charts/" + cl.String() + "/observability"
	if got := c.ChartWaveWorkspace("observability"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
