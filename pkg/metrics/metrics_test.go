package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/deployforge/engine/pkg/ids"
)

func newTestRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry(), logrus.New())
}

func TestDroppedHandleRecordsNotSet(t *testing.T) {
	r := newTestRegistry()
	svc := ids.ServiceID(ids.New())

	h, err := r.Start(svc, StepDeployment)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.Close() // simulate scope exit without an explicit terminal call

	count := testutilCounterValue(t, r, StepDeployment, StatusNotSet)
	if count != 1 {
		t.Fatalf("expected exactly 1 NotSet record, got %v", count)
	}
}

func TestExplicitSuccessDoesNotRecordNotSet(t *testing.T) {
	r := newTestRegistry()
	svc := ids.ServiceID(ids.New())

	h, err := r.Start(svc, StepDeployment)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.Success()
	h.Close() // no-op: already finalized

	if got := testutilCounterValue(t, r, StepDeployment, StatusNotSet); got != 0 {
		t.Fatalf("expected 0 NotSet records after explicit Success, got %v", got)
	}
	if got := testutilCounterValue(t, r, StepDeployment, StatusSuccess); got != 1 {
		t.Fatalf("expected 1 Success record, got %v", got)
	}
}

func TestDuplicateActiveStepRejected(t *testing.T) {
	r := newTestRegistry()
	svc := ids.ServiceID(ids.New())

	h1, err := r.Start(svc, StepBuild)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h1.Close()

	if _, err := r.Start(svc, StepBuild); err == nil {
		t.Fatal("expected an error starting a second active step for the same (service, step) pair")
	}

	h1.Success()

	// Once the first handle is finalized, the pair is free again.
	h2, err := r.Start(svc, StepBuild)
	if err != nil {
		t.Fatalf("Start after finalize: %v", err)
	}
	defer h2.Close()
}

func testutilCounterValue(t *testing.T, r *Registry, step StepName, status Status) float64 {
	t.Helper()
	c, err := r.total.GetMetricWithLabelValues(string(step), string(status))
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}
