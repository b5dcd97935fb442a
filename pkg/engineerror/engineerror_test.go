package engineerror

import (
	"errors"
	"strings"
	"testing"

	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/ids"
)

func sampleDetails() events.EventDetails {
	return events.NewEventDetails(
		events.ProviderAWS,
		ids.OrganizationID(ids.New()),
		ids.ClusterID(ids.New()),
		ids.NewExecutionID(),
		"eu-west-3",
		events.InfraStage(events.InfraUpgrade),
		events.Transmitter{Kind: events.TransmitterCloudProvider},
	)
}

func TestSafeErrorHidesRawOutput(t *testing.T) {
	details := sampleDetails()
	raw := "terraform plan failed with AWS_SECRET_ACCESS_KEY=abcd1234"
	safe := "terraform plan failed with AWS_SECRET_ACCESS_KEY=xxx"

	err := TerraformError(details, "plan", raw, safe)

	if err.Error() != err.SafeError() {
		t.Fatalf("Error() must return the safe form")
	}
	got := err.SafeError()
	for _, sub := range []string{"TerraformError", "terraform plan failed", safe} {
		if !strings.Contains(got, sub) {
			t.Fatalf("expected safe error %q to contain %q", got, sub)
		}
	}
	if err.RawError() == nil || err.RawError().Error() != raw {
		t.Fatalf("RawError() must still expose the original raw output for the audit channel")
	}
}

func TestUnwrapSupportsErrorsIs(t *testing.T) {
	details := sampleDetails()
	sentinel := errors.New("boom")
	err := New(details, TagCancelled, "cancelled").WithUnderlying(sentinel, "cancelled")

	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to see through EngineError.Unwrap")
	}
}

func TestHasForbiddenDestructiveChangesCarriesResource(t *testing.T) {
	err := HasForbiddenDestructiveChanges(sampleDetails(), "aws_eks_cluster")
	if err.Tag() != TagHasForbiddenDestructiveChanges {
		t.Fatalf("unexpected tag: %v", err.Tag())
	}
	if err.Details["resource"] != "aws_eks_cluster" {
		t.Fatalf("expected resource detail to be recorded, got %+v", err.Details)
	}
}
