package chartvalues

import (
	"strings"
	"testing"

	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/ids"
)

const staticValues = `
replicaCount: 1
resources:
  requests:
    cpu: 100m
`

func sampleDetails() events.EventDetails {
	return events.NewEventDetails(
		events.ProviderAWS,
		ids.OrganizationID(ids.MustParse("00000000-0000-0000-0000-000000000001")),
		ids.ClusterID(ids.MustParse("00000000-0000-0000-0000-000000000002")),
		ids.NewExecutionID(),
		"eu-west-3",
		events.InfraStage(events.InfraCreate),
		events.Transmitter{Kind: events.TransmitterEngine},
	)
}

func TestValidateNoHiddenKnobsAcceptsKnownKey(t *testing.T) {
	err := ValidateNoHiddenKnobs(sampleDetails(), []byte(staticValues), []Override{
		{Key: "resources.requests.cpu", Value: "250m"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNoHiddenKnobsRejectsHiddenKey(t *testing.T) {
	err := ValidateNoHiddenKnobs(sampleDetails(), []byte(staticValues), []Override{
		{Key: "resources.requests.memory", Value: "256Mi"},
	})
	if err == nil {
		t.Fatal("expected error for hidden knob")
	}
	if _, ok := err.(*MissingStaticKeyError); !ok {
		t.Fatalf("expected *MissingStaticKeyError, got %T", err)
	}
}

func TestRenderAppliesOverrides(t *testing.T) {
	out, err := Render([]byte(staticValues), []Override{{Key: "replicaCount", Value: "3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "replicaCount: \"3\"") && !strings.Contains(string(out), "replicaCount: 3") {
		t.Fatalf("expected rendered replicaCount override, got:\n%s", out)
	}
}
