package joboutput

import (
	"testing"

	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
	"github.com/deployforge/engine/pkg/ids"
)

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

func TestParseMatchesSpecExample(t *testing.T) {
	raw := []byte(`{"foo": {"value": 123, "sensitive": true}, "foo_2": {"value": 123.456}}`)
	out, err := Parse(sampleDetails(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foo, ok := out["foo"]
	if !ok || foo.Value != "123" || !foo.Sensitive || foo.Description != "" {
		t.Fatalf("unexpected foo: %+v", foo)
	}
	foo2, ok := out["foo_2"]
	if !ok || foo2.Value != "123.456" || foo2.Sensitive {
		t.Fatalf("unexpected foo_2: %+v", foo2)
	}
}

func TestParseRejectsInvalidKey(t *testing.T) {
	raw := []byte(`{"---": {"value": 1}}`)
	_, err := Parse(sampleDetails(), raw)
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
	var engineErr *engineerror.EngineError
	if !asEngineError(err, &engineErr) {
		t.Fatalf("expected *engineerror.EngineError, got %T", err)
	}
	if engineErr.Tag() != engineerror.TagOutputVariableValidationError {
		t.Fatalf("unexpected tag: %v", engineErr.Tag())
	}
}

func asEngineError(err error, target **engineerror.EngineError) bool {
	e, ok := err.(*engineerror.EngineError)
	if !ok {
		return false
	}
	*target = e
	return true
}
