package events

import (
	"testing"

	"github.com/deployforge/engine/pkg/ids"
)

func sampleDetails() EventDetails {
	return NewEventDetails(
		ProviderAWS,
		ids.OrganizationID(ids.New()),
		ids.ClusterID(ids.New()),
		ids.NewExecutionID(),
		"eu-west-3",
		InfraStage(InfraCreate),
		Transmitter{Kind: TransmitterCloudProvider},
	)
}

func TestEventDetailsValid(t *testing.T) {
	d := sampleDetails()
	if !d.Valid() {
		t.Fatalf("expected fully populated EventDetails to be valid: %+v", d)
	}
}

func TestEventDetailsInvalidWhenMissingExecutionID(t *testing.T) {
	d := sampleDetails()
	d.ExecutionID = ""
	if d.Valid() {
		t.Fatal("expected EventDetails without execution id to be invalid")
	}
}

func TestEventDetailsInvalidWhenZeroClusterID(t *testing.T) {
	d := sampleDetails()
	d.ClusterID = ids.ClusterID{}
	if d.Valid() {
		t.Fatal("expected EventDetails without cluster id to be invalid")
	}
}

func TestRecordingEmitterCapturesEvents(t *testing.T) {
	rec := &RecordingEmitter{}
	d := sampleDetails()
	rec.Emit(LevelInfo, d, NewMessage("raw xxx-secret", "raw xxx"))

	if len(rec.Events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(rec.Events))
	}
	if rec.Events[0].Message.Safe != "raw xxx" {
		t.Fatalf("unexpected safe message: %q", rec.Events[0].Message.Safe)
	}
}

func TestDatabaseTransmitterString(t *testing.T) {
	tr := Transmitter{
		Kind:         TransmitterDatabase,
		DatabaseID:   ids.ServiceID(ids.New()),
		DatabaseType: "PostgreSQL",
		DatabaseName: "billing",
	}
	s := tr.String()
	if s == "" {
		t.Fatal("expected non-empty transmitter string")
	}
}
