package events

import (
	"github.com/sirupsen/logrus"
)

// Emitter enqueues structured log events and terminal errors. It is the
// only way components speak to the outside world: no component writes
// directly to stdout/stderr or calls logrus itself.
type Emitter interface {
	Emit(level Level, details EventDetails, message Message)
	EmitError(err ErrorEvent)
}

// ErrorEvent is the minimal surface events needs from an engine error to
// emit it; pkg/engineerror.EngineError satisfies this interface.
type ErrorEvent interface {
	EventDetails() EventDetails
	Error() string
	SafeError() string
}

// LogrusEmitter is the production Emitter, modeled on the structured
// wrapper in infrastructure/logging of the retrieval pack: every entry is
// built through WithFields so no message is ever anonymous.
type LogrusEmitter struct {
	logger *logrus.Logger
}

// NewLogrusEmitter builds an Emitter around an existing *logrus.Logger so
// callers keep control of output/format/level configuration.
func NewLogrusEmitter(logger *logrus.Logger) *LogrusEmitter {
	return &LogrusEmitter{logger: logger}
}

func fieldsFor(details EventDetails) logrus.Fields {
	f := logrus.Fields{
		"provider":        string(details.Provider),
		"organization_id": details.OrganizationID.String(),
		"cluster_id":      details.ClusterID.String(),
		"execution_id":    string(details.ExecutionID),
		"region":          details.Region,
		"stage":           details.Stage.String(),
		"transmitter":     details.Transmitter.String(),
	}
	return f
}

func (e *LogrusEmitter) Emit(level Level, details EventDetails, message Message) {
	entry := e.logger.WithFields(fieldsFor(details))
	switch level {
	case LevelDebug:
		entry.Debug(message.Safe)
	case LevelInfo:
		entry.Info(message.Safe)
	case LevelWarning:
		entry.Warn(message.Safe)
	case LevelError:
		entry.Error(message.Safe)
	case LevelCritical:
		// Not entry.Fatal: that calls os.Exit(1) and would kill the engine
		// process mid-Transaction, bypassing Commit's rollback path. Level
		// is a severity classification (§3.1), not a termination signal.
		entry.Error(message.Safe)
	default:
		entry.Info(message.Safe)
	}
}

func (e *LogrusEmitter) EmitError(err ErrorEvent) {
	e.logger.WithFields(fieldsFor(err.EventDetails())).Error(err.SafeError())
}

// NopEmitter discards every event; used by tests and by components that
// receive no Emitter (always the exception, never the default).
type NopEmitter struct{}

func (NopEmitter) Emit(Level, EventDetails, Message) {}
func (NopEmitter) EmitError(ErrorEvent)               {}

// RecordingEmitter captures every emitted event and error in memory; used
// by tests that need to assert on what was emitted.
type RecordingEmitter struct {
	Events []RecordedEvent
	Errors []ErrorEvent
}

type RecordedEvent struct {
	Level   Level
	Details EventDetails
	Message Message
}

func (r *RecordingEmitter) Emit(level Level, details EventDetails, message Message) {
	r.Events = append(r.Events, RecordedEvent{Level: level, Details: details, Message: message})
}

func (r *RecordingEmitter) EmitError(err ErrorEvent) {
	r.Errors = append(r.Errors, err)
}
