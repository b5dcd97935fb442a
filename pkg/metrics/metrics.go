// Package metrics implements the per-service StepName metrics registry
// (§4.6 point 4, §3.6 invariant 3, §8.1 invariant 3): at most one active
// StepRecord exists per (service_id, step_name) pair, and a StepRecordHandle
// that is released without an explicit terminal status records exactly one
// NotSet entry and logs a warning — mirroring the Rust "drop without stop"
// behaviour with an explicit, deferrable Close().
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/deployforge/engine/pkg/ids"
)

// StepName enumerates the named units of work a service pipeline step
// executes (§4.4).
type StepName string

const (
	StepProvisionBuilder         StepName = "ProvisionBuilder"
	StepRegistryCreateRepository StepName = "RegistryCreateRepository"
	StepGitClone                 StepName = "GitClone"
	StepBuildQueueing             StepName = "BuildQueueing"
	StepBuild                     StepName = "Build"
	StepMirrorImage                StepName = "MirrorImage"
	StepDeploymentQueueing          StepName = "DeploymentQueueing"
	StepDeployment                   StepName = "Deployment"
)

// Status is the terminal state a StepRecordHandle is finalized with.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusCancel  Status = "cancel"
	StatusSkip    Status = "skip"
	// StatusNotSet is recorded when a handle is closed/dropped without an
	// explicit terminal status having been set.
	StatusNotSet Status = "not_set"
)

// Registry tracks active steps per (service_id, step_name) and exposes
// Prometheus counters/histograms keyed by (step_name, status).
type Registry struct {
	mu     sync.Mutex
	active map[activeKey]struct{}

	logger *logrus.Logger

	durations *prometheus.HistogramVec
	total     *prometheus.CounterVec
}

type activeKey struct {
	serviceID ids.ServiceID
	step      StepName
}

// NewRegistry builds a Registry and registers its collectors against reg
// (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests).
func NewRegistry(reg prometheus.Registerer, logger *logrus.Logger) *Registry {
	r := &Registry{
		active: make(map[activeKey]struct{}),
		logger: logger,
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deployforge",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of a service deployment pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step_name", "status"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deployforge",
			Subsystem: "pipeline",
			Name:      "step_total",
			Help:      "Number of service deployment pipeline steps by terminal status.",
		}, []string{"step_name", "status"}),
	}
	if reg != nil {
		reg.MustRegister(r.durations, r.total)
	}
	return r
}

// Start begins tracking a step for (serviceID, step). It returns an error
// if a StepRecord is already active for that pair, enforcing §3.6
// invariant 3.
func (r *Registry) Start(serviceID ids.ServiceID, step StepName) (*StepRecordHandle, error) {
	key := activeKey{serviceID: serviceID, step: step}

	r.mu.Lock()
	if _, exists := r.active[key]; exists {
		r.mu.Unlock()
		return nil, &DuplicateActiveStepError{ServiceID: serviceID, Step: step}
	}
	r.active[key] = struct{}{}
	r.mu.Unlock()

	return &StepRecordHandle{
		registry:  r,
		key:       key,
		startedAt: time.Now(),
	}, nil
}

func (r *Registry) finish(h *StepRecordHandle, status Status) {
	r.mu.Lock()
	delete(r.active, h.key)
	r.mu.Unlock()

	elapsed := time.Since(h.startedAt).Seconds()
	r.durations.WithLabelValues(string(h.key.step), string(status)).Observe(elapsed)
	r.total.WithLabelValues(string(h.key.step), string(status)).Inc()

	if status == StatusNotSet && r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"service_id": h.key.serviceID.String(),
			"step_name":  string(h.key.step),
		}).Warn("step record handle dropped without an explicit terminal status")
	}
}

// DuplicateActiveStepError is returned when Start is called for a
// (service_id, step_name) pair that already has an active StepRecord.
type DuplicateActiveStepError struct {
	ServiceID ids.ServiceID
	Step      StepName
}

func (e *DuplicateActiveStepError) Error() string {
	return "a step record is already active for service " + e.ServiceID.String() + " step " + string(e.Step)
}

// StepRecordHandle tracks one in-flight step. Exactly one of
// Success/Error/Cancel/Skip/Close finalizes it; calling Close without a
// prior terminal call records StatusNotSet (§8.1 invariant 3). Callers
// should immediately `defer handle.Close()` after Start so any early
// return still finalizes the record.
type StepRecordHandle struct {
	registry  *Registry
	key       activeKey
	startedAt time.Time

	mu       sync.Mutex
	finished bool
}

func (h *StepRecordHandle) terminal(status Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.registry.finish(h, status)
}

func (h *StepRecordHandle) Success() { h.terminal(StatusSuccess) }
func (h *StepRecordHandle) Error()   { h.terminal(StatusError) }
func (h *StepRecordHandle) Cancel()  { h.terminal(StatusCancel) }
func (h *StepRecordHandle) Skip()    { h.terminal(StatusSkip) }

// Close finalizes the handle as StatusNotSet if no terminal status has
// already been recorded; it is always safe (and expected) to defer.
func (h *StepRecordHandle) Close() { h.terminal(StatusNotSet) }
