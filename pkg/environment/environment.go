// Package environment defines the declarative Environment data model
// (§3.3): the set of services deployed together into one Kubernetes
// namespace.
package environment

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deployforge/engine/pkg/ids"
)

// cronParser accepts the standard five-field crontab expression used by
// Job.Schedule (§3.3 "jobs[].schedule").
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Action is the high-level verb attached to an environment or service.
type Action string

const (
	ActionCreate  Action = "Create"
	ActionPause   Action = "Pause"
	ActionDelete  Action = "Delete"
	ActionRestart Action = "Restart"
	ActionNothing Action = "Nothing"
)

// Port is one exposed container port.
type Port struct {
	Name          string
	InternalPort  int32
	ExternalPort  int32
	IsDefault     bool
	PubliclyExposed bool
}

// Storage is one persistent volume requested by a service.
type Storage struct {
	ID          string
	MountPath   string
	SizeInGiB   int
	StorageType string
}

// Probe is a liveness/readiness HTTP or TCP probe.
type Probe struct {
	Type             string // "http", "tcp", "exec"
	Path             string
	Port             int32
	InitialDelaySecs int32
	PeriodSecs       int32
}

// EnvVar is one environment variable injected into the running service.
type EnvVar struct {
	Key       string
	Value     string
	Sensitive bool
}

// MountedFile is a base64-encoded file materialized as a Kubernetes Secret
// mounted at MountPath (§4.4 "Mounted files").
type MountedFile struct {
	ID              string
	MountPath       string
	FileContentB64  string
}

// Resources is the CPU/RAM request+limit pair.
type Resources struct {
	CPURequestMilli int
	CPULimitMilli   int
	RAMRequestMiB   int
	RAMLimitMiB     int
}

// Scaling is the min/max instance count.
type Scaling struct {
	MinInstances int
	MaxInstances int
}

// Application is a git-sourced service built from a Dockerfile.
type Application struct {
	LongID         ids.ServiceID
	Name           string
	CommitID       string
	GitRepository  string
	DockerfilePath string
	Resources      Resources
	Scaling        Scaling
	Ports          []Port
	Storages       []Storage
	Probes         []Probe
	EnvVars        []EnvVar
	MountedFiles   []MountedFile
	Action         Action
}

// Container is a registry-image-sourced service; same shape as
// Application minus git info.
type Container struct {
	LongID       ids.ServiceID
	Name         string
	Image        string
	Tag          string
	Resources    Resources
	Scaling      Scaling
	Ports        []Port
	Storages     []Storage
	Probes       []Probe
	EnvVars      []EnvVar
	MountedFiles []MountedFile
	Action       Action
}

// DatabaseEngine is the supported managed/containerized database engines.
type DatabaseEngine string

const (
	DatabasePostgreSQL DatabaseEngine = "PostgreSQL"
	DatabaseMySQL       DatabaseEngine = "MySQL"
	DatabaseMongoDB     DatabaseEngine = "MongoDB"
	DatabaseRedis       DatabaseEngine = "Redis"
)

// DatabaseMode distinguishes an in-cluster container from a cloud-managed
// instance.
type DatabaseMode string

const (
	DatabaseModeContainer DatabaseMode = "Container"
	DatabaseModeManaged   DatabaseMode = "Managed"
)

// Database is a stateful data store, containerized or cloud-managed.
type Database struct {
	LongID           ids.ServiceID
	Name             string
	Engine           DatabaseEngine
	Mode             DatabaseMode
	Version          string
	Username         string
	Password         string
	DiskSizeInGiB    int
	PubliclyExposed  bool
	HighlyAvailable  bool
	BackupEnabled    bool
	Action           Action
}

// Route binds a URL path to a destination service.
type Route struct {
	Path      string
	ServiceID ids.ServiceID
}

// Router is a domain plus its route table.
type Router struct {
	LongID ids.ServiceID
	Name   string
	Domain string
	Routes []Route
	Action Action
}

// JobSource distinguishes a one-shot trigger from a cron schedule.
type JobSource string

const (
	JobSourceOneShot JobSource = "OneShot"
	JobSourceCron    JobSource = "Cron"
)

// Job is a one-shot or scheduled service whose completion carries a JSON
// output contract (§4.4 "Job output protocol").
type Job struct {
	LongID          ids.ServiceID
	Name            string
	Source          JobSource
	Schedule        string // cron expression, only meaningful for JobSourceCron
	MaxRestartCount int
	MaxDurationSecs int
	ForceTrigger    bool
	Image           string
	Resources       Resources
	EnvVars         []EnvVar
	Action          Action
}

// HelmChart is a pre-built chart reference deployed alongside the rest of
// the environment.
type HelmChart struct {
	LongID      ids.ServiceID
	Name        string
	ChartName   string
	ChartRepo   string
	ChartVersion string
	Values      map[string]string
	Action      Action
}

// Environment is the full declarative set of services deployed together
// into one Kubernetes namespace (§3.3).
type Environment struct {
	LongID       ids.ServiceID
	Namespace    string
	Applications []Application
	Containers   []Container
	Databases    []Database
	Routers      []Router
	Jobs         []Job
	HelmCharts   []HelmChart
}

// ServiceIDs returns every service long id declared in the environment,
// used to enforce the "unique within one Environment" invariant (§3.6).
func (e *Environment) ServiceIDs() []ids.ServiceID {
	var out []ids.ServiceID
	for _, a := range e.Applications {
		out = append(out, a.LongID)
	}
	for _, c := range e.Containers {
		out = append(out, c.LongID)
	}
	for _, d := range e.Databases {
		out = append(out, d.LongID)
	}
	for _, r := range e.Routers {
		out = append(out, r.LongID)
	}
	for _, j := range e.Jobs {
		out = append(out, j.LongID)
	}
	for _, h := range e.HelmCharts {
		out = append(out, h.LongID)
	}
	return out
}

// DuplicateServiceIDError reports that ServiceIDs contains the same id
// more than once.
type DuplicateServiceIDError struct {
	ServiceID ids.ServiceID
}

func (e *DuplicateServiceIDError) Error() string {
	return "duplicate service id within environment: " + e.ServiceID.String()
}

// ValidateUniqueServiceIDs enforces §3.6's per-environment uniqueness
// invariant.
func (e *Environment) ValidateUniqueServiceIDs() error {
	seen := make(map[ids.ServiceID]bool)
	for _, id := range e.ServiceIDs() {
		if seen[id] {
			return &DuplicateServiceIDError{ServiceID: id}
		}
		seen[id] = true
	}
	return nil
}

// InvalidJobScheduleError reports a Cron-sourced job whose Schedule is
// not a valid five-field crontab expression.
type InvalidJobScheduleError struct {
	ServiceID ids.ServiceID
	Schedule  string
	Err       error
}

func (e *InvalidJobScheduleError) Error() string {
	return "job " + e.ServiceID.String() + " has an invalid cron schedule " + e.Schedule + ": " + e.Err.Error()
}

func (e *InvalidJobScheduleError) Unwrap() error { return e.Err }

// ValidateJobSchedules rejects any JobSourceCron job whose Schedule does
// not parse as a standard crontab expression. This is a validation error
// (§7 "caller-caused... returned before any external call"), checked
// before the job is ever queued for deployment.
func (e *Environment) ValidateJobSchedules() error {
	for _, j := range e.Jobs {
		if j.Source != JobSourceCron {
			continue
		}
		if _, err := cronParser.Parse(j.Schedule); err != nil {
			return &InvalidJobScheduleError{ServiceID: j.LongID, Schedule: j.Schedule, Err: err}
		}
	}
	return nil
}

// NextJobRun returns the next time j's cron schedule fires strictly after
// from. It returns false for a OneShot job or a schedule that fails to
// parse (callers should have already run ValidateJobSchedules).
func NextJobRun(j Job, from time.Time) (time.Time, bool) {
	if j.Source != JobSourceCron {
		return time.Time{}, false
	}
	schedule, err := cronParser.Parse(j.Schedule)
	if err != nil {
		return time.Time{}, false
	}
	return schedule.Next(from), true
}
