package environment

import (
	"testing"
	"time"

	"github.com/deployforge/engine/pkg/ids"
)

func TestServiceIDsCollectsAcrossAllKinds(t *testing.T) {
	appID := ids.ServiceID(ids.New())
	containerID := ids.ServiceID(ids.New())
	dbID := ids.ServiceID(ids.New())
	routerID := ids.ServiceID(ids.New())
	jobID := ids.ServiceID(ids.New())
	chartID := ids.ServiceID(ids.New())

	env := Environment{
		Applications: []Application{{LongID: appID}},
		Containers:   []Container{{LongID: containerID}},
		Databases:    []Database{{LongID: dbID}},
		Routers:      []Router{{LongID: routerID}},
		Jobs:         []Job{{LongID: jobID}},
		HelmCharts:   []HelmChart{{LongID: chartID}},
	}

	got := env.ServiceIDs()
	want := map[ids.ServiceID]bool{appID: true, containerID: true, dbID: true, routerID: true, jobID: true, chartID: true}
	if len(got) != len(want) {
		t.Fatalf("expected %d service ids, got %d: %v", len(want), len(got), got)
	}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected service id %v", id)
		}
	}
}

func TestValidateUniqueServiceIDsAcceptsDistinctIDs(t *testing.T) {
	env := Environment{
		Applications: []Application{{LongID: ids.ServiceID(ids.New())}},
		Containers:   []Container{{LongID: ids.ServiceID(ids.New())}},
	}
	if err := env.ValidateUniqueServiceIDs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUniqueServiceIDsRejectsDuplicates(t *testing.T) {
	shared := ids.ServiceID(ids.New())
	env := Environment{
		Applications: []Application{{LongID: shared}},
		Containers:   []Container{{LongID: shared}},
	}
	err := env.ValidateUniqueServiceIDs()
	if err == nil {
		t.Fatal("expected a duplicate service id error")
	}
	dupErr, ok := err.(*DuplicateServiceIDError)
	if !ok {
		t.Fatalf("expected *DuplicateServiceIDError, got %T", err)
	}
	if dupErr.ServiceID != shared {
		t.Fatalf("expected the duplicate error to reference %v, got %v", shared, dupErr.ServiceID)
	}
}

func TestValidateJobSchedulesAcceptsValidCronAndIgnoresOneShot(t *testing.T) {
	env := Environment{
		Jobs: []Job{
			{LongID: ids.ServiceID(ids.New()), Source: JobSourceCron, Schedule: "0 3 * * *"},
			{LongID: ids.ServiceID(ids.New()), Source: JobSourceOneShot, Schedule: "not a cron expression"},
		},
	}
	if err := env.ValidateJobSchedules(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateJobSchedulesRejectsInvalidCronExpression(t *testing.T) {
	jobID := ids.ServiceID(ids.New())
	env := Environment{
		Jobs: []Job{
			{LongID: jobID, Source: JobSourceCron, Schedule: "not a cron expression"},
		},
	}
	err := env.ValidateJobSchedules()
	if err == nil {
		t.Fatal("expected an invalid schedule error")
	}
	schedErr, ok := err.(*InvalidJobScheduleError)
	if !ok {
		t.Fatalf("expected *InvalidJobScheduleError, got %T", err)
	}
	if schedErr.ServiceID != jobID {
		t.Fatalf("expected the error to reference %v, got %v", jobID, schedErr.ServiceID)
	}
}

func TestNextJobRunComputesNextCronFireTime(t *testing.T) {
	job := Job{Source: JobSourceCron, Schedule: "0 3 * * *"}
	from := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	next, ok := NextJobRun(job, from)
	if !ok {
		t.Fatal("expected a next run time for a valid cron schedule")
	}
	want := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected next run %v, got %v", want, next)
	}
}

func TestNextJobRunReturnsFalseForOneShotJob(t *testing.T) {
	job := Job{Source: JobSourceOneShot}
	if _, ok := NextJobRun(job, time.Now()); ok {
		t.Fatal("expected no next run time for a one-shot job")
	}
}
