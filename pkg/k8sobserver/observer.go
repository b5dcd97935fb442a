package k8sobserver

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/deployforge/engine/pkg/ids"
)

// ServiceLabel is the label every rendered chart applies to its objects so
// the observer can select them by service long id.
const ServiceLabel = "deployforge.io/service-id"

// eventWindow is how recent a Kubernetes event must be to be attached to
// an object's report (§4.3 "within the last 2 minutes").
const eventWindow = 2 * time.Minute

// eventsPerObject is k in "the last k Kubernetes events ... typically 2".
const eventsPerObject = 2

// Observer polls Kubernetes objects for one service and classifies them.
type Observer struct {
	client kubernetes.Interface
	now    func() time.Time
}

func New(client kubernetes.Interface) *Observer {
	return &Observer{client: client, now: time.Now}
}

// Client exposes the underlying clientset so callers that need direct
// object mutation (e.g. the storage resize protocol, §4.4) can reuse the
// same connection the Observer polls with, instead of opening another.
func (o *Observer) Client() kubernetes.Interface { return o.client }

// Observe fetches pods, services, PVCs and events for serviceID within
// namespace and returns the classified report.
func (o *Observer) Observe(ctx context.Context, namespace string, serviceID ids.ServiceID) (*AppDeploymentInfo, error) {
	selector := fmt.Sprintf("%s=%s", ServiceLabel, serviceID.String())
	listOpts := metav1.ListOptions{LabelSelector: selector}

	pods, err := o.client.CoreV1().Pods(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	services, err := o.client.CoreV1().Services(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	pvcs, err := o.client.CoreV1().PersistentVolumeClaims(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing pvcs: %w", err)
	}
	allEvents, err := o.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	eventsByUID := o.groupEventsByUID(allEvents.Items)

	report := &AppDeploymentInfo{}
	for i := range pods.Items {
		info := ClassifyPod(&pods.Items[i])
		info.Events = eventsByUID[info.UID]
		report.Pods = append(report.Pods, info)
	}
	for i := range services.Items {
		info := ClassifyService(&services.Items[i])
		info.Events = eventsByUID[info.UID]
		report.Services = append(report.Services, info)
	}
	for i := range pvcs.Items {
		info := ClassifyPVC(&pvcs.Items[i])
		info.Events = eventsByUID[info.UID]
		report.PVCs = append(report.PVCs, info)
	}
	for _, evs := range eventsByUID {
		report.Events = append(report.Events, evs...)
	}

	return report, nil
}

// groupEventsByUID binds, for each involved object UID, at most
// eventsPerObject events whose LastTimestamp is within eventWindow,
// sorted last-first (most recent first).
func (o *Observer) groupEventsByUID(events []corev1.Event) map[string][]EventInfo {
	now := o.now()
	byUID := make(map[string][]corev1.Event)
	for _, ev := range events {
		ts := ev.LastTimestamp.Time
		if ts.IsZero() {
			ts = ev.EventTime.Time
		}
		if now.Sub(ts) > eventWindow {
			continue
		}
		uid := string(ev.InvolvedObject.UID)
		byUID[uid] = append(byUID[uid], ev)
	}

	result := make(map[string][]EventInfo, len(byUID))
	for uid, evs := range byUID {
		sort.Slice(evs, func(i, j int) bool {
			return lastTimestamp(evs[i]).After(lastTimestamp(evs[j]))
		})
		if len(evs) > eventsPerObject {
			evs = evs[:eventsPerObject]
		}
		infos := make([]EventInfo, 0, len(evs))
		for _, ev := range evs {
			infos = append(infos, EventInfo{
				Type:          ev.Type,
				Reason:        ev.Reason,
				Message:       ev.Message,
				LastTimestamp: lastTimestamp(ev),
			})
		}
		result[uid] = infos
	}
	return result
}

func lastTimestamp(ev corev1.Event) time.Time {
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp.Time
	}
	return ev.EventTime.Time
}
