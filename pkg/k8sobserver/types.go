// Package k8sobserver implements the Kubernetes Observer (C3): it polls
// pods/services/PVCs/events for one service's long id within a namespace,
// classifies them into {Starting, Ready, Terminating, Failing}, and
// renders a deterministic human-readable report.
package k8sobserver

import (
	"time"

	corev1 "k8s.io/api/core/v1"
)

// State is the classification a pod/service/PVC is reduced to.
type State string

const (
	StateStarting    State = "Starting"
	StateReady       State = "Ready"
	StateTerminating State = "Terminating"
	StateFailing     State = "Failing"
)

// podErrorReasons are the container-wait/terminated reasons that mark a
// pod as in error (§4.3).
var podErrorReasons = map[string]bool{
	"OOMKilled":                    true,
	"Error":                        true,
	"CrashLoopBackOff":             true,
	"ErrImagePull":                 true,
	"ImagePullBackOff":             true,
	"CreateContainerConfigError":   true,
	"InvalidImageName":             true,
	"CreateContainerError":         true,
	"ContainerCannotRun":           true,
	"DeadlineExceeded":             true,
}

// PodInfo is the reduced view of a pod plus its derived state.
type PodInfo struct {
	Name  string
	UID   string
	State State
	// Reason is the error reason when State == StateFailing, empty otherwise.
	Reason string
	Events []EventInfo
}

// ServiceInfo is the reduced view of a Kubernetes Service plus its derived
// state.
type ServiceInfo struct {
	Name   string
	UID    string
	State  State
	Events []EventInfo
}

// PVCInfo is the reduced view of a PersistentVolumeClaim plus its derived
// state.
type PVCInfo struct {
	Name           string
	UID            string
	State          State
	RequestStorage string
	Events         []EventInfo
}

// EventInfo is a reduced Kubernetes event bound to an owning object.
type EventInfo struct {
	Type          string // "Normal", "Warning", or anything else.
	Reason        string
	Message       string
	LastTimestamp time.Time
}

// AppDeploymentInfo is the full observation for one service's long id.
type AppDeploymentInfo struct {
	Pods     []PodInfo
	Services []ServiceInfo
	PVCs     []PVCInfo
	Events   []EventInfo
}

// IsPodInError classifies a pod as in error based on any of its container
// waiting/terminated reasons.
func IsPodInError(pod *corev1.Pod) (bool, string) {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting != nil && podErrorReasons[cs.State.Waiting.Reason] {
			return true, cs.State.Waiting.Reason
		}
		if cs.State.Terminated != nil && podErrorReasons[cs.State.Terminated.Reason] {
			return true, cs.State.Terminated.Reason
		}
	}
	for _, cs := range pod.Status.InitContainerStatuses {
		if cs.State.Waiting != nil && podErrorReasons[cs.State.Waiting.Reason] {
			return true, cs.State.Waiting.Reason
		}
		if cs.State.Terminated != nil && podErrorReasons[cs.State.Terminated.Reason] {
			return true, cs.State.Terminated.Reason
		}
	}
	return false, ""
}

// IsPodStarting classifies a pod as starting: pending phase, or any
// condition currently reporting False.
func IsPodStarting(pod *corev1.Pod) bool {
	if pod.Status.Phase == corev1.PodPending {
		return true
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Status == corev1.ConditionFalse {
			return true
		}
	}
	return false
}

// ClassifyPod reduces a corev1.Pod to its PodInfo state.
func ClassifyPod(pod *corev1.Pod) PodInfo {
	info := PodInfo{Name: pod.Name, UID: string(pod.UID)}

	if pod.DeletionTimestamp != nil {
		info.State = StateTerminating
		return info
	}
	if inError, reason := IsPodInError(pod); inError {
		info.State = StateFailing
		info.Reason = reason
		return info
	}
	if IsPodStarting(pod) {
		info.State = StateStarting
		return info
	}
	info.State = StateReady
	return info
}

// ClassifyService reduces a corev1.Service to its ServiceInfo state:
// Ready iff LoadBalancer has a non-empty ingress list, or any other type
// has at least one ClusterIP; Terminating iff deletion_timestamp is set;
// Starting otherwise.
func ClassifyService(svc *corev1.Service) ServiceInfo {
	info := ServiceInfo{Name: svc.Name, UID: string(svc.UID)}

	if svc.DeletionTimestamp != nil {
		info.State = StateTerminating
		return info
	}

	if svc.Spec.Type == corev1.ServiceTypeLoadBalancer {
		if len(svc.Status.LoadBalancer.Ingress) > 0 {
			info.State = StateReady
		} else {
			info.State = StateStarting
		}
		return info
	}

	if svc.Spec.ClusterIP != "" && svc.Spec.ClusterIP != corev1.ClusterIPNone {
		info.State = StateReady
		return info
	}
	for _, ip := range svc.Spec.ClusterIPs {
		if ip != "" && ip != corev1.ClusterIPNone {
			info.State = StateReady
			return info
		}
	}
	info.State = StateStarting
	return info
}

// ClassifyPVC reduces a corev1.PersistentVolumeClaim to its PVCInfo state.
func ClassifyPVC(pvc *corev1.PersistentVolumeClaim) PVCInfo {
	info := PVCInfo{Name: pvc.Name, UID: string(pvc.UID)}
	if storage, ok := pvc.Status.Capacity[corev1.ResourceStorage]; ok {
		info.RequestStorage = storage.String()
	}

	if pvc.DeletionTimestamp != nil {
		info.State = StateTerminating
		return info
	}
	switch pvc.Status.Phase {
	case corev1.ClaimBound:
		info.State = StateReady
	case corev1.ClaimPending:
		info.State = StateStarting
	case corev1.ClaimLost:
		info.State = StateFailing
	default:
		info.State = StateStarting
	}
	return info
}
