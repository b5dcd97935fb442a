// Package pvcresize implements the storage resize protocol (§4.4): PVCs
// backing a StatefulSet may only grow; a shrink is always rejected.
package pvcresize

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
)

// InvalidPvc is a PVC whose currently bound size is below the declared
// desired size (§3.6, §8.1.4) — a resize candidate.
type InvalidPvc struct {
	Name        string
	CurrentGiB  int
	DesiredGiB  int
}

// DesiredPVC is the rendered StatefulSet's expectation for one PVC.
type DesiredPVC struct {
	Name      string
	SizeInGiB int
}

// FindInvalidPVCs queries actual PVCs in namespace matching selector and
// returns those whose bound size is below their matching desired entry.
func FindInvalidPVCs(ctx context.Context, client kubernetes.Interface, namespace, selector string, desired []DesiredPVC) ([]InvalidPvc, error) {
	actual, err := client.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing PVCs: %w", err)
	}

	desiredByName := make(map[string]int, len(desired))
	for _, d := range desired {
		desiredByName[d.Name] = d.SizeInGiB
	}

	var invalid []InvalidPvc
	for _, pvc := range actual.Items {
		desiredGiB, ok := desiredByName[pvc.Name]
		if !ok {
			continue
		}
		currentGiB := boundGiB(pvc)
		if currentGiB < desiredGiB {
			invalid = append(invalid, InvalidPvc{Name: pvc.Name, CurrentGiB: currentGiB, DesiredGiB: desiredGiB})
		}
	}
	return invalid, nil
}

func boundGiB(pvc corev1.PersistentVolumeClaim) int {
	qty, ok := pvc.Status.Capacity[corev1.ResourceStorage]
	if !ok {
		qty = pvc.Spec.Resources.Requests[corev1.ResourceStorage]
	}
	return int(qty.Value() / (1024 * 1024 * 1024))
}

// Grow patches every invalid PVC's spec.resources.requests.storage to its
// desired size. Any requested shrink (DesiredGiB < CurrentGiB) is rejected
// before any patch is issued, enforcing the engine's grow-only invariant.
func Grow(ctx context.Context, client kubernetes.Interface, details events.EventDetails, namespace string, invalid []InvalidPvc) error {
	for _, pvc := range invalid {
		if pvc.DesiredGiB < pvc.CurrentGiB {
			return engineerror.InvalidPvcShrinkRequested(details, pvc.Name, pvc.CurrentGiB, pvc.DesiredGiB)
		}
	}

	for _, pvc := range invalid {
		patch := fmt.Sprintf(
			`{"spec":{"resources":{"requests":{"storage":"%dGi"}}}}`,
			pvc.DesiredGiB,
		)
		_, err := client.CoreV1().PersistentVolumeClaims(namespace).Patch(
			ctx, pvc.Name, types.MergePatchType, []byte(patch), metav1.PatchOptions{},
		)
		if err != nil {
			return fmt.Errorf("patching PVC %s to %dGi: %w", pvc.Name, pvc.DesiredGiB, err)
		}
	}
	return nil
}

// ParseStorageQuantity is a small helper for callers building DesiredPVC
// entries from a "<N>Gi"-style spec field.
func ParseStorageQuantity(s string) (int, error) {
	qty, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parsing storage quantity %q: %w", s, err)
	}
	return int(qty.Value() / (1024 * 1024 * 1024)), nil
}
