package pvcresize

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

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

func pvcWithCapacity(name string, giB int64) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "ns1", Labels: map[string]string{"app": "data"}},
		Status: corev1.PersistentVolumeClaimStatus{
			Capacity: corev1.ResourceList{
				corev1.ResourceStorage: *resource.NewQuantity(giB*1024*1024*1024, resource.BinarySI),
			},
		},
	}
}

func TestFindInvalidPVCsDetectsUndersized(t *testing.T) {
	client := fake.NewSimpleClientset(pvcWithCapacity("data-0", 5))
	invalid, err := FindInvalidPVCs(context.Background(), client, "ns1", "app=data", []DesiredPVC{
		{Name: "data-0", SizeInGiB: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invalid) != 1 || invalid[0].CurrentGiB != 5 || invalid[0].DesiredGiB != 10 {
		t.Fatalf("unexpected invalid list: %+v", invalid)
	}
}

func TestFindInvalidPVCsIgnoresAlreadySized(t *testing.T) {
	client := fake.NewSimpleClientset(pvcWithCapacity("data-0", 10))
	invalid, err := FindInvalidPVCs(context.Background(), client, "ns1", "app=data", []DesiredPVC{
		{Name: "data-0", SizeInGiB: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid PVCs, got %+v", invalid)
	}
}

func TestGrowRejectsShrink(t *testing.T) {
	client := fake.NewSimpleClientset(pvcWithCapacity("data-0", 10))
	err := Grow(context.Background(), client, sampleDetails(), "ns1", []InvalidPvc{
		{Name: "data-0", CurrentGiB: 10, DesiredGiB: 5},
	})
	if err == nil {
		t.Fatal("expected shrink to be rejected")
	}
	engineErr, ok := err.(*engineerror.EngineError)
	if !ok || engineErr.Tag() != engineerror.TagInvalidPvcShrinkRequested {
		t.Fatalf("expected InvalidPvcShrinkRequested, got %v", err)
	}
}

func TestGrowPatchesUndersizedPVC(t *testing.T) {
	client := fake.NewSimpleClientset(pvcWithCapacity("data-0", 5))
	err := Grow(context.Background(), client, sampleDetails(), "ns1", []InvalidPvc{
		{Name: "data-0", CurrentGiB: 5, DesiredGiB: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
