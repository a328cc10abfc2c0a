package workflow_test

import (
	"errors"
	"testing"

	"mediaflow/internal/workflow"
)

func TestRegistryTracksLifecycleAndHistoryLimit(t *testing.T) {
	reg := workflow.NewRegistry(2)
	for _, id := range []string{"a", "b", "c"} {
		if !reg.Begin(id, "acme") {
			t.Fatalf("Begin(%s) refused", id)
		}
	}
	if reg.Begin("a", "acme") {
		t.Fatal("expected duplicate Begin to be refused")
	}
	reg.Start("a")
	reg.Finish("a", nil)
	reg.Finish("b", errors.New("boom"))
	reg.Drop("c", errors.New("queue full"))

	if reg.InFlight("a") || len(reg.Active()) != 0 {
		t.Fatalf("expected nothing in flight, got %v", reg.Active())
	}
	snap := reg.Snapshot("")
	if len(snap) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(snap))
	}
	if snap[0].JobID != "c" || snap[0].State != workflow.TaskDropped {
		t.Fatalf("expected newest first, got %+v", snap[0])
	}
	if snap[1].JobID != "b" || snap[1].Error != "boom" {
		t.Fatalf("unexpected second entry %+v", snap[1])
	}
	if !reg.Begin("a", "acme") {
		t.Fatal("expected finished job id to be accepted again")
	}
}

func TestRegistrySnapshotFiltersOrganization(t *testing.T) {
	reg := workflow.NewRegistry(10)
	reg.Begin("a", "acme")
	reg.Begin("b", "globex")
	reg.Finish("b", nil)

	if snap := reg.Snapshot("acme"); len(snap) != 1 || snap[0].JobID != "a" {
		t.Fatalf("unexpected acme snapshot %+v", snap)
	}
	if snap := reg.Snapshot("globex"); len(snap) != 1 || snap[0].JobID != "b" {
		t.Fatalf("unexpected globex snapshot %+v", snap)
	}
}
