package planner

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bam_sniper/internal/model"
)

func testPlan() *model.DeltaPlan {
	return &model.DeltaPlan{
		GeneratedAt: time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC),
		PageSize:    12,
		Entries: []model.PlanEntry{
			{FeedType: model.FeedRegular, Category: "Condos", Pages: []int{1, 2, 9, 10}, Reason: model.ReasonNewPages},
			{FeedType: model.FeedAuction, Category: "Auction", Pages: []int{1, 2, 3}, Reason: model.ReasonFullRefresh},
		},
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "delta.json")
	want := testPlan()

	if err := SaveArtifact(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !ArtifactExists(path) {
		t.Fatal("artifact missing after save")
	}

	got, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadArtifactMissing(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
}

func TestDeleteArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delta.json")
	if err := SaveArtifact(path, testPlan()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := DeleteArtifact(path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ArtifactExists(path) {
		t.Fatal("artifact still present after delete")
	}

	// Deleting an absent plan is a no-op.
	if err := DeleteArtifact(path); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSaveArtifactOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delta.json")
	if err := SaveArtifact(path, testPlan()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	smaller := &model.DeltaPlan{
		GeneratedAt: time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC),
		PageSize:    12,
		Entries: []model.PlanEntry{
			{FeedType: model.FeedAuction, Category: "Auction", Pages: []int{1}, Reason: model.ReasonHeadRefresh},
		},
	}
	if err := SaveArtifact(path, smaller); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(smaller, got); diff != "" {
		t.Errorf("overwrite mismatch (-want +got):\n%s", diff)
	}
}
