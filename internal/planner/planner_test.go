package planner

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bam_sniper/internal/model"
)

func snap(feedType model.FeedType, category string, total, pages int) *model.FeedSnapshot {
	return &model.FeedSnapshot{
		FeedType:     feedType,
		Category:     category,
		TotalRecords: total,
		PageCount:    pages,
	}
}

func TestEntry(t *testing.T) {
	p := Planner{PageSize: 20, HeadPages: 2, TailPages: 3}

	tests := []struct {
		name     string
		latest   *model.FeedSnapshot
		previous *model.FeedSnapshot
		want     *model.PlanEntry
	}{
		{
			name:   "first snapshot forces full refresh",
			latest: snap(model.FeedRegular, "house", 100, 5),
			want: &model.PlanEntry{
				FeedType: model.FeedRegular,
				Category: "house",
				Pages:    []int{1, 2, 3, 4, 5},
				Reason:   model.ReasonFullRefresh,
			},
		},
		{
			name:     "growth fetches new pages plus windows",
			latest:   snap("BAM", "house", 140, 7),
			previous: snap("BAM", "house", 100, 5),
			want: &model.PlanEntry{
				FeedType: "BAM",
				Category: "house",
				// new range {5,6,7} + head {1,2} + tail of latest {5,6,7}
				// + tail of previous {3,4,5}
				Pages:  []int{1, 2, 3, 4, 5, 6, 7},
				Reason: model.ReasonNewPages,
			},
		},
		{
			name:     "growth on a large feed stays targeted",
			latest:   snap(model.FeedRegular, "condo", 2420, 121),
			previous: snap(model.FeedRegular, "condo", 2400, 120),
			want: &model.PlanEntry{
				FeedType: model.FeedRegular,
				Category: "condo",
				// head {1,2} + prev tail {118,119,120} + new {120,121}
				// + latest tail {119,120,121}
				Pages:  []int{1, 2, 118, 119, 120, 121},
				Reason: model.ReasonNewPages,
			},
		},
		{
			name:     "unchanged totals refresh boundaries only",
			latest:   snap(model.FeedRegular, "condo", 2400, 120),
			previous: snap(model.FeedRegular, "condo", 2400, 120),
			want: &model.PlanEntry{
				FeedType: model.FeedRegular,
				Category: "condo",
				Pages:    []int{1, 2, 118, 119, 120},
				Reason:   model.ReasonTailRefresh,
			},
		},
		{
			name:     "unchanged small feed collapses to head refresh",
			latest:   snap(model.FeedRegular, "land", 30, 2),
			previous: snap(model.FeedRegular, "land", 30, 2),
			want: &model.PlanEntry{
				FeedType: model.FeedRegular,
				Category: "land",
				Pages:    []int{1, 2},
				Reason:   model.ReasonHeadRefresh,
			},
		},
		{
			name:     "shrinkage forces full refresh",
			latest:   snap(model.FeedRegular, "house", 80, 4),
			previous: snap(model.FeedRegular, "house", 100, 5),
			want: &model.PlanEntry{
				FeedType: model.FeedRegular,
				Category: "house",
				Pages:    []int{1, 2, 3, 4},
				Reason:   model.ReasonFullRefresh,
			},
		},
		{
			name:   "empty feed emits no entry",
			latest: snap(model.FeedRegular, "house", 0, 0),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Entry(tt.latest, tt.previous)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("entry mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntryGrowthCoversNewRange(t *testing.T) {
	p := Planner{PageSize: 12, HeadPages: 2, TailPages: 3}

	// Every page past the previous page count must appear in the plan,
	// regardless of window sizes.
	for _, prevPages := range []int{1, 5, 50, 200} {
		latest := snap(model.FeedRegular, "house", (prevPages+10)*12, prevPages+10)
		previous := snap(model.FeedRegular, "house", prevPages*12, prevPages)

		entry := p.Entry(latest, previous)
		if entry == nil {
			t.Fatalf("prevPages=%d: nil entry", prevPages)
		}
		have := make(map[int]bool, len(entry.Pages))
		for _, page := range entry.Pages {
			have[page] = true
		}
		for page := prevPages + 1; page <= prevPages+10; page++ {
			if !have[page] {
				t.Errorf("prevPages=%d: page %d missing from plan %v", prevPages, page, entry.Pages)
			}
		}
	}
}

func TestEntryUnchangedBounded(t *testing.T) {
	p := Planner{PageSize: 12, HeadPages: 2, TailPages: 3}

	for _, pages := range []int{1, 2, 5, 100, 1000} {
		s := snap(model.FeedRegular, "house", pages*12, pages)
		entry := p.Entry(s, s)
		if entry == nil {
			t.Fatalf("pages=%d: nil entry", pages)
		}
		if len(entry.Pages) > p.HeadPages+p.TailPages {
			t.Errorf("pages=%d: plan has %d pages, want <= %d", pages, len(entry.Pages), p.HeadPages+p.TailPages)
		}
	}
}

func TestBuild(t *testing.T) {
	p := Planner{PageSize: 12, HeadPages: 2, TailPages: 3}
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	previous := map[model.FeedKey]*model.FeedSnapshot{
		{FeedType: model.FeedRegular, Category: "Condos"}: snap(model.FeedRegular, "Condos", 120, 10),
	}
	current := []*model.FeedSnapshot{
		snap(model.FeedRegular, "Condos", 144, 12),
		snap(model.FeedAuction, "Auction", 24, 2),
		snap(model.FeedRegular, "Vacant Land", 0, 0),
		snap(model.FeedRegular, "Condos", 144, 12), // duplicate probe, ignored
	}

	plan := p.Build(previous, current, now)

	want := &model.DeltaPlan{
		GeneratedAt: now,
		PageSize:    12,
		Entries: []model.PlanEntry{
			{
				FeedType: model.FeedRegular,
				Category: "Condos",
				Pages:    []int{1, 2, 8, 9, 10, 11, 12},
				Reason:   model.ReasonNewPages,
			},
			{
				FeedType: model.FeedAuction,
				Category: "Auction",
				Pages:    []int{1, 2},
				Reason:   model.ReasonFullRefresh,
			},
		},
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}
