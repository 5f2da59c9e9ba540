// Package planner decides which feed pages are worth re-fetching and
// manages the durable plan artifact.
package planner

import (
	"sort"
	"time"

	"bam_sniper/internal/model"
)

// Planner computes delta plans from snapshot pairs.
type Planner struct {
	// PageSize is recorded into generated plans for the consumer.
	PageSize int
	// HeadPages and TailPages are the boundary windows re-checked every
	// cycle: feeds reorder and update listings near both ends even when
	// the total count does not move.
	HeadPages int
	TailPages int
}

// Entry computes the plan entry for one feed/category, or nil when the
// feed has nothing to fetch.
//
// First-ever snapshot and shrinkage both force a full refresh: with no
// baseline there is nothing to diff against, and after shrinkage page
// boundaries may have shifted arbitrarily, so boundary windows cannot
// be trusted to catch removals. Growth fetches the new page range plus
// both boundary windows; an unchanged total fetches the boundary
// windows alone.
func (p Planner) Entry(latest *model.FeedSnapshot, previous *model.FeedSnapshot) *model.PlanEntry {
	pageCount := latest.PageCount
	if pageCount <= 0 {
		return nil
	}

	full := func() *model.PlanEntry {
		return &model.PlanEntry{
			FeedType: latest.FeedType,
			Category: latest.Category,
			Pages:    pageRange(1, pageCount),
			Reason:   model.ReasonFullRefresh,
		}
	}

	if previous == nil {
		return full()
	}
	if latest.TotalRecords < previous.TotalRecords {
		return full()
	}

	pages := make(map[int]struct{})
	addRange(pages, 1, min(p.HeadPages, pageCount))
	addRange(pages, max(1, pageCount-p.TailPages+1), pageCount)

	reason := model.ReasonTailRefresh
	if pageCount <= p.HeadPages {
		reason = model.ReasonHeadRefresh
	}

	if latest.TotalRecords > previous.TotalRecords {
		// The last previously-known page may have been partial, so the
		// new range starts there rather than one past it.
		start := max(1, previous.PageCount)
		addRange(pages, start, pageCount)
		// The tail window of the previous range catches listings the
		// growth pushed across the old boundary.
		addRange(pages, max(1, previous.PageCount-p.TailPages+1), previous.PageCount)
		reason = model.ReasonNewPages
	}

	if len(pages) == 0 {
		return nil
	}

	return &model.PlanEntry{
		FeedType: latest.FeedType,
		Category: latest.Category,
		Pages:    sortedPages(pages),
		Reason:   reason,
	}
}

// Build assembles a delta plan from the current probe results and the
// most recent prior snapshot per feed/category. Entry order follows
// the probe order; at most one entry exists per feed/category.
func (p Planner) Build(previous map[model.FeedKey]*model.FeedSnapshot, current []*model.FeedSnapshot, now time.Time) *model.DeltaPlan {
	plan := &model.DeltaPlan{
		GeneratedAt: now.UTC(),
		PageSize:    p.PageSize,
	}

	seen := make(map[model.FeedKey]struct{}, len(current))
	for _, snap := range current {
		key := snap.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		entry := p.Entry(snap, previous[key])
		if entry == nil {
			continue
		}
		plan.Entries = append(plan.Entries, *entry)
	}
	return plan
}

func addRange(pages map[int]struct{}, start, end int) {
	for page := start; page <= end; page++ {
		pages[page] = struct{}{}
	}
}

func pageRange(start, end int) []int {
	pages := make([]int, 0, end-start+1)
	for page := start; page <= end; page++ {
		pages = append(pages, page)
	}
	return pages
}

func sortedPages(pages map[int]struct{}) []int {
	out := make([]int, 0, len(pages))
	for page := range pages {
		out = append(out, page)
	}
	sort.Ints(out)
	return out
}
