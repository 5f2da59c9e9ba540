// Package pipeline orchestrates the probe → plan → fetch → merge cycle
// around the durable plan artifact.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bam_sniper/internal/feed"
	"bam_sniper/internal/merger"
	"bam_sniper/internal/model"
	"bam_sniper/internal/planner"
)

// Fetcher is the interface to the feed client.
type Fetcher interface {
	Probe(ctx context.Context, cat feed.CategoryConfig) (*model.FeedSnapshot, error)
	FetchPage(ctx context.Context, cat feed.CategoryConfig, page int) ([]model.RawListing, error)
}

// SnapshotStore is the slice of storage the snapshot run needs.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s *model.FeedSnapshot) error
	LatestSnapshots(ctx context.Context) (map[model.FeedKey]*model.FeedSnapshot, error)
}

// Controller drives the plan lifecycle: a plan artifact is generated by
// Snapshot, consumed by Ingest, and deleted only after a fully
// successful cycle. A retained artifact makes the next cycle resume the
// same plan instead of re-planning.
type Controller struct {
	store       SnapshotStore
	fetcher     Fetcher
	merger      *merger.Merger
	planner     planner.Planner
	planFile    string
	categories  []feed.CategoryConfig
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// New creates a Controller over the given collaborators.
func New(store SnapshotStore, fetcher Fetcher, m *merger.Merger, p planner.Planner, planFile string, categories []feed.CategoryConfig, concurrency int, log *slog.Logger) *Controller {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Controller{
		store:       store,
		fetcher:     fetcher,
		merger:      m,
		planner:     p,
		planFile:    planFile,
		categories:  categories,
		concurrency: concurrency,
		log:         log,
		now:         time.Now,
	}
}

// SetNow overrides the clock (useful for testing).
func (c *Controller) SetNow(now func() time.Time) {
	c.now = now
}

// Snapshot probes every configured feed/category, persists the probe
// results, and writes a fresh plan artifact. An unconsumed plan on
// disk is never overwritten: the call returns ErrPlanExists so the
// operator runs ingest first.
func (c *Controller) Snapshot(ctx context.Context) (*model.DeltaPlan, error) {
	if planner.ArtifactExists(c.planFile) {
		c.log.Info("unconsumed plan exists, skipping probe", "plan_file", c.planFile)
		return nil, planner.ErrPlanExists
	}

	previous, err := c.store.LatestSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prior snapshots: %w", err)
	}

	var current []*model.FeedSnapshot
	for _, cat := range c.categories {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		snap, err := c.fetcher.Probe(ctx, cat)
		if err != nil {
			// Unknown this cycle; the rest of the feeds still run.
			c.log.Warn("probe failed, skipping feed this cycle",
				"feed_type", cat.FeedType, "category", cat.Label, "error", err)
			continue
		}
		snap.CheckedAt = c.now().UTC()
		if err := c.store.InsertSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("persist snapshot %s/%s: %w", cat.FeedType, cat.Label, err)
		}
		c.log.Debug("probed feed", "feed_type", cat.FeedType, "category", cat.Label,
			"total_records", snap.TotalRecords, "page_count", snap.PageCount)
		current = append(current, snap)
	}

	plan := c.planner.Build(previous, current, c.now())
	if len(plan.Entries) == 0 {
		c.log.Info("nothing owed, no plan written")
		return plan, nil
	}

	if err := planner.SaveArtifact(c.planFile, plan); err != nil {
		return nil, fmt.Errorf("write plan artifact: %w", err)
	}
	c.log.Info("plan generated", "entries", len(plan.Entries), "plan_file", c.planFile)
	return plan, nil
}

// Ingest consumes the current plan artifact: fetch, merge, and score
// every planned page. The artifact is deleted only when every entry
// succeeded; any failure retains it verbatim so the next run resumes
// the same plan. Returns ErrNoPlan when nothing is owed.
func (c *Controller) Ingest(ctx context.Context) (*model.CycleSummary, error) {
	plan, err := planner.LoadArtifact(c.planFile)
	if err != nil {
		return nil, err
	}

	summary := &model.CycleSummary{
		CycleID:   uuid.NewString(),
		StartedAt: c.now().UTC(),
	}
	c.log.Info("consuming plan", "cycle_id", summary.CycleID,
		"entries", len(plan.Entries), "generated_at", plan.GeneratedAt)

	interrupted := false
	for i := range plan.Entries {
		entry := &plan.Entries[i]
		if ctx.Err() != nil {
			// Cooperative stop: the in-flight entry finished its merge;
			// the retained plan covers the rest.
			interrupted = true
			break
		}
		summary.Entries = append(summary.Entries, c.consumeEntry(ctx, entry, summary.StartedAt))
	}

	if !interrupted && summary.FailedEntries() == 0 {
		if err := planner.DeleteArtifact(c.planFile); err != nil {
			return summary, fmt.Errorf("apply plan: %w", err)
		}
		summary.Applied = true
		c.log.Info("plan fully applied", "cycle_id", summary.CycleID)
	} else {
		c.log.Warn("plan retained for next cycle", "cycle_id", summary.CycleID,
			"failed_entries", summary.FailedEntries(), "interrupted", interrupted)
	}
	return summary, nil
}

func (c *Controller) consumeEntry(ctx context.Context, entry *model.PlanEntry, cycleStart time.Time) model.EntrySummary {
	es := model.EntrySummary{
		FeedType:     entry.FeedType,
		Category:     entry.Category,
		Reason:       entry.Reason,
		PagesPlanned: len(entry.Pages),
	}

	cat, ok := c.categoryFor(entry.Key())
	if !ok {
		es.Failed = true
		es.Err = fmt.Sprintf("no configured category for %s/%s", entry.FeedType, entry.Category)
		c.log.Error("plan entry references unknown feed", "feed_type", entry.FeedType, "category", entry.Category)
		return es
	}

	batches, fetched, fetchErr := c.fetchPages(ctx, cat, entry.Pages)
	es.PagesFetched = fetched

	// Merge whatever was fetched even when some pages failed; merging
	// is idempotent and the retained plan re-fetches everything.
	for _, batch := range batches {
		report, err := c.merger.Merge(ctx, batch, entry.FeedType, entry.Category)
		if report != nil {
			es.Report.Combine(*report)
		}
		if err != nil {
			// Storage trouble; fail the entry and leave the plan alone.
			es.Failed = true
			es.Err = err.Error()
			c.log.Error("merge failed", "feed_type", entry.FeedType, "category", entry.Category, "error", err)
			return es
		}
	}

	if fetchErr != nil {
		es.Failed = true
		es.Err = fetchErr.Error()
		c.log.Error("entry failed after retries",
			"feed_type", entry.FeedType, "category", entry.Category,
			"pages_fetched", fetched, "pages_planned", len(entry.Pages), "error", fetchErr)
		return es
	}

	// Only a fully-fetched FULL_REFRESH guarantees every current
	// listing was observed, which is what staleness detection needs.
	if entry.Reason == model.ReasonFullRefresh {
		n, err := c.merger.FinishCoverage(ctx, entry.FeedType, entry.Category, cycleStart)
		if err != nil {
			es.Failed = true
			es.Err = err.Error()
			return es
		}
		es.MarkedStale = n
	}

	c.log.Info("entry consumed", "feed_type", entry.FeedType, "category", entry.Category,
		"reason", entry.Reason, "pages", fetched,
		"inserted", es.Report.Inserted, "updated", es.Report.Updated,
		"price_changes", es.Report.PriceChanges, "stale", es.MarkedStale)
	return es
}

// fetchPages fetches an entry's pages with bounded concurrency. Page
// order is preserved in the returned batches; the first error is
// reported after all pages settle.
func (c *Controller) fetchPages(ctx context.Context, cat feed.CategoryConfig, pages []int) ([][]model.RawListing, int, error) {
	type result struct {
		listings []model.RawListing
		err      error
	}
	results := make([]result, len(pages))

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		sem <- struct{}{}
		go func(i, page int) {
			defer wg.Done()
			defer func() { <-sem }()
			listings, err := c.fetcher.FetchPage(ctx, cat, page)
			results[i] = result{listings: listings, err: err}
		}(i, page)
	}
	wg.Wait()

	var batches [][]model.RawListing
	fetched := 0
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		fetched++
		if len(r.listings) > 0 {
			batches = append(batches, r.listings)
		}
	}
	return batches, fetched, firstErr
}

func (c *Controller) categoryFor(key model.FeedKey) (feed.CategoryConfig, bool) {
	for _, cat := range c.categories {
		if cat.Key() == key {
			return cat, true
		}
	}
	return feed.CategoryConfig{}, false
}
