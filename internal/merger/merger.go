// Package merger folds fetched listing batches into the canonical
// store with deduplication, price-history tracking, and scoring.
package merger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"bam_sniper/internal/model"
	"bam_sniper/internal/scoring"
	"bam_sniper/internal/storage"
	"bam_sniper/internal/translate"
)

// lockStripes bounds memory for per-URL serialization. Two URLs
// sharing a stripe merge sequentially, which is harmless.
const lockStripes = 64

// Merger performs read-modify-write merges of raw listings keyed by
// external URL. At most one mutation per URL is in flight at a time.
type Merger struct {
	store      storage.Storage
	engine     *scoring.Engine
	translator translate.Translator
	targetLang string
	log        *slog.Logger
	now        func() time.Time
	locks      [lockStripes]sync.Mutex
}

// New creates a Merger.
func New(store storage.Storage, engine *scoring.Engine, translator translate.Translator, targetLang string, log *slog.Logger) *Merger {
	return &Merger{
		store:      store,
		engine:     engine,
		translator: translator,
		targetLang: targetLang,
		log:        log,
		now:        time.Now,
	}
}

// SetNow overrides the clock (useful for testing).
func (m *Merger) SetNow(now func() time.Time) {
	m.now = now
}

// Merge folds one batch into the canonical store. Records without a
// URL are dropped and counted; storage failures abort the batch. The
// returned report covers everything processed before any error.
func (m *Merger) Merge(ctx context.Context, batch []model.RawListing, feedType model.FeedType, category string) (*model.MergeReport, error) {
	report := &model.MergeReport{}

	for i := range batch {
		raw := &batch[i]
		if raw.URL == "" {
			report.Dropped++
			m.log.Warn("dropping listing without external URL",
				"feed_type", feedType, "category", category, "title", raw.Title)
			continue
		}

		if err := m.mergeOne(ctx, raw, feedType, category, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (m *Merger) mergeOne(ctx context.Context, raw *model.RawListing, feedType model.FeedType, category string, report *model.MergeReport) error {
	lock := m.lockFor(raw.URL)
	lock.Lock()
	defer lock.Unlock()

	now := m.now().UTC()

	existing, err := m.store.GetListing(ctx, raw.URL)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return m.insertNew(ctx, raw, feedType, category, now, report)
	case err != nil:
		return fmt.Errorf("lookup listing %s: %w", raw.URL, err)
	}
	return m.updateExisting(ctx, existing, raw, feedType, category, now, report)
}

func (m *Merger) insertNew(ctx context.Context, raw *model.RawListing, feedType model.FeedType, category string, now time.Time, report *model.MergeReport) error {
	l := &model.Listing{
		URL:           raw.URL,
		Source:        raw.Source,
		FeedType:      feedType,
		Category:      category,
		Status:        model.StatusActive,
		LastSeenAt:    now,
		LastUpdatedAt: now,
		CreatedAt:     now,
	}
	applyScraped(l, raw)
	m.applyTranslations(ctx, l, "", "", "", "", "")
	m.applyScores(l)

	// History tracks changes, not creation: no initial price row.
	if err := m.store.InsertListing(ctx, l); err != nil {
		return fmt.Errorf("insert listing %s: %w", raw.URL, err)
	}
	report.Inserted++
	return nil
}

func (m *Merger) updateExisting(ctx context.Context, l *model.Listing, raw *model.RawListing, feedType model.FeedType, category string, now time.Time, report *model.MergeReport) error {
	var pc *model.PriceChange
	if raw.Price != l.Price {
		// The history row records the price that was valid until now.
		pc = &model.PriceChange{ListingURL: l.URL, Price: l.Price, RecordedAt: now}
	}

	rescore := scoring.InputChanged(l, raw)
	prevTitle, prevDesc, prevLoc, prevContact, prevBank := l.Title, l.Description, l.Location, l.Contact, l.Bank

	applyScraped(l, raw)
	l.FeedType = feedType
	l.Category = category
	if l.Status == model.StatusStale {
		l.Status = model.StatusActive
		report.Reactivated++
	}
	l.LastSeenAt = now
	l.LastUpdatedAt = now

	m.applyTranslations(ctx, l, prevTitle, prevDesc, prevLoc, prevContact, prevBank)
	if rescore {
		m.applyScores(l)
	}

	// The history row lands in the same transaction as the update: a
	// failure leaves neither, so a resumed plan re-merges cleanly
	// without duplicating history.
	if pc != nil {
		if err := m.store.UpdateListingWithPriceChange(ctx, l, pc); err != nil {
			return fmt.Errorf("update listing %s: %w", l.URL, err)
		}
		report.PriceChanges++
	} else if err := m.store.UpdateListing(ctx, l); err != nil {
		return fmt.Errorf("update listing %s: %w", l.URL, err)
	}
	report.Updated++
	return nil
}

// FinishCoverage runs the staleness pass after a full-coverage merge of
// one feed/category: listings last seen before the cycle start were not
// re-observed and flip to stale.
func (m *Merger) FinishCoverage(ctx context.Context, feedType model.FeedType, category string, cycleStart time.Time) (int64, error) {
	n, err := m.store.MarkStale(ctx, feedType, category, cycleStart)
	if err != nil {
		return 0, fmt.Errorf("staleness pass %s/%s: %w", feedType, category, err)
	}
	if n > 0 {
		m.log.Info("marked unobserved listings stale",
			"feed_type", feedType, "category", category, "count", n)
	}
	return n, nil
}

// applyScraped overwrites scraped fields last-write-wins. Derived and
// translated fields are handled separately.
func applyScraped(l *model.Listing, raw *model.RawListing) {
	l.Source = raw.Source
	l.Title = raw.Title
	l.Description = raw.Description
	l.Price = raw.Price
	l.SizeSqm = raw.SizeSqm
	l.Lat = raw.Lat
	l.Lon = raw.Lon
	l.Location = raw.Location
	l.Contact = raw.Contact
	l.Bank = raw.Bank
	l.Photos = raw.Photos
	l.PropertyType = raw.PropertyType
	l.SaleChannel = raw.SaleChannel
	l.Bedrooms = raw.Bedrooms
	l.Bathrooms = raw.Bathrooms
	l.Rooms = raw.Rooms
}

// applyTranslations refreshes translated fields lazily: only when the
// source text changed or no translation exists yet. Translation
// failures keep the previous value; the next cycle retries.
func (m *Merger) applyTranslations(ctx context.Context, l *model.Listing, prevTitle, prevDesc, prevLoc, prevContact, prevBank string) {
	l.TitleEN = m.translateField(ctx, l.Title, prevTitle, l.TitleEN)
	l.DescriptionEN = m.translateField(ctx, l.Description, prevDesc, l.DescriptionEN)
	l.LocationEN = m.translateField(ctx, l.Location, prevLoc, l.LocationEN)
	l.ContactEN = m.translateField(ctx, l.Contact, prevContact, l.ContactEN)
	l.BankEN = m.translateField(ctx, l.Bank, prevBank, l.BankEN)
}

func (m *Merger) translateField(ctx context.Context, source, prevSource, current string) string {
	if source == "" {
		return ""
	}
	if source == prevSource && current != "" {
		return current
	}
	translated, err := m.translator.Translate(ctx, source, m.targetLang)
	if err != nil {
		m.log.Warn("translation failed", "target", m.targetLang, "error", err)
		return current
	}
	return translated
}

func (m *Merger) applyScores(l *model.Listing) {
	scores := m.engine.Score(l)
	l.Strategy = scores.Strategy
	l.TotalRating = scores.TotalRating
	l.SafetyScore = scores.Safety
	l.TransportScore = scores.Transport
	l.FoodScore = scores.Food
	l.RentEstimate = scores.RentEstimate
	l.Scored = scores.Valid
}

func (m *Merger) lockFor(url string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return &m.locks[h.Sum32()%lockStripes]
}
