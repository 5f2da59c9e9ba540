// Package model defines the domain types used across the application.
package model

import "time"

// FeedType identifies which BAM API a listing or snapshot came from.
type FeedType string

// Supported feed types.
const (
	FeedRegular FeedType = "regular"
	FeedAuction FeedType = "auction"
)

// FeedKey identifies one feed/category partition.
type FeedKey struct {
	FeedType FeedType
	Category string
}

// FeedSnapshot records the size of one feed/category at probe time.
// Rows are append-only; within a partition they are ordered by CheckedAt.
type FeedSnapshot struct {
	ID           int64
	FeedType     FeedType
	Category     string
	TotalRecords int
	PageCount    int
	CheckedAt    time.Time
}

// Key returns the snapshot's feed/category partition key.
func (s *FeedSnapshot) Key() FeedKey {
	return FeedKey{FeedType: s.FeedType, Category: s.Category}
}

// Reason explains why a plan entry's pages were selected.
type Reason string

// Supported plan reasons.
const (
	ReasonNewPages    Reason = "NEW_PAGES"
	ReasonHeadRefresh Reason = "HEAD_REFRESH"
	ReasonTailRefresh Reason = "TAIL_REFRESH"
	ReasonFullRefresh Reason = "FULL_REFRESH"
)

// PlanEntry is the set of pages owed for one feed/category this cycle.
type PlanEntry struct {
	FeedType FeedType `json:"feed_type"`
	Category string   `json:"category"`
	Pages    []int    `json:"pages"`
	Reason   Reason   `json:"reason"`
}

// Key returns the entry's feed/category partition key.
func (e *PlanEntry) Key() FeedKey {
	return FeedKey{FeedType: e.FeedType, Category: e.Category}
}

// DeltaPlan is the durable coordination artifact between the snapshot
// and ingest runs. Its existence on disk signals "scrape owed"; its
// absence signals "fully applied or never generated".
type DeltaPlan struct {
	GeneratedAt time.Time   `json:"generated_at"`
	PageSize    int         `json:"page_size"`
	Entries     []PlanEntry `json:"entries"`
}

// ListingStatus is the lifecycle state of a canonical listing.
type ListingStatus string

// Listing states. A listing goes stale only when a full-coverage pass
// over its feed/category finishes without observing it; re-observation
// flips it back to active.
const (
	StatusActive ListingStatus = "active"
	StatusStale  ListingStatus = "stale"
)

// Listing is the canonical deduplicated record for one property.
// Identity is the external URL.
type Listing struct {
	URL      string
	Source   string
	FeedType FeedType
	Category string

	Title         string
	TitleEN       string
	Description   string
	DescriptionEN string
	Location      string
	LocationEN    string
	Contact       string
	ContactEN     string
	Bank          string
	BankEN        string

	Price   float64
	SizeSqm float64
	Lat     float64
	Lon     float64
	Photos  []string

	PropertyType string
	SaleChannel  string
	Bedrooms     *float64
	Bathrooms    *float64
	Rooms        *float64

	Strategy       string
	TotalRating    float64
	SafetyScore    int
	TransportScore int
	FoodScore      int
	RentEstimate   float64
	Scored         bool

	Status        ListingStatus
	LastSeenAt    time.Time
	LastUpdatedAt time.Time
	CreatedAt     time.Time
}

// PriceChange is one append-only price-history row. A row records the
// price that was valid until RecordedAt, written only when an incoming
// scrape changes the stored price.
type PriceChange struct {
	ID         int64
	ListingURL string
	Price      float64
	RecordedAt time.Time
}

// RawListing is a normalized record produced by the fetch layer before
// it is merged into the canonical store.
type RawListing struct {
	URL          string
	Source       string
	Title        string
	Description  string
	Price        float64
	SizeSqm      float64
	Lat          float64
	Lon          float64
	Location     string
	Contact      string
	Bank         string
	Photos       []string
	PropertyType string
	SaleChannel  string
	Bedrooms     *float64
	Bathrooms    *float64
	Rooms        *float64
}

// MergeReport summarizes one merge batch.
type MergeReport struct {
	Inserted     int
	Updated      int
	PriceChanges int
	Reactivated  int
	Dropped      int
}

// Combine adds another report's counts into this one.
func (r *MergeReport) Combine(other MergeReport) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.PriceChanges += other.PriceChanges
	r.Reactivated += other.Reactivated
	r.Dropped += other.Dropped
}

// EntrySummary reports the outcome of consuming one plan entry.
type EntrySummary struct {
	FeedType     FeedType
	Category     string
	Reason       Reason
	PagesPlanned int
	PagesFetched int
	Report       MergeReport
	MarkedStale  int64
	Failed       bool
	Err          string
}

// CycleSummary reports the outcome of one ingest run. Applied is true
// only when every entry succeeded and the plan artifact was deleted.
type CycleSummary struct {
	CycleID   string
	StartedAt time.Time
	Entries   []EntrySummary
	Applied   bool
}

// FailedEntries counts entries that exhausted retries this cycle.
func (s *CycleSummary) FailedEntries() int {
	n := 0
	for _, e := range s.Entries {
		if e.Failed {
			n++
		}
	}
	return n
}
