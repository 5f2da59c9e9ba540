// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"bam_sniper/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations. Snapshots
// and price history are append-only; listings are upserted by URL and
// never deleted, only marked stale.
type Storage interface {
	InsertSnapshot(ctx context.Context, s *model.FeedSnapshot) error
	LatestSnapshots(ctx context.Context) (map[model.FeedKey]*model.FeedSnapshot, error)

	GetListing(ctx context.Context, url string) (*model.Listing, error)
	InsertListing(ctx context.Context, l *model.Listing) error
	UpdateListing(ctx context.Context, l *model.Listing) error
	UpdateListingWithPriceChange(ctx context.Context, l *model.Listing, pc *model.PriceChange) error
	ListListings(ctx context.Context, feedType model.FeedType, category string) ([]model.Listing, error)
	MarkStale(ctx context.Context, feedType model.FeedType, category string, cutoff time.Time) (int64, error)

	AppendPriceChange(ctx context.Context, pc *model.PriceChange) error
	ListPriceChanges(ctx context.Context, url string) ([]model.PriceChange, error)

	Close() error
}
