package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"bam_sniper/internal/model"
	"bam_sniper/migrations"
)

// timeLayout keeps a fixed-width fractional second so stored
// timestamps compare correctly as strings (MarkStale relies on that).
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const listingColumns = `url, source, feed_type, category,
	 title, title_en, description, description_en,
	 location, location_en, contact, contact_en, bank, bank_en,
	 price, size_sqm, lat, lon, photos,
	 property_type, sale_channel, bedrooms, bathrooms, rooms,
	 strategy, total_rating, safety_score, transport_score, food_score, rent_estimate, scored,
	 status, last_seen_at, last_updated_at, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// execer is the subset of *sql.DB and *sql.Tx the write helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// InsertSnapshot appends a probe result and populates its ID. A zero
// CheckedAt is stamped with the current time.
func (s *SQLite) InsertSnapshot(ctx context.Context, snap *model.FeedSnapshot) error {
	if snap.CheckedAt.IsZero() {
		snap.CheckedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_snapshots (feed_type, category, total_records, page_count, checked_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(snap.FeedType), snap.Category, snap.TotalRecords, snap.PageCount,
		snap.CheckedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	snap.ID = id
	return nil
}

// LatestSnapshots returns the most recent snapshot per feed/category.
func (s *SQLite) LatestSnapshots(ctx context.Context) (map[model.FeedKey]*model.FeedSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feed_type, category, total_records, page_count, checked_at FROM (
		     SELECT *,
		            ROW_NUMBER() OVER (PARTITION BY feed_type, category ORDER BY checked_at DESC, id DESC) AS rk
		     FROM feed_snapshots
		 ) WHERE rk = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	latest := make(map[model.FeedKey]*model.FeedSnapshot)
	for rows.Next() {
		var snap model.FeedSnapshot
		var feedType, checked string
		if err := rows.Scan(&snap.ID, &feedType, &snap.Category, &snap.TotalRecords, &snap.PageCount, &checked); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.FeedType = model.FeedType(feedType)
		snap.CheckedAt, _ = time.Parse(timeLayout, checked)
		latest[snap.Key()] = &snap
	}
	return latest, rows.Err()
}

// GetListing returns the canonical listing for a URL, or ErrNotFound.
func (s *SQLite) GetListing(ctx context.Context, url string) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE url = ?`, url,
	)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// InsertListing creates a new canonical listing.
func (s *SQLite) InsertListing(ctx context.Context, l *model.Listing) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listingArgs(l)...,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// UpdateListing persists changes to an existing listing.
func (s *SQLite) UpdateListing(ctx context.Context, l *model.Listing) error {
	return updateListing(ctx, s.db, l)
}

// UpdateListingWithPriceChange persists a listing update together with
// its price-history row in one transaction. A partial write would leave
// a history row for a price the listing still reports, so the two
// either both land or neither does.
func (s *SQLite) UpdateListingWithPriceChange(ctx context.Context, l *model.Listing, pc *model.PriceChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price change tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateListing(ctx, tx, l); err != nil {
		return err
	}
	if err := appendPriceChange(ctx, tx, pc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price change tx: %w", err)
	}
	return nil
}

func updateListing(ctx context.Context, db execer, l *model.Listing) error {
	args := listingArgs(l)
	// Shift the URL from the first column position to the WHERE clause.
	args = append(args[1:], args[0])
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET
		 source = ?, feed_type = ?, category = ?,
		 title = ?, title_en = ?, description = ?, description_en = ?,
		 location = ?, location_en = ?, contact = ?, contact_en = ?, bank = ?, bank_en = ?,
		 price = ?, size_sqm = ?, lat = ?, lon = ?, photos = ?,
		 property_type = ?, sale_channel = ?, bedrooms = ?, bathrooms = ?, rooms = ?,
		 strategy = ?, total_rating = ?, safety_score = ?, transport_score = ?, food_score = ?, rent_estimate = ?, scored = ?,
		 status = ?, last_seen_at = ?, last_updated_at = ?, created_at = ?
		 WHERE url = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

// ListListings returns all listings for a feed/category ordered by URL.
func (s *SQLite) ListListings(ctx context.Context, feedType model.FeedType, category string) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE feed_type = ? AND category = ? ORDER BY url`,
		string(feedType), category,
	)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// MarkStale flips active listings not seen since cutoff to stale and
// returns how many rows changed.
func (s *SQLite) MarkStale(ctx context.Context, feedType model.FeedType, category string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET status = ?
		 WHERE feed_type = ? AND category = ? AND status = ? AND last_seen_at < ?`,
		string(model.StatusStale), string(feedType), category, string(model.StatusActive),
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AppendPriceChange writes one price-history row and populates its ID.
func (s *SQLite) AppendPriceChange(ctx context.Context, pc *model.PriceChange) error {
	return appendPriceChange(ctx, s.db, pc)
}

func appendPriceChange(ctx context.Context, db execer, pc *model.PriceChange) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO price_history (listing_url, price, recorded_at) VALUES (?, ?, ?)`,
		pc.ListingURL, pc.Price, pc.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append price change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	pc.ID = id
	return nil
}

// ListPriceChanges returns price history for a listing, oldest first.
func (s *SQLite) ListPriceChanges(ctx context.Context, url string) ([]model.PriceChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_url, price, recorded_at FROM price_history
		 WHERE listing_url = ? ORDER BY recorded_at, id`, url,
	)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []model.PriceChange
	for rows.Next() {
		var pc model.PriceChange
		var recorded string
		if err := rows.Scan(&pc.ID, &pc.ListingURL, &pc.Price, &recorded); err != nil {
			return nil, fmt.Errorf("scan price change: %w", err)
		}
		pc.RecordedAt, _ = time.Parse(timeLayout, recorded)
		changes = append(changes, pc)
	}
	return changes, rows.Err()
}

func listingArgs(l *model.Listing) []any {
	return []any{
		l.URL, l.Source, string(l.FeedType), l.Category,
		l.Title, l.TitleEN, l.Description, l.DescriptionEN,
		l.Location, l.LocationEN, l.Contact, l.ContactEN, l.Bank, l.BankEN,
		l.Price, l.SizeSqm, l.Lat, l.Lon, strings.Join(l.Photos, ","),
		l.PropertyType, l.SaleChannel, l.Bedrooms, l.Bathrooms, l.Rooms,
		l.Strategy, l.TotalRating, l.SafetyScore, l.TransportScore, l.FoodScore, l.RentEstimate, boolToInt(l.Scored),
		string(l.Status), formatTime(l.LastSeenAt), formatTime(l.LastUpdatedAt), formatTime(l.CreatedAt),
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var feedType, status, photos string
	var scored int
	var bedrooms, bathrooms, rooms sql.NullFloat64
	var lastSeen, lastUpdated, created sql.NullString
	err := row.Scan(
		&l.URL, &l.Source, &feedType, &l.Category,
		&l.Title, &l.TitleEN, &l.Description, &l.DescriptionEN,
		&l.Location, &l.LocationEN, &l.Contact, &l.ContactEN, &l.Bank, &l.BankEN,
		&l.Price, &l.SizeSqm, &l.Lat, &l.Lon, &photos,
		&l.PropertyType, &l.SaleChannel, &bedrooms, &bathrooms, &rooms,
		&l.Strategy, &l.TotalRating, &l.SafetyScore, &l.TransportScore, &l.FoodScore, &l.RentEstimate, &scored,
		&status, &lastSeen, &lastUpdated, &created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	l.FeedType = model.FeedType(feedType)
	l.Status = model.ListingStatus(status)
	l.Scored = scored == 1
	if photos != "" {
		l.Photos = strings.Split(photos, ",")
	}
	if bedrooms.Valid {
		l.Bedrooms = &bedrooms.Float64
	}
	if bathrooms.Valid {
		l.Bathrooms = &bathrooms.Float64
	}
	if rooms.Valid {
		l.Rooms = &rooms.Float64
	}
	l.LastSeenAt = parseTime(lastSeen)
	l.LastUpdatedAt = parseTime(lastUpdated)
	l.CreatedAt = parseTime(created)
	return &l, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, v.String)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
