// Package feed talks to the BAM search APIs: feed-size probes and
// per-page listing fetches.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/sethvargo/go-retry"

	"bam_sniper/internal/config"
	"bam_sniper/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 * 1024 * 1024

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client fetches listing pages from the BAM APIs with bounded retry.
type Client struct {
	client     HTTPClient
	regularURL string
	auctionURL string
	pageSize   int
	maxRetries uint64
	backoff    retry.Backoff
	log        *slog.Logger
}

// NewClient creates a Client using cfg's endpoints and retry policy.
func NewClient(client HTTPClient, cfg *config.Config, log *slog.Logger) *Client {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		client:     client,
		regularURL: cfg.RegularAPIURL,
		auctionURL: cfg.AuctionAPIURL,
		pageSize:   cfg.PageSize,
		maxRetries: uint64(attempts - 1),
		backoff:    retry.NewExponential(cfg.RetryBackoff),
		log:        log,
	}
}

// searchResult is the shared shape of both BAM search responses.
// totalData arrives as a number or a numeric string depending on the
// endpoint, so it is coerced after decoding.
type searchResult struct {
	TotalData any              `json:"totalData"`
	Data      []map[string]any `json:"data"`
}

// Probe queries the current size of one feed/category. The returned
// snapshot carries totalData and the derived page count; CheckedAt is
// left for the storage layer to stamp.
func (c *Client) Probe(ctx context.Context, cat CategoryConfig) (*model.FeedSnapshot, error) {
	result, err := c.postPage(ctx, cat, 1)
	if err != nil {
		return nil, fmt.Errorf("probe %s/%s: %w", cat.FeedType, cat.Label, err)
	}

	total := int(floatVal(result.TotalData))
	if total <= 0 {
		total = len(result.Data)
	}
	pageCount := 0
	if total > 0 {
		pageCount = int(math.Ceil(float64(total) / float64(c.pageSize)))
	}

	return &model.FeedSnapshot{
		FeedType:     cat.FeedType,
		Category:     cat.Label,
		TotalRecords: total,
		PageCount:    pageCount,
	}, nil
}

// FetchPage retrieves and normalizes one page of listings.
func (c *Client) FetchPage(ctx context.Context, cat CategoryConfig, page int) ([]model.RawListing, error) {
	result, err := c.postPage(ctx, cat, page)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s page %d: %w", cat.FeedType, cat.Label, page, err)
	}

	listings := make([]model.RawListing, 0, len(result.Data))
	for _, item := range result.Data {
		if cat.FeedType == model.FeedAuction {
			listings = append(listings, normalizeAuction(item))
		} else {
			listings = append(listings, normalizeRegular(item, cat))
		}
	}
	return listings, nil
}

func (c *Client) postPage(ctx context.Context, cat CategoryConfig, page int) (*searchResult, error) {
	url := c.regularURL
	var payload any
	if cat.FeedType == model.FeedAuction {
		url = c.auctionURL
		payload = map[string]any{
			"pageNumber": page,
			"pageSize":   c.pageSize,
		}
	} else {
		assetTypes := cat.AssetTypes
		if assetTypes == nil {
			assetTypes = []string{}
		}
		payload = map[string]any{
			"assetTypes": assetTypes,
			"keyword":    nil,
			"provinces":  []string{},
			"districts":  []string{},
			"pageNumber": page,
			"pageSize":   c.pageSize,
			"orderBy":    "DEFAULT",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var result searchResult
	backoff := retry.WithMaxRetries(c.maxRetries, c.backoff)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			c.log.Warn("feed request failed, retrying", "category", cat.Label, "page", page, "error", err)
			return retry.RetryableError(fmt.Errorf("http post: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if retryableStatus(resp.StatusCode) {
				c.log.Warn("feed returned retryable status", "category", cat.Label, "page", page, "status", resp.StatusCode)
				return retry.RetryableError(err)
			}
			return err
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read body: %w", err))
		}
		result = searchResult{}
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
