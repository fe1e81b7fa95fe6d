// Package carlton is the client for the Carlton listings API (wide_api).
package carlton

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"carlton/internal/cache"
	"carlton/internal/config"
	"carlton/internal/metrics"
	"carlton/internal/model"
)

// ErrNotConfigured is returned when no usable API key is set.
var ErrNotConfigured = errors.New("carlton api key not configured")

const (
	listingsCacheKey    = "carlton:listings"
	attachmentsCacheKey = "carlton:attachments"
	userAgent           = "Carlton-Chatbot/1.0"
	maxResponseBytes    = 64 << 20
)

// Client fetches listings and images from the Carlton API. Responses are kept
// in the injected cache so repeated chat turns do not hit the upstream.
type Client struct {
	config     config.CarltonConfig
	httpClient *http.Client
	cache      cache.Cache
}

// NewClient creates a client. c must not be nil.
func NewClient(cfg config.CarltonConfig, c cache.Cache) *Client {
	return &Client{
		config: cfg,
		cache:  c,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// FetchListings returns every active listing shown on the website.
func (c *Client) FetchListings(ctx context.Context) ([]model.Listing, error) {
	if !c.config.Enabled {
		return nil, ErrNotConfigured
	}

	var cached []model.Listing
	if err := cache.GetJSON(ctx, c.cache, listingsCacheKey, &cached); err == nil {
		metrics.RecordUpstreamFetch("listings", "cache")
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Msg("listings cache read failed")
	}

	start := time.Now()
	var all []model.Listing
	for page := 1; page <= c.maxPages(); page++ {
		batch, err := c.fetchPage(ctx, page)
		if err != nil {
			metrics.RecordUpstreamFetch("listings", "error")
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < c.config.PerPage {
			break
		}
	}

	available := make([]model.Listing, 0, len(all))
	for _, l := range all {
		if l.IsAvailable() {
			available = append(available, l)
		}
	}

	metrics.RecordUpstreamFetch("listings", "ok")
	log.Info().
		Int("fetched", len(all)).
		Int("available", len(available)).
		Dur("took", time.Since(start)).
		Msg("fetched carlton listings")

	if err := cache.SetJSON(ctx, c.cache, listingsCacheKey, available, c.config.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("listings cache write failed")
	}
	return available, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]model.Listing, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.config.PerPage))
	params.Set("status_id", "1")
	params.Set("show_website", "1")

	body, err := c.get(ctx, "/properties/listings?"+params.Encode(), "Bearer "+c.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings page %d: %w", page, err)
	}

	listings, err := decodeList[model.Listing](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode listings page %d: %w", page, err)
	}
	return listings, nil
}

// PropertyImages returns the visible images of a listing, default image first
// then by sort order. A placeholder is returned when nothing is available;
// upstream failures are logged, not returned.
func (c *Client) PropertyImages(ctx context.Context, propertyID string) ([]string, error) {
	if propertyID == "" {
		return []string{}, nil
	}
	placeholder := []string{PlaceholderImage(propertyID)}
	if !c.config.Enabled {
		return placeholder, nil
	}

	attachments, err := c.attachments(ctx)
	if err != nil {
		log.Warn().Err(err).Str("property_id", propertyID).Msg("failed to fetch attachments")
		return placeholder, nil
	}

	images := SelectImages(attachments, propertyID)
	if len(images) == 0 {
		return placeholder, nil
	}
	return images, nil
}

func (c *Client) attachments(ctx context.Context) ([]model.Attachment, error) {
	var cached []model.Attachment
	if err := cache.GetJSON(ctx, c.cache, attachmentsCacheKey, &cached); err == nil {
		metrics.RecordUpstreamFetch("attachments", "cache")
		return cached, nil
	}

	// this endpoint takes the raw key, without the Bearer scheme
	body, err := c.get(ctx, "/property_attachments/all_attachments", c.config.APIKey)
	if err != nil {
		metrics.RecordUpstreamFetch("attachments", "error")
		return nil, err
	}
	attachments, err := decodeList[model.Attachment](body)
	if err != nil {
		metrics.RecordUpstreamFetch("attachments", "error")
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	metrics.RecordUpstreamFetch("attachments", "ok")

	if err := cache.SetJSON(ctx, c.cache, attachmentsCacheKey, attachments, c.config.ImagesTTL); err != nil {
		log.Warn().Err(err).Msg("attachments cache write failed")
	}
	return attachments, nil
}

// SelectImages picks the visible image URLs for one property.
func SelectImages(attachments []model.Attachment, propertyID string) []string {
	matched := make([]model.Attachment, 0)
	for _, a := range attachments {
		if string(a.PropertyID) == propertyID && a.Visible == "1" && a.FileURL != "" {
			matched = append(matched, a)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		di, dj := matched[i].IsDefault == "1", matched[j].IsDefault == "1"
		if di != dj {
			return di
		}
		return matched[i].Sort < matched[j].Sort
	})

	urls := make([]string, 0, len(matched))
	for _, a := range matched {
		urls = append(urls, a.FileURL)
	}
	return urls
}

// PlaceholderImage is shown for listings without photos.
func PlaceholderImage(propertyID string) string {
	return "https://via.placeholder.com/400x300?text=Property+" + url.QueryEscape(propertyID)
}

func (c *Client) get(ctx context.Context, path, authorization string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carlton api error (status %d): %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func (c *Client) maxPages() int {
	if c.config.MaxPages <= 0 {
		return 1
	}
	return c.config.MaxPages
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array in "data".
func decodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	var items []T
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
