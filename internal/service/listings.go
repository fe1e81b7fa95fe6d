package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"carlton/internal/model"
	"carlton/internal/utils"
)

// ListingSource supplies the current listing inventory.
type ListingSource interface {
	FetchListings(ctx context.Context) ([]model.Listing, error)
}

// SnapshotSearcher filters stored listings before they are loaded. Results
// may be a superset of the filter; callers still apply FilterListings.
type SnapshotSearcher interface {
	SearchListings(ctx context.Context, filter model.PropertyFilter) ([]model.Listing, error)
}

// ListingLookup loads a single stored listing.
type ListingLookup interface {
	GetListingByID(ctx context.Context, id string) (*model.Listing, error)
}

// ImageSource supplies image URLs for a listing.
type ImageSource interface {
	PropertyImages(ctx context.Context, propertyID string) ([]string, error)
}

// ListingQuery is the set of facets a listing must satisfy.
// Empty fields do not filter.
type ListingQuery struct {
	Location     string
	PropertyType string
	Purpose      string
	Budget       float64
}

// QueryFromAnalysis builds the filter for an analysis
func QueryFromAnalysis(a *model.Analysis) ListingQuery {
	var q ListingQuery
	if a == nil {
		return q
	}
	if a.Location != nil {
		q.Location = *a.Location
	}
	if a.PropertyType != nil {
		q.PropertyType = *a.PropertyType
	}
	if a.Purpose != nil {
		q.Purpose = *a.Purpose
	}
	if a.Budget != nil {
		q.Budget = *a.Budget
	}
	return q
}

// Filter is the equivalent stored-listing filter
func (q ListingQuery) Filter() model.PropertyFilter {
	return model.PropertyFilter{
		Location:     q.Location,
		PropertyType: q.PropertyType,
		Purpose:      q.Purpose,
		Budget:       q.Budget,
	}
}

// FilterListings returns the available listings matching q, in input order.
func FilterListings(listings []model.Listing, q ListingQuery) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if l.IsAvailable() && q.Matches(&l) {
			out = append(out, l)
		}
	}
	return out
}

// Matches reports whether l satisfies every facet set in q.
func (q ListingQuery) Matches(l *model.Listing) bool {
	if q.Location != "" {
		if !utils.ContainsFold(l.AreaEN, q.Location) && !strings.Contains(l.AreaAR, q.Location) &&
			!utils.ContainsFold(l.CityEN, q.Location) && !strings.Contains(l.CityAR, q.Location) {
			return false
		}
	}

	if q.PropertyType != "" {
		if !utils.ContainsFold(l.TypeEN, q.PropertyType) && !strings.Contains(l.TypeAR, q.PropertyType) {
			return false
		}
	}

	switch q.Purpose {
	case "rent":
		if !utils.ContainsFold(l.ForEN, "lease") && !strings.Contains(l.ForAR, "إيجار") {
			return false
		}
	case "buy":
		if !utils.ContainsFold(l.ForEN, "sale") && !strings.Contains(l.ForAR, "بيع") {
			return false
		}
	}

	if q.Budget > 0 && l.PriceFor(q.Purpose) > q.Budget {
		return false
	}
	return true
}

// Inventory reads listings from the upstream API and falls back to the last
// stored snapshot when the upstream is unreachable or not configured.
type Inventory struct {
	primary  ListingSource
	fallback ListingSource
}

// NewInventory creates an inventory. Either source may be nil.
func NewInventory(primary, fallback ListingSource) *Inventory {
	return &Inventory{primary: primary, fallback: fallback}
}

// FetchListings implements ListingSource. Missing data degrades to an empty
// inventory; only context cancellation is returned as an error.
func (i *Inventory) FetchListings(ctx context.Context) ([]model.Listing, error) {
	if listings, ok, err := i.fromPrimary(ctx); ok || err != nil {
		return listings, err
	}
	return i.fromFallback(ctx)
}

// Search returns the available listings matching q, in inventory order. On
// the snapshot path the filter runs in the store when it supports it.
func (i *Inventory) Search(ctx context.Context, q ListingQuery) ([]model.Listing, error) {
	if listings, ok, err := i.fromPrimary(ctx); ok || err != nil {
		return FilterListings(listings, q), err
	}

	searcher, ok := i.fallback.(SnapshotSearcher)
	if !ok {
		listings, err := i.fromFallback(ctx)
		return FilterListings(listings, q), err
	}

	listings, err := searcher.SearchListings(ctx, q.Filter())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn().Err(err).Msg("stored listings unavailable")
		return []model.Listing{}, nil
	}
	return FilterListings(listings, q), nil
}

// Get returns one available listing. A listing missing from the inventory is
// looked up in the store, which may hold it between syncs.
func (i *Inventory) Get(ctx context.Context, id string) (*model.Listing, error) {
	listings, err := i.FetchListings(ctx)
	if err != nil {
		return nil, err
	}
	for idx := range listings {
		if string(listings[idx].ID) == id {
			return &listings[idx], nil
		}
	}

	lookup, ok := i.fallback.(ListingLookup)
	if !ok {
		return nil, model.ErrListingNotFound
	}
	l, err := lookup.GetListingByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up listing %s: %w", id, err)
	}
	if !l.IsAvailable() {
		return nil, model.ErrListingNotFound
	}
	return l, nil
}

// fromPrimary reports ok when the upstream answered. err is only set for
// context cancellation.
func (i *Inventory) fromPrimary(ctx context.Context) ([]model.Listing, bool, error) {
	if i.primary == nil {
		return nil, false, nil
	}
	listings, err := i.primary.FetchListings(ctx)
	if err == nil {
		return listings, true, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, false, err
	}
	log.Warn().Err(err).Msg("upstream listings unavailable")
	return nil, false, nil
}

func (i *Inventory) fromFallback(ctx context.Context) ([]model.Listing, error) {
	if i.fallback == nil {
		return []model.Listing{}, nil
	}
	listings, err := i.fallback.FetchListings(ctx)
	if err == nil {
		return listings, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	log.Warn().Err(err).Msg("stored listings unavailable")
	return []model.Listing{}, nil
}
