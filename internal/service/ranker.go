package service

import (
	"math"
	"sort"
	"strings"

	"carlton/internal/config"
	"carlton/internal/model"
	"carlton/internal/utils"
)

// Match reason constants
const (
	ReasonLocationMatch = "Location match"
	ReasonTypeMatch     = "Property type match"
	ReasonBudgetMatch   = "Price within 20% of budget"
	ReasonBudgetNear    = "Price within 50% of budget"
	ReasonAmenityMatch  = "Amenity match"
	ReasonGeneralMatch  = "General match"
)

// Weights are the additive scoring constants.
type Weights struct {
	Base       float64
	Location   float64
	Type       float64
	BudgetNear float64
	BudgetFar  float64
	Amenity    float64
}

// DefaultWeights returns the hand-tuned scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Base:       0.5,
		Location:   0.3,
		Type:       0.2,
		BudgetNear: 0.2,
		BudgetFar:  0.1,
		Amenity:    0.1,
	}
}

// WeightsFromConfig reads the ranking weights from configuration
func WeightsFromConfig(cfg config.RankingConfig) Weights {
	return Weights{
		Base:       cfg.Base,
		Location:   cfg.Location,
		Type:       cfg.Type,
		BudgetNear: cfg.BudgetNear,
		BudgetFar:  cfg.BudgetFar,
		Amenity:    cfg.Amenity,
	}
}

// Ranker handles ranking and scoring of listings against an analysis
type Ranker struct {
	weights Weights
}

// NewRanker creates a new ranker with specified weights
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Rank scores every listing and sorts them by score, highest first. Ties keep
// their input order. The input slice is not modified.
func (r *Ranker) Rank(listings []model.Listing, a *model.Analysis) []model.ScoredListing {
	results := make([]model.ScoredListing, 0, len(listings))
	for _, l := range listings {
		score, reasons := r.Score(l, a)
		results = append(results, model.ScoredListing{
			Listing:        l,
			RelevanceScore: score,
			MatchedReasons: reasons,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results
}

// Score computes the relevance of one listing, clamped to 1.0, along with
// the reasons that contributed to it.
func (r *Ranker) Score(l model.Listing, a *model.Analysis) (float64, []string) {
	score := r.weights.Base
	reasons := []string{}
	if a == nil {
		return math.Min(score, 1.0), append(reasons, ReasonGeneralMatch)
	}

	if a.Location != nil && containsFold(l.AreaEN, *a.Location) {
		score += r.weights.Location
		reasons = append(reasons, ReasonLocationMatch)
	}

	if a.PropertyType != nil && containsFold(l.TypeEN, *a.PropertyType) {
		score += r.weights.Type
		reasons = append(reasons, ReasonTypeMatch)
	}

	if a.Budget != nil && *a.Budget > 0 && l.TotalPrice > 0 {
		diff := math.Abs(float64(l.TotalPrice)-*a.Budget) / *a.Budget
		switch {
		case diff < 0.2:
			score += r.weights.BudgetNear
			reasons = append(reasons, ReasonBudgetMatch)
		case diff < 0.5:
			score += r.weights.BudgetFar
			reasons = append(reasons, ReasonBudgetNear)
		}
	}

	if len(a.Amenities) > 0 {
		facilities := strings.ToLower(l.FacilityNamesEN.String())
		for _, amenity := range a.Amenities {
			if amenity != "" && strings.Contains(facilities, strings.ToLower(amenity)) {
				score += r.weights.Amenity
				reasons = append(reasons, ReasonAmenityMatch)
				break
			}
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, ReasonGeneralMatch)
	}
	return math.Min(score, 1.0), reasons
}

// containsFold reports whether needle is a case-insensitive substring of a
// non-empty haystack.
func containsFold(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return utils.ContainsFold(haystack, needle)
}
