package service

import (
	"regexp"
	"strconv"
	"strings"

	"carlton/internal/lexicon"
	"carlton/internal/model"
	"carlton/internal/utils"
)

// budgetPatterns are tried in order; the first match wins.
var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*ألف\s*(دينار|د\.ب)?`),
	regexp.MustCompile(`(?i)(\d+)k\s*(bhd|bd|dinar|دينار)?`),
	regexp.MustCompile(`(?i)(\d+)\s*(thousand|ألف)\s*(bhd|bd|dinar|دينار)?`),
	regexp.MustCompile(`(?i)(\d+)\s*(bhd|bd|dinar|دينار)`),
	regexp.MustCompile(`(?i)(\d+)\s*-\s*(\d+)\s*(bhd|bd|dinar|دينار|ألف)`),
}

// thousandMarkers multiply a matched amount by 1000.
var thousandMarkers = []string{"ألف", "k", "thousand"}

// FacetExtractor pulls structured search facets out of free text using
// ordered keyword tables. Every extractor is a pure function of its input.
type FacetExtractor struct {
	lex *lexicon.Lexicon
}

// NewFacetExtractor creates an extractor over lex
func NewFacetExtractor(lex *lexicon.Lexicon) *FacetExtractor {
	return &FacetExtractor{lex: lex}
}

// Parse runs every extractor over query and returns an Analysis holding the
// facets. Confidence and topic are left for the caller.
func (e *FacetExtractor) Parse(query, lang string) *model.Analysis {
	q := utils.NormalizeText(query)
	return &model.Analysis{
		PropertyType:  e.ExtractPropertyType(q, lang),
		Location:      e.ExtractLocation(q, lang),
		Purpose:       e.ExtractPurpose(q, lang),
		Budget:        e.ExtractBudget(q),
		Amenities:     e.ExtractAmenities(q, lang),
		Language:      lang,
		OriginalQuery: query,
	}
}

// ExtractPropertyType returns apartment, villa, townhouse, penthouse or
// commercial. Dialect terms are consulted after the language table.
func (e *FacetExtractor) ExtractPropertyType(query, lang string) *string {
	q := utils.NormalizeText(query)
	if key, ok := firstMatch(e.lex.PropertyTypes.For(lang), q); ok {
		return &key
	}
	if key, ok := firstMatch(e.lex.PropertyTypes.Dialect, q); ok {
		return &key
	}
	return nil
}

// ExtractLocation returns a canonical area name. Area tables are checked in
// lexicon order, then the alias layer, which always maps to a canonical area.
func (e *FacetExtractor) ExtractLocation(query, lang string) *string {
	q := utils.NormalizeText(query)
	for _, area := range e.lex.Areas {
		terms := area.EN
		if lang == lexicon.Arabic {
			terms = area.AR
		}
		if (lexicon.Entry{Terms: terms}).Matches(q) {
			name := area.Name
			return &name
		}
	}
	if key, ok := firstMatch(e.lex.AreaAliases, q); ok {
		return &key
	}
	return nil
}

// ExtractPurpose returns "rent" or "buy".
func (e *FacetExtractor) ExtractPurpose(query, lang string) *string {
	q := utils.NormalizeText(query)
	if key, ok := firstMatch(e.lex.Purposes.For(lang), q); ok {
		return &key
	}
	if key, ok := firstMatch(e.lex.Purposes.Dialect, q); ok {
		return &key
	}
	return nil
}

// ExtractBudget returns the first amount found, in BHD.
func (e *FacetExtractor) ExtractBudget(query string) *float64 {
	q := utils.NormalizeText(query)
	for _, re := range budgetPatterns {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		for _, marker := range thousandMarkers {
			if strings.Contains(m[0], marker) {
				amount *= 1000
				break
			}
		}
		return &amount
	}
	return nil
}

// ExtractAmenities returns every amenity mentioned, without duplicates, in
// the order first seen.
func (e *FacetExtractor) ExtractAmenities(query, lang string) []string {
	q := utils.NormalizeText(query)
	found := []string{}
	seen := map[string]bool{}
	for _, entries := range [][]lexicon.Entry{e.lex.Amenities.For(lang), e.lex.Amenities.Dialect} {
		for _, entry := range entries {
			if !seen[entry.Key] && entry.Matches(q) {
				seen[entry.Key] = true
				found = append(found, entry.Key)
			}
		}
	}
	return found
}

// IsPropertyQuery reports whether the message asks for listings even when no
// facet could be extracted ("looking for", "أبحث", ...).
func (e *FacetExtractor) IsPropertyQuery(query string) bool {
	return (lexicon.Entry{Terms: e.lex.PropertyQueryKeywords}).Matches(utils.NormalizeText(query))
}

func firstMatch(entries []lexicon.Entry, text string) (string, bool) {
	for _, entry := range entries {
		if entry.Matches(text) {
			return entry.Key, true
		}
	}
	return "", false
}
