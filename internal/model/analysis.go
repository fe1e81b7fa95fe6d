package model

// Analysis is the structured reading of one free-text property query.
// Nil facets mean "not found", never an error.
type Analysis struct {
	PropertyType      *string  `json:"propertyType"`
	Location          *string  `json:"location"`
	Purpose           *string  `json:"purpose"`
	Budget            *float64 `json:"budget"`
	Amenities         []string `json:"amenities"`
	Language          string   `json:"language"`
	Confidence        float64  `json:"confidence"`
	IsRealEstateQuery bool     `json:"isRealEstateQuery"`
	OriginalQuery     string   `json:"originalQuery,omitempty"`

	// Set when the optional text generator was consulted.
	AIEnhanced   bool     `json:"aiEnhanced"`
	FallbackMode bool     `json:"fallbackMode,omitempty"`
	AISuggestion string   `json:"aiSuggestion,omitempty"`
	AIHints      *AIHints `json:"aiHints,omitempty"`
}

// AIHints is whatever structured data could be decoded from a generated
// suggestion. It is informational only; facets always come from the lexicon.
type AIHints struct {
	PropertyType string   `json:"propertyType,omitempty"`
	Location     string   `json:"location,omitempty"`
	Purpose      string   `json:"purpose,omitempty"`
	Budget       *float64 `json:"budget,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// FacetCount returns how many single-valued facets were found.
func (a *Analysis) FacetCount() int {
	n := 0
	for _, ok := range []bool{a.PropertyType != nil, a.Location != nil, a.Purpose != nil, a.Budget != nil} {
		if ok {
			n++
		}
	}
	return n
}

// ScoredListing is a listing with its relevance to an Analysis.
type ScoredListing struct {
	Listing
	RelevanceScore float64  `json:"relevanceScore"`
	MatchedReasons []string `json:"matchedReasons"`
}

// RedirectResult steers an off-topic conversation back to property search.
type RedirectResult struct {
	ResponseText    string   `json:"responseText"`
	SuggestedTopics []string `json:"suggestedTopics"`
	Locations       []string `json:"locations"`
	Language        string   `json:"language"`
	Method          string   `json:"method"`
}

// Redirect methods.
const (
	RedirectMethodGenerated  = "ai_redirect"
	RedirectMethodStructured = "structured_redirect"
)

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
