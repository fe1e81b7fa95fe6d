package model

import "time"

// AnalyzeRequest asks for the facets of one query
type AnalyzeRequest struct {
	Query    string `json:"query" binding:"required"`
	Language string `json:"language"` // "en", "ar", "auto" or empty
}

// RankRequest scores caller-supplied listings against an analysis
type RankRequest struct {
	Listings []Listing `json:"listings" binding:"required"`
	Analysis Analysis  `json:"analysis"`
}

// RankResponse holds ranked listings
type RankResponse struct {
	Results []ScoredListing `json:"results"`
	Total   int             `json:"total"`
}

// RedirectRequest asks for a steer-back reply
type RedirectRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

// InsightRequest asks for a market insight
type InsightRequest struct {
	Query    string `json:"query" binding:"required"`
	Language string `json:"language"`
}

// InsightResponse pairs an insight with the analysis it was chosen from
type InsightResponse struct {
	Insight    string    `json:"insight"`
	Analysis   *Analysis `json:"analysis"`
	Confidence float64   `json:"confidence"`
}

// PropertyFilter narrows the listing inventory
type PropertyFilter struct {
	Location     string  `form:"location"`
	PropertyType string  `form:"type"`
	Purpose      string  `form:"purpose"`
	Budget       float64 `form:"budget"`
	Query        string  `form:"q"`
	Limit        int     `form:"limit"`
}

// PropertySearchResponse is returned by the listings endpoint
type PropertySearchResponse struct {
	Results  []ScoredListing `json:"results"`
	Total    int             `json:"total"`
	Analysis *Analysis       `json:"analysis,omitempty"`
	Took     int64           `json:"took_ms"`
}

// ChatAction is a quick-reply button press sent along with a message
type ChatAction struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ChatRequest is one user turn
type ChatRequest struct {
	SessionID string      `json:"sessionId"`
	Message   string      `json:"message" binding:"required"`
	Language  string      `json:"language"`
	Action    *ChatAction `json:"action,omitempty"`
}

// ActionButton is a quick reply offered to the user
type ActionButton struct {
	Text       string `json:"text"`
	Action     string `json:"action"`
	Value      string `json:"value,omitempty"`
	URL        string `json:"url,omitempty"`
	IsExternal bool   `json:"isExternal,omitempty"`
}

// PropertyCard is the chat presentation of a ranked listing
type PropertyCard struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	Size           string   `json:"size"`
	Bedrooms       int      `json:"bedrooms"`
	Bathrooms      int      `json:"bathrooms"`
	Type           string   `json:"type"`
	Features       []string `json:"features"`
	Description    string   `json:"description"`
	Images         []string `json:"images"`
	URL            string   `json:"url"`
	ContactName    string   `json:"contactName"`
	ContactPhone   string   `json:"contactPhone"`
	WhatsAppURL    string   `json:"whatsappUrl"`
	RelevanceScore float64  `json:"relevanceScore"`
}

// SearchCriteria echoes the facets a chat turn searched with
type SearchCriteria struct {
	Location     *string  `json:"location"`
	PropertyType *string  `json:"propertyType"`
	Budget       *float64 `json:"budget"`
	Purpose      *string  `json:"purpose"`
}

// Chat response types
const (
	ChatTypeConversation = "conversation"
	ChatTypeResults      = "property_results"
	ChatTypeRedirect     = "conversation_redirect"
	ChatTypeError        = "error"
)

// ChatResponse is the assistant's reply to one turn
type ChatResponse struct {
	SessionID         string          `json:"sessionId"`
	Message           string          `json:"message"`
	Language          string          `json:"language"`
	Type              string          `json:"type"`
	IsRealEstateQuery bool            `json:"isRealEstateQuery"`
	ActionButtons     []ActionButton  `json:"actionButtons"`
	Properties        []PropertyCard  `json:"properties"`
	SearchCriteria    *SearchCriteria `json:"searchCriteria,omitempty"`
	SuggestedTopics   []string        `json:"suggestedTopics,omitempty"`
	Locations         []string        `json:"locations,omitempty"`
	Insight           string          `json:"insight,omitempty"`
	Confidence        float64         `json:"confidence"`
	Took              int64           `json:"took_ms"`
}

// ShortlistRequest records interest in a listing
type ShortlistRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	ListingID string `json:"listingId" binding:"required"`
}

// ShortlistResponse confirms a shortlist entry
type ShortlistResponse struct {
	SessionID   string    `json:"sessionId"`
	Shortlist   []string  `json:"shortlist"`
	WhatsAppURL string    `json:"whatsappUrl,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecommendRequest asks for a recommendation over cards the caller already has
type RecommendRequest struct {
	Query      string         `json:"query" binding:"required"`
	Properties []PropertyCard `json:"properties"`
	Language   string         `json:"language"`
}

// RecommendResponse carries the recommendation text
type RecommendResponse struct {
	Recommendation string    `json:"recommendation"`
	Language       string    `json:"language"`
	AIEnhanced     bool      `json:"aiEnhanced"`
	Took           int64     `json:"took_ms"`
	Timestamp      time.Time `json:"timestamp"`
}
