package model

import "time"

// Turn is one exchange in a chat session.
type Turn struct {
	User      string          `json:"user"`
	Assistant string          `json:"assistant"`
	Language  string          `json:"language"`
	Criteria  *SearchCriteria `json:"searchCriteria,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	LatencyMS int64           `json:"latencyMs"`
}

// Session is the per-visitor conversation state.
type Session struct {
	ID        string    `json:"id"`
	History   []Turn    `json:"history"`
	Shortlist []string  `json:"shortlist"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddTurn appends a turn and keeps at most max turns.
func (s *Session) AddTurn(t Turn, max int) {
	s.History = append(s.History, t)
	if max > 0 && len(s.History) > max {
		s.History = append([]Turn(nil), s.History[len(s.History)-max:]...)
	}
	s.UpdatedAt = t.Timestamp
}

// AddToShortlist records a listing once.
func (s *Session) AddToShortlist(listingID string) {
	for _, id := range s.Shortlist {
		if id == listingID {
			return
		}
	}
	s.Shortlist = append(s.Shortlist, listingID)
}

// SessionStatus summarises a session for the status endpoint.
type SessionStatus struct {
	SessionID      string    `json:"sessionId"`
	Turns          int       `json:"turns"`
	Shortlist      []string  `json:"shortlist"`
	Language       string    `json:"language"`
	TotalLatencyMS int64     `json:"totalProcessTime"`
	AvgLatencyMS   int64     `json:"averageLatency"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Status computes the session summary.
func (s *Session) Status() SessionStatus {
	var total int64
	for _, t := range s.History {
		total += t.LatencyMS
	}
	var avg int64
	if len(s.History) > 0 {
		avg = total / int64(len(s.History))
	}
	return SessionStatus{
		SessionID:      s.ID,
		Turns:          len(s.History),
		Shortlist:      s.Shortlist,
		Language:       s.Language,
		TotalLatencyMS: total,
		AvgLatencyMS:   avg,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// ChatLog is the persisted record of one chat turn.
type ChatLog struct {
	SessionID    string    `json:"sessionId" db:"session_id"`
	Query        string    `json:"query" db:"query"`
	Language     string    `json:"language" db:"language"`
	Analysis     *Analysis `json:"analysis" db:"-"`
	ResponseType string    `json:"responseType" db:"response_type"`
	ResultCount  int       `json:"resultCount" db:"result_count"`
	ListingIDs   []string  `json:"listingIds" db:"-"`
	LatencyMS    int64     `json:"latencyMs" db:"latency_ms"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
