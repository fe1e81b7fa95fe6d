package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carlton/internal/cache"
	"carlton/internal/model"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "session:"

// SessionStore keeps chat sessions in a TTL cache. Every save refreshes the TTL.
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionStore creates a session store over c
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl, now: time.Now}
}

// Get loads a session.
func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	var sess model.Session
	if err := cache.GetJSON(ctx, s.cache, sessionKeyPrefix+id, &sess); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// Resolve loads the session for id, starting a fresh one when id is empty,
// unknown or expired. A fresh session keeps a caller-supplied id.
func (s *SessionStore) Resolve(ctx context.Context, id, lang string) (*model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()
	return &model.Session{
		ID:        id,
		History:   []model.Turn{},
		Shortlist: []string{},
		Language:  lang,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Save stores sess and refreshes its expiry.
func (s *SessionStore) Save(ctx context.Context, sess *model.Session) error {
	if err := cache.SetJSON(ctx, s.cache, sessionKeyPrefix+sess.ID, sess, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
