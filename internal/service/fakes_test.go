package service

import (
	"context"
	"sync"
	"time"

	"carlton/internal/lexicon"
	"carlton/internal/model"
)

var testLexicon = lexicon.MustDefault()

type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	return g.text, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// seqRandomizer returns the scripted values in order, wrapping around.
type seqRandomizer struct {
	values []int
	next   int
}

func (r *seqRandomizer) IntN(n int) int {
	if len(r.values) == 0 || n <= 0 {
		return 0
	}
	v := r.values[r.next%len(r.values)]
	r.next++
	return v % n
}

type fakeSource struct {
	listings []model.Listing
	err      error
	calls    int
}

func (s *fakeSource) FetchListings(context.Context) ([]model.Listing, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

type fakeImages struct{}

func (fakeImages) PropertyImages(_ context.Context, id string) ([]string, error) {
	return []string{"https://img.example/" + id + ".jpg"}, nil
}

func listing(id, area, typ, purpose string, price float64) model.Listing {
	return model.Listing{
		ID:          model.FlexString(id),
		AreaEN:      area,
		TypeEN:      typ,
		ForEN:       purpose,
		TotalPrice:  model.FlexFloat(price),
		StatusID:    "1",
		ShowWebsite: "1",
	}
}
