package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlton/internal/model"
)

const seefQuery = "I want a 2 bedroom apartment in Seef under 100k BHD for rent"

func newTestAnalyzer(t *testing.T, gen TextGenerator) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testLexicon, gen, 50*time.Millisecond)
	require.NoError(t, err)
	return a
}

func TestAnalyze_Scenario(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	got := a.Analyze(context.Background(), seefQuery, "")
	assert.Equal(t, "apartment", deref(got.PropertyType))
	assert.Equal(t, "Seef", deref(got.Location))
	assert.Equal(t, "rent", deref(got.Purpose))
	require.NotNil(t, got.Budget)
	assert.Equal(t, 100000.0, *got.Budget)
	assert.Equal(t, 1.0, got.Confidence)
	assert.True(t, got.IsRealEstateQuery)
	assert.True(t, got.FallbackMode)
	assert.False(t, got.AIEnhanced)
	assert.Equal(t, seefQuery, got.OriginalQuery)
}

func TestParse_NeverCallsGenerator(t *testing.T) {
	gen := &fakeGenerator{text: `{"propertyType": "villa"}`}
	a := newTestAnalyzer(t, gen)

	got := a.Parse("  "+seefQuery+"  ", "")
	assert.Equal(t, "apartment", deref(got.PropertyType))
	assert.Equal(t, "Seef", deref(got.Location))
	assert.Equal(t, 1.0, got.Confidence)
	assert.True(t, got.IsRealEstateQuery)
	assert.False(t, got.AIEnhanced)
	assert.False(t, got.FallbackMode)
	assert.Equal(t, seefQuery, got.OriginalQuery)
	assert.Equal(t, 0, gen.calls())
}

func TestParse_KeywordsOnlyLoggedAtDebug(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	a := newTestAnalyzer(t, nil)

	var info bytes.Buffer
	log.Logger = zerolog.New(&info).Level(zerolog.InfoLevel)
	a.Parse("villa in Seef", "en")
	assert.NotContains(t, info.String(), "query analysed")

	var debug bytes.Buffer
	log.Logger = zerolog.New(&debug).Level(zerolog.DebugLevel)
	a.Parse("villa in Seef", "en")
	assert.Contains(t, debug.String(), "query analysed")
	assert.Contains(t, debug.String(), `"keywords":[`)
	assert.Contains(t, debug.String(), `"villa"`)
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	got := a.Analyze(context.Background(), "", "")
	assert.Nil(t, got.PropertyType)
	assert.Nil(t, got.Location)
	assert.Nil(t, got.Purpose)
	assert.Nil(t, got.Budget)
	assert.Empty(t, got.Amenities)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 0.5, got.Confidence)
	assert.False(t, got.IsRealEstateQuery)
}

func TestAnalyze_OffTopicSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{text: "should not be used"}
	a := newTestAnalyzer(t, gen)

	got := a.Analyze(context.Background(), "What's the weather like today?", "auto")
	assert.False(t, got.IsRealEstateQuery)
	assert.Equal(t, 0, gen.calls())
	assert.False(t, got.AIEnhanced)
}

func TestAnalyze_GeneratorHints(t *testing.T) {
	gen := &fakeGenerator{text: "Sure! ```json\n{\"propertyType\": \"apartment\", \"location\": \"Seef\", \"budget\": \"100,000\", \"requirements\": \"pool, gym\"}\n```"}
	a := newTestAnalyzer(t, gen)

	got := a.Analyze(context.Background(), seefQuery, "en")
	assert.True(t, got.AIEnhanced)
	assert.False(t, got.FallbackMode)
	assert.NotEmpty(t, got.AISuggestion)
	require.NotNil(t, got.AIHints)
	assert.Equal(t, "apartment", got.AIHints.PropertyType)
	assert.Equal(t, "Seef", got.AIHints.Location)
	require.NotNil(t, got.AIHints.Budget)
	assert.Equal(t, 100000.0, *got.AIHints.Budget)
	assert.Equal(t, []string{"pool", "gym"}, got.AIHints.Requirements)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], seefQuery)
}

func TestAnalyze_GeneratorFreeTextHasNoHints(t *testing.T) {
	a := newTestAnalyzer(t, &fakeGenerator{text: "A two bedroom flat in Seef sounds great."})

	got := a.Analyze(context.Background(), seefQuery, "en")
	assert.True(t, got.AIEnhanced)
	assert.Nil(t, got.AIHints)
}

func TestAnalyze_GeneratorFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("boom")}},
		{"timeout", &fakeGenerator{text: "late", delay: time.Second}},
		{"empty", &fakeGenerator{text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t, tt.gen)

			got := a.Analyze(context.Background(), seefQuery, "en")
			assert.True(t, got.FallbackMode)
			assert.False(t, got.AIEnhanced)
			assert.Empty(t, got.AISuggestion)
			assert.Equal(t, "Seef", deref(got.Location))
			assert.Equal(t, 1.0, got.Confidence)
		})
	}
}

func TestAnalyze_Language(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	assert.Equal(t, "ar", a.Analyze(context.Background(), "شقة في السيف", "en").Language)
	assert.Equal(t, "ar", a.Analyze(context.Background(), "villa", "ar").Language)
	assert.Equal(t, "en", a.Analyze(context.Background(), "villa", "auto").Language)
}

func TestCalculateConfidence(t *testing.T) {
	s := model.StringPtr

	tests := []struct {
		name string
		a    model.Analysis
		want float64
	}{
		{"none", model.Analysis{}, 0.5},
		{"type", model.Analysis{PropertyType: s("villa")}, 0.7},
		{"location", model.Analysis{Location: s("Seef")}, 0.7},
		{"purpose", model.Analysis{Purpose: s("rent")}, 0.6},
		{"type and location", model.Analysis{PropertyType: s("villa"), Location: s("Seef")}, 0.9},
		{"all", model.Analysis{PropertyType: s("villa"), Location: s("Seef"), Purpose: s("rent")}, 1.0},
		{"budget does not count", model.Analysis{Budget: model.Float64Ptr(1)}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateConfidence(&tt.a))
		})
	}
}

func TestGenerateOnce(t *testing.T) {
	ctx := context.Background()

	_, err := generateOnce(ctx, nil, time.Second, "p")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)

	_, err = generateOnce(ctx, &fakeGenerator{err: errors.New("boom")}, time.Second, "p")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)

	_, err = generateOnce(ctx, &fakeGenerator{text: "x", delay: time.Second}, 10*time.Millisecond, "p")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)

	text, err := generateOnce(ctx, &fakeGenerator{text: "  hi  "}, time.Second, "p")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}
