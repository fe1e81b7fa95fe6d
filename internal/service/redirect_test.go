package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlton/internal/model"
)

func newTestRedirect(t *testing.T, gen TextGenerator, rnd Randomizer) *RedirectGenerator {
	t.Helper()
	g, err := NewRedirectGenerator(testLexicon, gen, 50*time.Millisecond, rnd)
	require.NoError(t, err)
	return g
}

func TestRedirect_WeatherQuery(t *testing.T) {
	g := newTestRedirect(t, nil, NewRandomizer(1))

	res := g.Redirect(context.Background(), "What's the weather like today?", "")
	assert.NotEmpty(t, res.ResponseText)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, model.RedirectMethodStructured, res.Method)
	assert.Equal(t, testLexicon.Redirect.ServiceAreas, res.Locations)
	assert.NotEmpty(t, res.SuggestedTopics)
	assert.Contains(t, res.ResponseText, "Juffair • Amwaj Islands • Seef")
}

func TestRedirect_SeededOutputIsDeterministic(t *testing.T) {
	a := newTestRedirect(t, nil, NewRandomizer(42))
	b := newTestRedirect(t, nil, NewRandomizer(42))

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Fallback("en"), b.Fallback("en"))
		assert.Equal(t, a.Fallback("ar"), b.Fallback("ar"))
	}
}

func TestFallback_English(t *testing.T) {
	// opener, transition, featured area
	g := newTestRedirect(t, nil, &seqRandomizer{values: []int{1, 2, 2}})
	r := testLexicon.Redirect

	text := g.Fallback("en")
	assert.True(t, strings.HasPrefix(text, r.Openers.EN[1]+" "+r.Transitions.EN[2]), text)

	seef, ok := testLexicon.Area("Seef")
	require.True(t, ok)
	assert.Contains(t, text, "Featured Location - Seef")
	assert.Contains(t, text, seef.Blurb.EN)
	for _, benefit := range r.Benefits.EN[:3] {
		assert.Contains(t, text, benefit)
	}
	assert.NotContains(t, text, r.Benefits.EN[3])
	assert.NotContains(t, text, "<no value>")
}

func TestFallback_Arabic(t *testing.T) {
	// opener, transition, featured area, expression
	g := newTestRedirect(t, nil, &seqRandomizer{values: []int{0, 1, 0, 3}})
	r := testLexicon.Redirect

	text := g.Fallback("ar")
	assert.True(t, strings.HasPrefix(text, r.Openers.AR[0]+" "+r.Transitions.AR[1]), text)
	assert.Contains(t, text, testLexicon.AreaName("Juffair", "ar"))
	assert.Contains(t, text, r.Expressions[3])
	assert.Equal(t, "ar", DetectLanguage(text))
}

func TestRedirect_ArabicQuery(t *testing.T) {
	g := newTestRedirect(t, nil, NewRandomizer(7))

	res := g.Redirect(context.Background(), "كيف الطقس اليوم؟", "en")
	assert.Equal(t, "ar", res.Language)
	assert.Equal(t, testLexicon.Topics.AR, res.SuggestedTopics)
	assert.Equal(t, testLexicon.Redirect.ServiceAreas, res.Locations)
}

func TestRedirect_PrefersGeneratedText(t *testing.T) {
	gen := &fakeGenerator{text: "Nice weather! Have you seen our villas in Saar?"}
	g := newTestRedirect(t, gen, NewRandomizer(1))

	res := g.Redirect(context.Background(), "What's the weather like today?", "en")
	assert.Equal(t, model.RedirectMethodGenerated, res.Method)
	assert.Equal(t, gen.text, res.ResponseText)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "What's the weather like today?")
	assert.Contains(t, gen.prompts[0], "Amwaj Islands")
	assert.Contains(t, gen.prompts[0], "English")
}

func TestRedirect_GeneratorFailureUsesTemplate(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: errors.New("503")}},
		{"timeout", &fakeGenerator{text: "too late", delay: time.Second}},
		{"unavailable", &fakeGenerator{err: ErrGeneratorUnavailable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestRedirect(t, tt.gen, NewRandomizer(3))
			want := newTestRedirect(t, nil, NewRandomizer(3)).Fallback("en")

			res := g.Redirect(context.Background(), "tell me a joke", "en")
			assert.Equal(t, model.RedirectMethodStructured, res.Method)
			assert.Equal(t, want, res.ResponseText)
			assert.Equal(t, 1, tt.gen.calls())
		})
	}
}

func TestRandomizer_Bounds(t *testing.T) {
	r := NewRandomizer(9)
	for i := 0; i < 100; i++ {
		v := r.IntN(4)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 4)
	}
	assert.Equal(t, 0, r.IntN(0))
}
