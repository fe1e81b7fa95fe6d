package service

import (
	"context"
	"math/rand"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"carlton/internal/lexicon"
	"carlton/internal/metrics"
	"carlton/internal/model"
)

// benefitCount is how many lifestyle benefits the templated reply lists.
const benefitCount = 3

// Randomizer picks phrasing for redirect replies. IntN returns a value in [0, n).
type Randomizer interface {
	IntN(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomizer returns a goroutine-safe Randomizer. The same seed always
// yields the same sequence.
func NewRandomizer(seed int64) Randomizer {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeRandomizer seeds a Randomizer from the clock.
func NewTimeRandomizer() Randomizer {
	return NewRandomizer(time.Now().UnixNano())
}

func (r *lockedRand) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

// RedirectGenerator steers off-topic messages back to property search. It
// prefers generated text and degrades to a templated reply; it never fails.
type RedirectGenerator struct {
	lex       *lexicon.Lexicon
	generator TextGenerator
	timeout   time.Duration
	rnd       Randomizer
	templates map[string]*template.Template
	prompt    *template.Template
}

// NewRedirectGenerator creates a generator. generator may be nil; rnd
// defaults to a clock-seeded source.
func NewRedirectGenerator(lex *lexicon.Lexicon, generator TextGenerator, timeout time.Duration, rnd Randomizer) (*RedirectGenerator, error) {
	if rnd == nil {
		rnd = NewTimeRandomizer()
	}
	en, err := parseTemplate("redirect_en", lex.Redirect.Template.EN)
	if err != nil {
		return nil, err
	}
	ar, err := parseTemplate("redirect_ar", lex.Redirect.Template.AR)
	if err != nil {
		return nil, err
	}
	prompt, err := parseTemplate("redirect_prompt", lex.Redirect.Prompt)
	if err != nil {
		return nil, err
	}
	return &RedirectGenerator{
		lex:       lex,
		generator: generator,
		timeout:   timeout,
		rnd:       rnd,
		templates: map[string]*template.Template{lexicon.English: en, lexicon.Arabic: ar},
		prompt:    prompt,
	}, nil
}

type redirectView struct {
	Opener        string
	Transition    string
	Benefits      []string
	FeaturedName  string
	FeaturedBlurb string
	AreaNames     []string
	Expression    string
}

type redirectPrompt struct {
	Query        string
	AreaNames    []string
	LanguageName string
}

// Redirect builds the steer-back reply for query.
func (g *RedirectGenerator) Redirect(ctx context.Context, query, language string) *model.RedirectResult {
	lang := ResolveLanguage(language, query)
	result := &model.RedirectResult{
		SuggestedTopics: g.Topics(lang),
		Locations:       append([]string(nil), g.lex.Redirect.ServiceAreas...),
		Language:        lang,
	}

	if g.generator != nil {
		prompt := render(g.prompt, redirectPrompt{
			Query:        query,
			AreaNames:    g.areaNames(lexicon.English),
			LanguageName: languageName(lang),
		})
		text, err := generateOnce(ctx, g.generator, g.timeout, prompt)
		if err == nil {
			result.ResponseText = text
			result.Method = model.RedirectMethodGenerated
			metrics.RecordRedirect(result.Method)
			return result
		}
		log.Warn().Err(err).Msg("redirect generation failed, using template")
	}

	result.ResponseText = g.Fallback(lang)
	result.Method = model.RedirectMethodStructured
	metrics.RecordRedirect(result.Method)
	return result
}

// Fallback renders the templated redirect in lang. Draws from the
// Randomizer happen in a fixed order: opener, transition, featured area and,
// for Arabic, the closing expression.
func (g *RedirectGenerator) Fallback(lang string) string {
	if lang != lexicon.Arabic {
		lang = lexicon.English
	}
	r := g.lex.Redirect

	view := redirectView{
		Opener:     pick(g.rnd, r.Openers.In(lang)),
		Transition: pick(g.rnd, r.Transitions.In(lang)),
		AreaNames:  g.areaNames(lang),
	}

	benefits := r.Benefits.In(lang)
	if len(benefits) > benefitCount {
		benefits = benefits[:benefitCount]
	}
	view.Benefits = benefits

	featured := pick(g.rnd, r.ServiceAreas)
	view.FeaturedName = g.lex.AreaName(featured, lang)
	if area, ok := g.lex.Area(featured); ok && area.Blurb != nil {
		view.FeaturedBlurb = area.Blurb.In(lang)
	}

	if lang == lexicon.Arabic {
		view.Expression = pick(g.rnd, r.Expressions)
	}

	return render(g.templates[lang], view)
}

// Topics returns the suggested conversation topics in lang.
func (g *RedirectGenerator) Topics(lang string) []string {
	return append([]string(nil), g.lex.Topics.In(lang)...)
}

func (g *RedirectGenerator) areaNames(lang string) []string {
	names := make([]string, 0, len(g.lex.Redirect.ServiceAreas))
	for _, name := range g.lex.Redirect.ServiceAreas {
		names = append(names, g.lex.AreaName(name, lang))
	}
	return names
}

func pick(rnd Randomizer, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rnd.IntN(len(pool))]
}

func languageName(lang string) string {
	if lang == lexicon.Arabic {
		return "Arabic (Gulf dialect)"
	}
	return "English"
}
