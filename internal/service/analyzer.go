package service

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"carlton/internal/lexicon"
	"carlton/internal/metrics"
	"carlton/internal/model"
	"carlton/internal/utils"
)

// Analyzer turns a free-text message into an Analysis. Facets always come
// from the lexicon; the optional generator only adds a suggestion on top.
type Analyzer struct {
	topics    *TopicClassifier
	extractor *FacetExtractor
	generator TextGenerator
	timeout   time.Duration
	prompt    *template.Template
}

// NewAnalyzer creates an analyzer. generator may be nil.
func NewAnalyzer(lex *lexicon.Lexicon, generator TextGenerator, timeout time.Duration) (*Analyzer, error) {
	prompt, err := parseTemplate("analysis_prompt", lex.AnalysisPrompt)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		topics:    NewTopicClassifier(lex),
		extractor: NewFacetExtractor(lex),
		generator: generator,
		timeout:   timeout,
		prompt:    prompt,
	}, nil
}

// Extractor exposes the facet extractor used by the analyzer
func (a *Analyzer) Extractor() *FacetExtractor {
	return a.extractor
}

// Topics exposes the topic classifier used by the analyzer
func (a *Analyzer) Topics() *TopicClassifier {
	return a.topics
}

// Parse runs the lexicon pass only: facets, confidence and topic. It never
// calls the generator, so it is safe on latency-sensitive paths.
func (a *Analyzer) Parse(query, language string) *model.Analysis {
	query = strings.TrimSpace(query)
	lang := ResolveLanguage(language, query)

	result := a.extractor.Parse(query, lang)
	result.Confidence = CalculateConfidence(result)
	result.IsRealEstateQuery = a.topics.IsRealEstateRelated(query)

	metrics.RecordAnalysis(lang, result.IsRealEstateQuery)
	if e := log.Debug(); e.Enabled() {
		e.Str("lang", lang).
			Bool("on_topic", result.IsRealEstateQuery).
			Float64("confidence", result.Confidence).
			Strs("keywords", a.topics.MatchedKeywords(query)).
			Msg("query analysed")
	}
	return result
}

// Analyze extracts facets from query and, for on-topic queries, asks the
// generator for a suggestion. It never fails: unknown facets are nil and
// generator problems only set FallbackMode.
func (a *Analyzer) Analyze(ctx context.Context, query, language string) *model.Analysis {
	result := a.Parse(query, language)
	query = result.OriginalQuery

	if !result.IsRealEstateQuery {
		return result
	}

	if a.generator == nil {
		result.FallbackMode = true
		return result
	}

	text, err := generateOnce(ctx, a.generator, a.timeout, render(a.prompt, struct{ Query string }{query}))
	if err != nil {
		log.Warn().Err(err).Msg("analysis suggestion unavailable, using lexicon only")
		result.FallbackMode = true
		return result
	}

	result.AIEnhanced = true
	result.AISuggestion = text
	result.AIHints = decodeHints(text)
	return result
}

// CalculateConfidence is 0.5 plus 0.2 for a property type, 0.2 for a
// location and 0.1 for a purpose, capped at 1.0.
func CalculateConfidence(a *model.Analysis) float64 {
	tenths := 5
	if a.PropertyType != nil {
		tenths += 2
	}
	if a.Location != nil {
		tenths += 2
	}
	if a.Purpose != nil {
		tenths++
	}
	if tenths > 10 {
		tenths = 10
	}
	return float64(tenths) / 10
}

// rawHints tolerates the loose types models tend to emit.
type rawHints struct {
	PropertyType string           `json:"propertyType"`
	Location     string           `json:"location"`
	Purpose      string           `json:"purpose"`
	Budget       model.FlexFloat  `json:"budget"`
	Requirements model.StringList `json:"requirements"`
	Note         string           `json:"note"`
}

func decodeHints(text string) *model.AIHints {
	var raw rawHints
	if err := utils.DecodeLooseJSON(text, &raw); err != nil {
		return nil
	}
	hints := &model.AIHints{
		PropertyType: raw.PropertyType,
		Location:     raw.Location,
		Purpose:      raw.Purpose,
		Requirements: raw.Requirements,
		Note:         raw.Note,
	}
	if raw.Budget > 0 {
		hints.Budget = model.Float64Ptr(float64(raw.Budget))
	}
	if hints.PropertyType == "" && hints.Location == "" && hints.Purpose == "" &&
		hints.Budget == nil && len(hints.Requirements) == 0 && hints.Note == "" {
		return nil
	}
	return hints
}
