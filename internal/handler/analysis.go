package handler

import (
	"net/http"

	"carlton/internal/lexicon"
	"carlton/internal/model"
	"carlton/internal/service"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler exposes the query engine: analysis, ranking, redirects and
// market insights.
type AnalysisHandler struct {
	lexicon  *lexicon.Lexicon
	analyzer *service.Analyzer
	ranker   *service.Ranker
	redirect *service.RedirectGenerator
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(lex *lexicon.Lexicon, analyzer *service.Analyzer, ranker *service.Ranker, redirect *service.RedirectGenerator) *AnalysisHandler {
	return &AnalysisHandler{
		lexicon:  lex,
		analyzer: analyzer,
		ranker:   ranker,
		redirect: redirect,
	}
}

// Analyze handles POST /api/v1/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req model.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.analyzer.Analyze(c.Request.Context(), req.Query, req.Language))
}

// Rank handles POST /api/v1/rank
func (h *AnalysisHandler) Rank(c *gin.Context) {
	var req model.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	results := h.ranker.Rank(req.Listings, &req.Analysis)
	c.JSON(http.StatusOK, model.RankResponse{
		Results: results,
		Total:   len(results),
	})
}

// Redirect handles POST /api/v1/redirect
func (h *AnalysisHandler) Redirect(c *gin.Context) {
	var req model.RedirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	lang := service.ResolveLanguage(req.Language, req.Query)
	c.JSON(http.StatusOK, h.redirect.Redirect(c.Request.Context(), req.Query, lang))
}

// Insights handles POST /api/v1/insights
func (h *AnalysisHandler) Insights(c *gin.Context) {
	var req model.InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	analysis := h.analyzer.Analyze(c.Request.Context(), req.Query, req.Language)
	location := ""
	if analysis.Location != nil {
		location = *analysis.Location
	}

	c.JSON(http.StatusOK, model.InsightResponse{
		Insight:    h.lexicon.Insight(location, analysis.Language),
		Analysis:   analysis,
		Confidence: analysis.Confidence,
	})
}
