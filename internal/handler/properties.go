package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"carlton/internal/model"
	"carlton/internal/service"

	"github.com/gin-gonic/gin"
)

// PropertyHandler serves the listing inventory, filtered and ranked
type PropertyHandler struct {
	inventory    *service.Inventory
	analyzer     *service.Analyzer
	ranker       *service.Ranker
	defaultLimit int
	maxLimit     int
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(inventory *service.Inventory, analyzer *service.Analyzer, ranker *service.Ranker, defaultLimit, maxLimit int) *PropertyHandler {
	return &PropertyHandler{
		inventory:    inventory,
		analyzer:     analyzer,
		ranker:       ranker,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Search handles GET /api/v1/properties
func (h *PropertyHandler) Search(c *gin.Context) {
	var filter model.PropertyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.search(c.Request.Context(), filter, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchStream handles GET /api/v1/properties/stream - SSE streaming search
func (h *PropertyHandler) SearchStream(c *gin.Context) {
	var filter model.PropertyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"query": filter.Query})
	flusher.Flush()

	response, err := h.search(c.Request.Context(), filter, func(event string, data any) {
		sendSSE(c, event, data)
		flusher.Flush()
	})
	if err != nil {
		sendSSE(c, "error", map[string]any{"error": err.Error()})
		flusher.Flush()
		return
	}

	sendSSE(c, "results", response)
	sendSSE(c, "done", nil)
	flusher.Flush()
}

// GetListing handles GET /api/v1/properties/:id
func (h *PropertyHandler) GetListing(c *gin.Context) {
	listing, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, model.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// search merges the free-text analysis with the explicit filter; explicit
// query parameters win over extracted facets.
func (h *PropertyHandler) search(ctx context.Context, filter model.PropertyFilter, emit func(string, any)) (*model.PropertySearchResponse, error) {
	start := time.Now()

	analysis := &model.Analysis{}
	if filter.Query != "" {
		analysis = h.analyzer.Parse(filter.Query, "")
	}
	if filter.Location != "" {
		analysis.Location = model.StringPtr(filter.Location)
	}
	if filter.PropertyType != "" {
		analysis.PropertyType = model.StringPtr(filter.PropertyType)
	}
	if filter.Purpose != "" {
		analysis.Purpose = model.StringPtr(filter.Purpose)
	}
	if filter.Budget > 0 {
		analysis.Budget = model.Float64Ptr(filter.Budget)
	}
	if emit != nil {
		emit("analysis", analysis)
	}

	matched, err := h.inventory.Search(ctx, service.QueryFromAnalysis(analysis))
	if err != nil {
		return nil, err
	}

	results := h.ranker.Rank(matched, analysis)
	total := len(results)
	if limit := h.limit(filter.Limit); len(results) > limit {
		results = results[:limit]
	}

	resp := &model.PropertySearchResponse{
		Results: results,
		Total:   total,
		Took:    time.Since(start).Milliseconds(),
	}
	if filter.Query != "" {
		resp.Analysis = analysis
	}
	return resp, nil
}

func (h *PropertyHandler) limit(requested int) int {
	if requested <= 0 {
		return h.defaultLimit
	}
	if requested > h.maxLimit {
		return h.maxLimit
	}
	return requested
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data == nil {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
		return
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
