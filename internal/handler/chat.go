package handler

import (
	"errors"
	"net/http"
	"time"

	"carlton/internal/model"
	"carlton/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat, shortlist, recommendation and session requests
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// failures inside a turn come back as an apology, not an HTTP error
	c.JSON(http.StatusOK, h.chat.ProcessMessage(c.Request.Context(), &req))
}

// Shortlist handles POST /api/v1/shortlist
func (h *ChatHandler) Shortlist(c *gin.Context) {
	var req model.ShortlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.chat.Shortlist(c.Request.Context(), req.SessionID, req.ListingID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update shortlist: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Recommend handles POST /api/v1/recommend
func (h *ChatHandler) Recommend(c *gin.Context) {
	var req model.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	start := time.Now()
	lang := service.ResolveLanguage(req.Language, req.Query)
	text, generated := h.chat.Recommend(c.Request.Context(), req.Query, req.Properties, lang)

	c.JSON(http.StatusOK, model.RecommendResponse{
		Recommendation: text,
		Language:       lang,
		AIEnhanced:     generated,
		Took:           time.Since(start).Milliseconds(),
		Timestamp:      start.UTC(),
	})
}

// Session handles GET /api/v1/session/:id
func (h *ChatHandler) Session(c *gin.Context) {
	status, err := h.chat.SessionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
