package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/service"
)

// ArticleHandler handles ingestion, review and moderation endpoints
type ArticleHandler struct {
	services     *service.Services
	maxBodyBytes int64
	log          zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, maxBodyBytes int64, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services:     services,
		maxBodyBytes: maxBodyBytes,
		log:          log.With().Str("handler", "article").Logger(),
	}
}

// Ingest handles POST /v1/articles
// Returns 201 for a new article and 200 when it was a duplicate
func (h *ArticleHandler) Ingest(c *gin.Context) {
	var candidate models.Candidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.services.Ingest.IngestOne(c.Request.Context(), candidate)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Status == models.IngestCreated {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// IngestBatch handles POST /v1/articles/batch
// Accepts a JSON array, or NDJSON when the content type or ?format= says so
func (h *ArticleHandler) IngestBatch(c *gin.Context) {
	format := strings.ToLower(c.Query("format"))
	if format == "" {
		format = service.FormatJSON
		if strings.HasPrefix(c.ContentType(), "application/x-ndjson") {
			format = service.FormatNDJSON
		}
	}

	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}

	summary, err := h.services.Ingest.ImportStream(c.Request.Context(), body, format)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Fetch handles POST /v1/fetch
// Pulls every configured feed through the pipeline
func (h *ArticleHandler) Fetch(c *gin.Context) {
	summary, err := h.services.Ingest.FetchAndIngest(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// List handles GET /v1/articles?status=&order=&limit=
func (h *ArticleHandler) List(c *gin.Context) {
	var filter models.ListFilter

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		filter.Status = &status
	}

	switch order := models.ListOrder(strings.ToLower(c.Query("order"))); order {
	case "", models.OrderRelevance, models.OrderRecent:
		filter.Order = order
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "order must be one of: relevance, recent"})
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	articles, err := h.services.Articles.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"count":    len(articles),
	})
}

// Get handles GET /v1/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	article, err := h.services.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// ListPosts handles GET /v1/articles/:id/posts
func (h *ArticleHandler) ListPosts(c *gin.Context) {
	posts, err := h.services.Articles.ListPosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Moderate handles POST /v1/articles/:id/moderate
func (h *ArticleHandler) Moderate(c *gin.Context) {
	var req models.ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	action, err := models.ParseAction(req.Action)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	article, err := h.services.Moderation.Transition(c.Request.Context(), c.Param("id"), action, req.EditedPost)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// Regenerate handles POST /v1/articles/:id/regenerate
// The body is optional: {"feedback": "..."}
func (h *ArticleHandler) Regenerate(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	draft, err := h.services.Articles.RegenerateDraft(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// DeleteAll handles DELETE /v1/admin/articles?confirm=true
func (h *ArticleHandler) DeleteAll(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pass confirm=true to delete every article"})
		return
	}

	n, err := h.services.Articles.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
