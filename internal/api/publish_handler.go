package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/service"
)

// PublishHandler handles the publish endpoint
type PublishHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewPublishHandler creates a new PublishHandler
func NewPublishHandler(services *service.Services, log zerolog.Logger) *PublishHandler {
	return &PublishHandler{
		services: services,
		log:      log.With().Str("handler", "publish").Logger(),
	}
}

// Publish handles POST /v1/publish
// Always 200 once platforms were attempted; per-platform outcomes are in the body
func (h *PublishHandler) Publish(c *gin.Context) {
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := h.services.Publish.Publish(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": req.ArticleID,
		"results":    results,
		"published":  succeeded > 0,
	})
}
