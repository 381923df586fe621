package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/service"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamArticles handles GET /v1/exports/articles?format=...&status=...
// Streams the export directly to the response
func (h *ExportHandler) StreamArticles(c *gin.Context) {
	ctx := c.Request.Context()

	format := strings.ToLower(c.Query("format"))
	if format == "" {
		format = service.FormatNDJSON // Default to NDJSON for streaming
	}
	if format != service.FormatNDJSON && format != service.FormatJSON && format != service.FormatCSV {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json, csv"})
		return
	}

	var filter models.ListFilter
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		filter.Status = &status
	}

	h.log.Info().
		Str("format", format).
		Msg("Starting streaming export")

	if err := h.services.Export.StreamArticles(ctx, c.Writer, format, filter); err != nil {
		h.log.Error().Err(err).Msg("Export failed")
		// Can't return error JSON after streaming has started
		return
	}
}
