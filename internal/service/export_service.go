package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/repository"
)

// Supported export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// exportFlushEvery is how many records are written between flushes
const exportFlushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamArticles streams articles in the specified format
func (s *exportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string, filter models.ListFilter) error {
	if filter.Order == "" {
		filter.Order = models.OrderRecent
	}

	s.log.Info().Str("format", format).Msg("Starting articles export")

	switch strings.ToLower(format) {
	case FormatNDJSON:
		return s.streamNDJSON(ctx, w, filter)
	case FormatJSON:
		return s.streamJSON(ctx, w, filter)
	case FormatCSV:
		return s.streamCSV(ctx, w, filter)
	default:
		return fmt.Errorf("%w: unsupported format %q", models.ErrInvalidInput, format)
	}
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter, filter models.ListFilter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Articles.StreamAll(ctx, filter, func(article *models.Article) error {
		data, err := json.Marshal(article)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		count++

		// Flush periodically for streaming
		if count%exportFlushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Articles export completed")
	return err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter, filter models.ListFilter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.json")

	w.Write([]byte("["))
	first := true

	err := s.repos.Articles.StreamAll(ctx, filter, func(article *models.Article) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(article)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})

	w.Write([]byte("]"))
	return err
}

func (s *exportService) streamCSV(ctx context.Context, w http.ResponseWriter, filter models.ListFilter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	writer.Write([]string{
		"id", "title", "url", "source", "status",
		"relevance_score", "newsworthiness_score", "summary", "post", "hashtags", "created_at",
	})

	return s.repos.Articles.StreamAll(ctx, filter, func(a *models.Article) error {
		return writer.Write([]string{
			a.ID,
			a.Title,
			a.URL,
			a.Source,
			string(a.Status),
			optionalInt(a.RelevanceScore),
			optionalInt(a.NewsworthinessScore),
			optionalString(a.Summary),
			a.PostText(""),
			strings.Join(a.Hashtags, " "),
			a.CreatedAt.Format(time.RFC3339),
		})
	})
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
