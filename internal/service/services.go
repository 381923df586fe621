package service

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/publishing"
	"github.com/twax-curation-api/internal/repository"
	"github.com/twax-curation-api/internal/similarity"
)

// Scorer rates articles and drafts posts for them
type Scorer interface {
	Score(ctx context.Context, title, content string) (*models.Score, error)
	DraftPost(ctx context.Context, title, content, feedback string) (*models.Draft, error)
}

// Embedder turns text into a dense vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// FeedSource produces candidates from external feeds
type FeedSource interface {
	FetchAll(ctx context.Context) ([]models.Candidate, []models.FeedFailure)
}

// IngestService defines the interface for ingestion operations
type IngestService interface {
	IngestOne(ctx context.Context, candidate models.Candidate) (*models.IngestResult, error)
	IngestBatch(ctx context.Context, candidates []models.Candidate) (*models.BatchSummary, error)
	FetchAndIngest(ctx context.Context) (*models.BatchSummary, error)
	ImportStream(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error)
}

// ArticleService defines read and maintenance operations on articles
type ArticleService interface {
	List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error)
	Get(ctx context.Context, id string) (*models.Article, error)
	ListPosts(ctx context.Context, id string) ([]*models.PublishedPost, error)
	CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error)
	RegenerateDraft(ctx context.Context, id, feedback string) (*models.Draft, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ModerationService defines the interface for moderation decisions
type ModerationService interface {
	Transition(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error)
}

// PublishService defines the interface for multi-platform publication
type PublishService interface {
	Publish(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamArticles(ctx context.Context, w http.ResponseWriter, format string, filter models.ListFilter) error
}

// PollerService runs feed ingestion on a schedule
type PollerService interface {
	StartPoller(ctx context.Context)
	StopPoller()
}

// Services holds all service interfaces
type Services struct {
	Ingest     IngestService
	Articles   ArticleService
	Moderation ModerationService
	Publish    PublishService
	Export     ExportService
	Poller     PollerService
}

// Dependencies are the external collaborators built by the entry point
type Dependencies struct {
	Scorer     Scorer
	Embedder   Embedder
	Feeds      FeedSource
	Index      *similarity.Index
	Publishers []publishing.Publisher
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, deps Dependencies, cfg *config.Config, log zerolog.Logger) *Services {
	ingestSvc := newIngestService(repos, deps, cfg, log)
	pollerSvc := NewPoller(ingestSvc, cfg.Feeds.FetchInterval, log)

	return &Services{
		Ingest:     ingestSvc,
		Articles:   newArticleService(repos, deps.Scorer, deps.Index, cfg, log),
		Moderation: newModerationService(repos.Articles, log),
		Publish:    newPublishService(repos, deps.Publishers, cfg.Publish.Timeout, log),
		Export:     newExportService(repos, log),
		Poller:     pollerSvc,
	}
}
