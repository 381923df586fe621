package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/repository"
	"github.com/twax-curation-api/internal/similarity"
	"github.com/twax-curation-api/internal/validation"
)

// List limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	MaxFeedbackChars = 500
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	repos        *repository.Repositories
	scorer       Scorer
	index        *similarity.Index
	contentChars int
	aiTimeout    time.Duration
	log          zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(repos *repository.Repositories, scorer Scorer, index *similarity.Index, cfg *config.Config, log zerolog.Logger) *articleService {
	return &articleService{
		repos:        repos,
		scorer:       scorer,
		index:        index,
		contentChars: cfg.Ingest.ScoringContentChars,
		aiTimeout:    cfg.AI.Timeout,
		log:          log.With().Str("service", "article").Logger(),
	}
}

// List returns articles, best scored first unless recent order is asked for
func (s *articleService) List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Order == "" {
		filter.Order = models.OrderRelevance
	}
	return s.repos.Articles.List(ctx, filter)
}

// Get returns one article or ErrNotFound
func (s *articleService) Get(ctx context.Context, id string) (*models.Article, error) {
	return loadArticle(ctx, s.repos.Articles, id)
}

// ListPosts returns the publication history of an article
func (s *articleService) ListPosts(ctx context.Context, id string) ([]*models.PublishedPost, error) {
	if _, err := loadArticle(ctx, s.repos.Articles, id); err != nil {
		return nil, err
	}
	return s.repos.Posts.ListByArticle(ctx, id)
}

// CountByStatus reports how many articles sit in each status
func (s *articleService) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	return s.repos.Articles.CountByStatus(ctx)
}

// RegenerateDraft asks for a fresh post draft, optionally steered by reviewer
// feedback. The draft is returned for review and not stored.
func (s *articleService) RegenerateDraft(ctx context.Context, id, feedback string) (*models.Draft, error) {
	article, err := loadArticle(ctx, s.repos.Articles, id)
	if err != nil {
		return nil, err
	}
	if s.scorer == nil {
		return nil, fmt.Errorf("%w: drafting is not configured", models.ErrUpstream)
	}

	feedback = validation.TruncateRunes(strings.TrimSpace(feedback), MaxFeedbackChars)
	content := validation.TruncateRunes(article.Content, s.contentChars)

	draft, err := callWithTimeout(ctx, s.aiTimeout, func(ctx context.Context) (*models.Draft, error) {
		return s.scorer.DraftPost(ctx, article.Title, content, feedback)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("article_id", id).Msg("Draft regeneration failed")
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return draft, nil
}

// DeleteAll purges every article and clears the similarity index
func (s *articleService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repos.Articles.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if s.index != nil {
		if err := s.index.Reset(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to reset similarity store")
		}
	}
	s.log.Warn().Int64("deleted", n).Msg("All articles deleted")
	return n, nil
}

// loadArticle maps unknown and malformed ids to ErrNotFound
func loadArticle(ctx context.Context, repo repository.ArticleRepository, id string) (*models.Article, error) {
	if !validation.IsValidID(id) {
		return nil, models.ErrNotFound
	}
	article, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, models.ErrNotFound
	}
	return article, nil
}
