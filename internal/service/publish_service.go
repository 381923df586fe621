package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/publishing"
	"github.com/twax-curation-api/internal/repository"
)

// publishService is the concrete implementation of PublishService
type publishService struct {
	repos      *repository.Repositories
	publishers map[models.Platform]publishing.Publisher
	timeout    time.Duration
	log        zerolog.Logger
}

// newPublishService creates a new PublishService
func newPublishService(repos *repository.Repositories, publishers []publishing.Publisher, timeout time.Duration, log zerolog.Logger) *publishService {
	byPlatform := make(map[models.Platform]publishing.Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	return &publishService{
		repos:      repos,
		publishers: byPlatform,
		timeout:    timeout,
		log:        log.With().Str("service", "publish").Logger(),
	}
}

// Publish sends an approved article to every requested platform at once.
// One platform failing does not stop the others; the article becomes
// published as soon as any platform accepts it.
func (s *publishService) Publish(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error) {
	article, err := loadArticle(ctx, s.repos.Articles, req.ArticleID)
	if err != nil {
		return nil, err
	}

	platforms, err := models.ParsePlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	text := article.PostText(strings.TrimSpace(req.CustomText))
	if text == "" {
		return nil, fmt.Errorf("%w: article %s has no post text", models.ErrPreconditionFailed, article.ID)
	}
	if !article.Status.CanPublish() {
		return nil, fmt.Errorf("%w: article is %s, approve it before publishing", models.ErrInvalidTransition, article.Status)
	}

	results := make([]models.PublishResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform models.Platform) {
			defer wg.Done()
			results[i] = s.publishTo(ctx, platform, text, article.URL)
		}(i, platform)
	}
	wg.Wait()

	// Record outcomes even if the caller has gone away mid-request
	persistCtx := context.WithoutCancel(ctx)
	succeeded := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		succeeded++
		post := &models.PublishedPost{
			ID:           uuid.NewString(),
			ArticleID:    article.ID,
			Platform:     r.Platform,
			RemotePostID: r.RemotePostID,
			Text:         r.Text,
			PublishedAt:  time.Now().UTC(),
		}
		if err := s.repos.Posts.Create(persistCtx, post); err != nil {
			s.log.Error().Err(err).
				Str("article_id", article.ID).
				Str("platform", string(r.Platform)).
				Str("post_id", r.RemotePostID).
				Msg("Failed to record published post")
		}
	}

	if succeeded > 0 && article.Status != models.StatusPublished {
		if _, err := s.repos.Articles.MarkPublished(persistCtx, article.ID); err != nil {
			// The remote posts exist; leave the status for a retry rather than fail the request
			s.log.Error().Err(err).Str("article_id", article.ID).Msg("Failed to mark article published")
		}
	}

	s.log.Info().
		Str("article_id", article.ID).
		Int("platforms", len(platforms)).
		Int("succeeded", succeeded).
		Msg("Publish completed")

	return results, nil
}

// publishTo runs one platform call under its own deadline
func (s *publishService) publishTo(ctx context.Context, platform models.Platform, body, link string) (result models.PublishResult) {
	result.Platform = platform

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("platform", string(platform)).Msg("Publisher panicked - recovered")
			result.Success = false
			result.RemotePostID = ""
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	publisher, ok := s.publishers[platform]
	if !ok {
		result.Error = publishing.ErrNotConfigured.Error()
		return result
	}

	text, linked := publishing.Compose(body, link, platform)
	result.Text = text

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	post := publishing.Post{Text: text}
	if linked {
		post.Link = link
	}
	id, err := publisher.Publish(ctx, post)
	if err != nil {
		s.log.Warn().Err(err).Str("platform", string(platform)).Msg("Platform publish failed")
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.RemotePostID = id
	return result
}
