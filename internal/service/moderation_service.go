package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/repository"
)

// MaxEditedPostChars bounds reviewer-supplied post text
const MaxEditedPostChars = 1000

// transitionAttempts bounds retries when a concurrent update wins the CAS
const transitionAttempts = 3

// moderationService is the concrete implementation of ModerationService
type moderationService struct {
	articles repository.ArticleRepository
	log      zerolog.Logger
}

// newModerationService creates a new ModerationService
func newModerationService(articles repository.ArticleRepository, log zerolog.Logger) *moderationService {
	return &moderationService{
		articles: articles,
		log:      log.With().Str("service", "moderation").Logger(),
	}
}

// Transition applies a reviewer decision. The status write is conditional on
// the status the decision was computed from, so two racing reviewers can never
// both move the same article.
func (s *moderationService) Transition(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error) {
	if action.Target() == "" {
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrInvalidInput, action)
	}
	if editedPost != nil {
		text := strings.TrimSpace(*editedPost)
		if text == "" {
			return nil, fmt.Errorf("%w: edited_post must not be empty", models.ErrInvalidInput)
		}
		if len([]rune(text)) > MaxEditedPostChars {
			return nil, fmt.Errorf("%w: edited_post exceeds %d characters", models.ErrInvalidInput, MaxEditedPostChars)
		}
		editedPost = &text
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		article, err := loadArticle(ctx, s.articles, id)
		if err != nil {
			return nil, err
		}

		next, err := models.NextStatus(article.Status, action)
		if err != nil {
			return nil, err
		}

		updated, err := s.articles.UpdateModeration(ctx, id, article.Status, next, time.Now().UTC(), editedPost)
		if err != nil {
			return nil, fmt.Errorf("update moderation: %w", err)
		}
		if !updated {
			s.log.Debug().Str("article_id", id).Int("attempt", attempt+1).Msg("Status changed concurrently, retrying")
			continue
		}

		s.log.Info().
			Str("article_id", id).
			Str("action", string(action)).
			Str("from", string(article.Status)).
			Str("to", string(next)).
			Bool("edited", editedPost != nil).
			Msg("Article moderated")

		return loadArticle(ctx, s.articles, id)
	}

	return nil, fmt.Errorf("%w: article %s is being modified concurrently", models.ErrInvalidTransition, id)
}
