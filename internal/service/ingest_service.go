package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/repository"
	"github.com/twax-curation-api/internal/similarity"
	"github.com/twax-curation-api/internal/validation"
)

// ingestService is the concrete implementation of IngestService
type ingestService struct {
	repos     *repository.Repositories
	scorer    Scorer
	embedder  Embedder
	feeds     FeedSource
	index     *similarity.Index
	validator *validation.Validator
	cfg       config.IngestConfig
	aiTimeout time.Duration
	log       zerolog.Logger
}

// newIngestService creates a new IngestService
func newIngestService(repos *repository.Repositories, deps Dependencies, cfg *config.Config, log zerolog.Logger) *ingestService {
	return &ingestService{
		repos:     repos,
		scorer:    deps.Scorer,
		embedder:  deps.Embedder,
		feeds:     deps.Feeds,
		index:     deps.Index,
		validator: validation.NewValidator(),
		cfg:       cfg.Ingest,
		aiTimeout: cfg.AI.Timeout,
		log:       log.With().Str("service", "ingest").Logger(),
	}
}

// IngestOne runs a single candidate through dedup, enrichment and persistence.
// Enrichment failures degrade the article; only validation and storage
// failures are returned as errors.
func (s *ingestService) IngestOne(ctx context.Context, candidate models.Candidate) (*models.IngestResult, error) {
	cand, err := s.validator.ValidateCandidate(candidate)
	if err != nil {
		return nil, err
	}

	log := s.log.With().Str("url", cand.URL).Str("source", cand.Source).Logger()

	// Exact dedup before any AI call
	existing, err := s.repos.Articles.GetByURL(ctx, cand.URL)
	if err != nil {
		return nil, fmt.Errorf("lookup url: %w", err)
	}
	if existing != nil {
		log.Debug().Str("article_id", existing.ID).Msg("Duplicate URL skipped")
		return &models.IngestResult{Status: models.IngestDuplicate, Article: existing, MatchedBy: models.MatchedByURL}, nil
	}

	article := &models.Article{
		ID:          uuid.NewString(),
		Title:       cand.Title,
		URL:         cand.URL,
		Content:     cand.Content,
		Source:      cand.Source,
		PublishedAt: cand.PublishedAt,
		Hashtags:    []string{},
		Status:      models.StatusPending,
	}
	result := &models.IngestResult{Status: models.IngestCreated, Article: article}

	score, err := s.score(ctx, article)
	if err != nil {
		log.Warn().Err(err).Msg("Scoring failed, storing article without scores")
		result.Degraded = append(result.Degraded, models.EnrichmentScore)
	} else {
		article.RelevanceScore = models.IntPtr(score.Relevance)
		article.NewsworthinessScore = models.IntPtr(score.Newsworthiness)
		article.Summary = models.StringPtr(score.Summary)
	}

	if score != nil && score.Relevance >= s.cfg.RelevanceThreshold {
		draft, err := s.draft(ctx, article)
		if err != nil {
			log.Warn().Err(err).Msg("Draft generation failed, storing article without a post")
			result.Degraded = append(result.Degraded, models.EnrichmentDraft)
		} else {
			article.GeneratedPost = models.StringPtr(draft.Text)
			article.Hashtags = draft.Hashtags
		}
	}

	vector, err := s.embed(ctx, article)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding failed, similarity check skipped")
		result.Degraded = append(result.Degraded, models.EnrichmentEmbedding)
	} else {
		article.Embedding = vector
		if dup := s.similar(ctx, vector, log); dup != nil {
			return dup, nil
		}
	}

	article.CreatedAt = time.Now().UTC()
	if err := s.repos.Articles.Create(ctx, article); err != nil {
		if errors.Is(err, models.ErrDuplicateURL) {
			// Lost a race with a concurrent ingest of the same URL
			winner, getErr := s.repos.Articles.GetByURL(ctx, article.URL)
			if getErr != nil {
				return nil, fmt.Errorf("load existing article: %w", getErr)
			}
			if winner == nil {
				return nil, err
			}
			log.Debug().Str("article_id", winner.ID).Msg("Concurrent duplicate URL skipped")
			return &models.IngestResult{Status: models.IngestDuplicate, Article: winner, MatchedBy: models.MatchedByURL}, nil
		}
		return nil, fmt.Errorf("create article: %w", err)
	}

	if vector != nil && s.index != nil {
		if err := s.index.Upsert(ctx, article.ID, vector); err != nil {
			log.Warn().Err(err).Str("article_id", article.ID).Msg("Failed to index embedding")
		}
	}

	log.Info().
		Str("article_id", article.ID).
		Strs("degraded", result.Degraded).
		Msg("Article ingested")

	return result, nil
}

// similar returns a duplicate result when a stored article is close enough
func (s *ingestService) similar(ctx context.Context, vector []float64, log zerolog.Logger) *models.IngestResult {
	if s.index == nil {
		return nil
	}
	match, ok := s.index.Nearest(vector, s.cfg.SimilarityThreshold)
	if !ok {
		return nil
	}

	existing, err := s.repos.Articles.GetByID(ctx, match.ArticleID)
	if err != nil || existing == nil {
		// Index entries can outlive their rows after a purge
		log.Debug().Err(err).Str("article_id", match.ArticleID).Msg("Ignoring stale similarity match")
		return nil
	}

	log.Debug().
		Str("article_id", existing.ID).
		Float64("similarity", match.Score).
		Msg("Near-duplicate skipped")

	return &models.IngestResult{
		Status:     models.IngestDuplicate,
		Article:    existing,
		MatchedBy:  models.MatchedBySimilarity,
		Similarity: match.Score,
	}
}

func (s *ingestService) score(ctx context.Context, a *models.Article) (*models.Score, error) {
	if s.scorer == nil {
		return nil, errors.New("scorer not configured")
	}
	content := validation.TruncateRunes(a.Content, s.cfg.ScoringContentChars)
	return callWithTimeout(ctx, s.aiTimeout, func(ctx context.Context) (*models.Score, error) {
		return s.scorer.Score(ctx, a.Title, content)
	})
}

func (s *ingestService) draft(ctx context.Context, a *models.Article) (*models.Draft, error) {
	content := validation.TruncateRunes(a.Content, s.cfg.ScoringContentChars)
	return callWithTimeout(ctx, s.aiTimeout, func(ctx context.Context) (*models.Draft, error) {
		return s.scorer.DraftPost(ctx, a.Title, content, "")
	})
}

func (s *ingestService) embed(ctx context.Context, a *models.Article) ([]float64, error) {
	if s.embedder == nil {
		return nil, errors.New("embedder not configured")
	}
	text := a.Title + " " + validation.TruncateRunes(a.Content, s.cfg.EmbeddingContentChars)
	return callWithTimeout(ctx, s.aiTimeout, func(ctx context.Context) ([]float64, error) {
		return s.embedder.Embed(ctx, text)
	})
}

// IngestBatch ingests candidates concurrently. Items come back in input order;
// a failing candidate never aborts the others.
func (s *ingestService) IngestBatch(ctx context.Context, candidates []models.Candidate) (*models.BatchSummary, error) {
	start := time.Now()
	items := make([]models.BatchItem, len(candidates))

	workers := s.cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

schedule:
	for i, cand := range candidates {
		// Acquire semaphore slot, stop scheduling once the caller gives up
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(candidates); j++ {
				items[j] = errorItem(candidates[j], ctx.Err())
			}
			break schedule
		}

		wg.Add(1)
		go func(i int, c models.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			// Panic recovery keeps one bad candidate from taking down the batch
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("url", c.URL).
						Msg("Ingest panicked - recovered")
					items[i] = errorItem(c, fmt.Errorf("internal error: %v", r))
				}
			}()

			res, err := s.IngestOne(ctx, c)
			if err != nil {
				s.log.Warn().Err(err).Str("url", c.URL).Msg("Candidate failed")
				items[i] = errorItem(c, err)
				return
			}
			items[i] = batchItem(c, res)
		}(i, cand)
	}

	wg.Wait()

	summary := &models.BatchSummary{
		Fetched:  len(candidates),
		Articles: items,
	}
	for _, item := range items {
		switch item.Status {
		case models.IngestCreated:
			summary.New++
		case models.IngestDuplicate:
			summary.Duplicates++
		default:
			summary.Errors++
		}
	}
	summary.DurationMs = time.Since(start).Milliseconds()

	s.log.Info().
		Int("fetched", summary.Fetched).
		Int("new", summary.New).
		Int("duplicates", summary.Duplicates).
		Int("errors", summary.Errors).
		Int64("duration_ms", summary.DurationMs).
		Msg("Batch ingest completed")

	return summary, nil
}

// FetchAndIngest pulls every configured feed and ingests what it finds
func (s *ingestService) FetchAndIngest(ctx context.Context) (*models.BatchSummary, error) {
	if s.feeds == nil {
		return nil, errors.New("no feed source configured")
	}

	candidates, failures := s.feeds.FetchAll(ctx)
	summary, err := s.IngestBatch(ctx, candidates)
	if err != nil {
		return nil, err
	}
	summary.FeedErrors = failures
	return summary, nil
}

func batchItem(c models.Candidate, res *models.IngestResult) models.BatchItem {
	item := models.BatchItem{
		Status:    res.Status,
		Title:     c.Title,
		URL:       c.URL,
		Source:    c.Source,
		MatchedBy: res.MatchedBy,
		Degraded:  res.Degraded,
	}
	if a := res.Article; a != nil {
		item.ArticleID = a.ID
		item.URL = a.URL
		if res.Status == models.IngestCreated {
			item.Title = a.Title
			item.Source = a.Source
			item.Relevance = a.RelevanceScore
			item.Newsworthiness = a.NewsworthinessScore
			item.Post = a.GeneratedPost
			item.Hashtags = a.Hashtags
		}
	}
	return item
}

func errorItem(c models.Candidate, err error) models.BatchItem {
	return models.BatchItem{
		Status: models.IngestError,
		Title:  c.Title,
		URL:    c.URL,
		Source: c.Source,
		Error:  err.Error(),
	}
}

// callWithTimeout bounds an adapter call and turns a panic into an error
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (res T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	return fn(ctx)
}
