package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/mocks"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/publishing"
	"github.com/twax-curation-api/internal/repository"
	"github.com/twax-curation-api/internal/service"
	"github.com/twax-curation-api/internal/similarity"
)

type testHarness struct {
	services *service.Services
	articles *mocks.MockArticleRepository
	posts    *mocks.MockPublishedPostRepository
	scorer   *mocks.MockScorer
	embedder *mocks.MockEmbedder
	feeds    *mocks.MockFeedSource
	twitter  *mocks.MockPublisher
	bluesky  *mocks.MockPublisher
	index    *similarity.Index
}

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{Timeout: 2 * time.Second},
		Ingest: config.IngestConfig{
			RelevanceThreshold:    6,
			ScoringContentChars:   2000,
			EmbeddingContentChars: 500,
			SimilarityThreshold:   0.85,
			SimilarityWindow:      100,
			Concurrency:           4,
		},
		Publish: config.PublishConfig{Timeout: 2 * time.Second},
	}
}

func newTestHarness(t testing.TB) *testHarness {
	return newTestHarnessWithConfig(t, testConfig())
}

func newTestHarnessWithConfig(t testing.TB, cfg *config.Config) *testHarness {
	t.Helper()

	h := &testHarness{
		articles: mocks.NewMockArticleRepository(),
		posts:    mocks.NewMockPublishedPostRepository(),
		scorer:   mocks.NewMockScorer(),
		embedder: mocks.NewMockEmbedder(),
		feeds:    &mocks.MockFeedSource{},
		twitter:  mocks.NewMockPublisher(models.PlatformTwitter),
		bluesky:  mocks.NewMockPublisher(models.PlatformBluesky),
	}

	log := zerolog.Nop()
	h.index = similarity.NewIndex(cfg.Ingest.SimilarityWindow, nil, log)

	repos := &repository.Repositories{
		Articles: h.articles,
		Posts:    h.posts,
	}
	deps := service.Dependencies{
		Scorer:     h.scorer,
		Embedder:   h.embedder,
		Feeds:      h.feeds,
		Index:      h.index,
		Publishers: []publishing.Publisher{h.twitter, h.bluesky},
	}
	h.services = service.NewServices(repos, deps, cfg, log)
	return h
}

// seedArticle stores an article directly, bypassing the pipeline
func (h *testHarness) seedArticle(t testing.TB, status models.ArticleStatus, post *string) *models.Article {
	t.Helper()
	id := uuid.NewString()
	a := &models.Article{
		ID:            id,
		Title:         "Seeded " + id[:8],
		URL:           "https://news.example.com/" + id,
		Content:       "Seeded content",
		Source:        "Test",
		CreatedAt:     time.Now().UTC(),
		Status:        status,
		GeneratedPost: post,
		Hashtags:      []string{},
	}
	if err := h.articles.Create(context.Background(), a); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return a
}

func candidate(title, url string) models.Candidate {
	return models.Candidate{
		Title:   title,
		URL:     url,
		Content: "Body of " + title,
		Source:  "Test Feed",
	}
}
