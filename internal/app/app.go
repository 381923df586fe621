// Package app wires configuration, storage and collaborators into the
// service layer for the server and the CLI.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/ai"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/database"
	"github.com/twax-curation-api/internal/feeds"
	"github.com/twax-curation-api/internal/publishing"
	"github.com/twax-curation-api/internal/repository"
	"github.com/twax-curation-api/internal/service"
	"github.com/twax-curation-api/internal/similarity"
)

// App holds everything built at startup
type App struct {
	DB       *database.DB
	Repos    *repository.Repositories
	Index    *similarity.Index
	Services *service.Services

	redis *similarity.RedisStore
	log   zerolog.Logger
}

// New connects to the database, runs migrations, warms the similarity index
// and builds the services
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)
	a := &App{DB: db, Repos: repos, log: log}

	scorer, embedder := newAI(ctx, cfg, log)

	var store similarity.Store
	if cfg.Redis.URL != "" {
		rs, err := similarity.NewRedisStore(ctx, cfg.Redis.URL, cfg.Ingest.SimilarityWindow)
		if err != nil {
			// The in-memory index still works without the mirror
			log.Warn().Err(err).Msg("Redis unavailable, similarity index will not be mirrored")
		} else {
			a.redis = rs
			store = rs
		}
	}

	a.Index = similarity.NewIndex(cfg.Ingest.SimilarityWindow, store, log)
	a.warmIndex(ctx)

	a.Services = service.NewServices(repos, service.Dependencies{
		Scorer:     scorer,
		Embedder:   embedder,
		Feeds:      feeds.NewFetcher(cfg.Feeds, &http.Client{}, log),
		Index:      a.Index,
		Publishers: publishing.NewPublishers(cfg.Publish, log),
	}, cfg, log)

	return a, nil
}

// newAI returns the Gemini client, or a disabled stand-in without an API key
func newAI(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.Scorer, service.Embedder) {
	client, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		if errors.Is(err, ai.ErrDisabled) {
			log.Warn().Msg("GEMINI_API_KEY not set, articles will be stored without scores or embeddings")
		} else {
			log.Error().Err(err).Msg("Failed to create Gemini client, enrichment disabled")
		}
		return ai.Disabled{}, ai.Disabled{}
	}
	return client, client
}

// warmIndex loads the newest embeddings, preferring the Redis mirror and
// falling back to the database
func (a *App) warmIndex(ctx context.Context) {
	if a.redis != nil {
		n, err := a.Index.Warm(ctx, a.redis)
		if err == nil && n > 0 {
			return
		}
		if err != nil {
			a.log.Warn().Err(err).Msg("Failed to warm similarity index from Redis")
		}
	}
	if _, err := a.Index.Warm(ctx, a.Repos.Articles); err != nil {
		a.log.Warn().Err(err).Msg("Failed to warm similarity index from database")
	}
}

// Close releases the database and Redis connections
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
