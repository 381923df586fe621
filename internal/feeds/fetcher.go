// Package feeds fetches RSS and Atom feeds and turns their entries into
// ingestion candidates.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
	"golang.org/x/sync/errgroup"
)

const userAgent = "twax-curation-api/1.0 (+feed fetcher)"

// Fetcher pulls every configured feed concurrently
type Fetcher struct {
	client      *http.Client
	sources     []config.FeedSource
	maxPerFeed  int
	concurrency int
	timeout     time.Duration
	log         zerolog.Logger
}

// NewFetcher creates a feed fetcher
func NewFetcher(cfg config.FeedsConfig, client *http.Client, log zerolog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		client:      client,
		sources:     cfg.Sources,
		maxPerFeed:  cfg.MaxPerFeed,
		concurrency: concurrency,
		timeout:     cfg.Timeout,
		log:         log.With().Str("component", "feeds").Logger(),
	}
}

// FetchAll returns the candidates of every feed in configuration order. A
// failing feed is logged and reported without affecting the others.
func (f *Fetcher) FetchAll(ctx context.Context) ([]models.Candidate, []models.FeedFailure) {
	perFeed := make([][]models.Candidate, len(f.sources))
	errs := make([]error, len(f.sources))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, src := range f.sources {
		i, src := i, src
		g.Go(func() error {
			items, err := f.fetchOne(ctx, src)
			if err != nil {
				f.log.Warn().Err(err).Str("feed", src.Name).Msg("Feed fetch failed")
				errs[i] = err
				return nil
			}
			f.log.Info().Str("feed", src.Name).Int("entries", len(items)).Msg("Feed fetched")
			perFeed[i] = items
			return nil
		})
	}
	g.Wait()

	var candidates []models.Candidate
	var failures []models.FeedFailure
	for i, items := range perFeed {
		if errs[i] != nil {
			failures = append(failures, models.FeedFailure{Source: f.sources[i].Name, Error: errs[i].Error()})
			continue
		}
		candidates = append(candidates, items...)
	}

	f.log.Info().
		Int("candidates", len(candidates)).
		Int("feeds", len(f.sources)).
		Int("failed_feeds", len(failures)).
		Msg("Feed fetch completed")
	return candidates, failures
}

func (f *Fetcher) fetchOne(ctx context.Context, src config.FeedSource) (items []models.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic parsing feed: %v", r)
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	return Parse(io.LimitReader(resp.Body, 10<<20), src.Name, f.maxPerFeed)
}
