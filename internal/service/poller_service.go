package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// pollerService periodically runs FetchAndIngest
type pollerService struct {
	ingest   IngestService
	interval time.Duration
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
	// Single slot: a tick is skipped while the previous run is still going
	sem chan struct{}
}

// NewPoller creates a poller. An interval of zero disables it.
func NewPoller(ingest IngestService, interval time.Duration, log zerolog.Logger) PollerService {
	return &pollerService{
		ingest:   ingest,
		interval: interval,
		log:      log.With().Str("service", "poller").Logger(),
		sem:      make(chan struct{}, 1),
	}
}

// StartPoller blocks, fetching feeds on every tick until the context is
// cancelled or StopPoller is called
func (s *pollerService) StartPoller(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info().Msg("Feed poller disabled")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	// The loop holds a slot so StopPoller also waits for it to exit
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.log.Info().Dur("interval", s.interval).Msg("Feed poller started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Feed poller stopping")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// StopPoller cancels the loop and waits for it and any in-flight run to finish
func (s *pollerService) StopPoller() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Feed poller stopped")
}

// tick starts a fetch in the background unless one is already running
func (s *pollerService) tick() {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.sem <- struct{}{}:
	default:
		s.log.Warn().Msg("Previous fetch still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()

		// Panic recovery - a failing run must not kill the poller
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Msg("Scheduled fetch panicked - recovered")
			}
		}()

		summary, err := s.ingest.FetchAndIngest(s.ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("Scheduled fetch failed")
			return
		}
		s.log.Info().
			Int("fetched", summary.Fetched).
			Int("new", summary.New).
			Int("duplicates", summary.Duplicates).
			Int("errors", summary.Errors).
			Int("feed_errors", len(summary.FeedErrors)).
			Msg("Scheduled fetch completed")
	}()
}
