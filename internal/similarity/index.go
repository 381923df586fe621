// Package similarity keeps a bounded window of recent article embeddings in
// memory and answers nearest-neighbour queries by cosine similarity.
package similarity

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
)

// ErrEmptyVector is returned when upserting a vector with no components
var ErrEmptyVector = errors.New("empty embedding vector")

// Source yields the newest embeddings, oldest first
type Source interface {
	RecentEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingEntry, error)
}

// Store mirrors the index outside the process
type Store interface {
	Source
	Save(ctx context.Context, entry models.EmbeddingEntry) error
	Reset(ctx context.Context) error
}

// Match is the best neighbour found for a query vector
type Match struct {
	ArticleID string
	Score     float64
}

type entry struct {
	id     string
	vector []float64
	norm   float64
}

// Index is safe for concurrent use. Entries are kept in insertion order and
// the oldest are evicted once the window is full.
type Index struct {
	mu      sync.RWMutex
	window  int
	entries []entry

	store Store
	log   zerolog.Logger
}

// NewIndex creates an index holding at most window entries. store may be nil.
func NewIndex(window int, store Store, log zerolog.Logger) *Index {
	if window < 1 {
		window = 1
	}
	return &Index{
		window:  window,
		entries: make([]entry, 0, window),
		store:   store,
		log:     log.With().Str("component", "similarity").Logger(),
	}
}

// Upsert records or replaces an article's embedding as the most recent entry
func (idx *Index) Upsert(ctx context.Context, id string, vector []float64) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	e := entry{id: id, vector: append([]float64(nil), vector...), norm: norm(vector)}

	idx.mu.Lock()
	idx.insertLocked(e)
	idx.mu.Unlock()

	if idx.store == nil {
		return nil
	}
	return idx.store.Save(ctx, models.EmbeddingEntry{ArticleID: id, Vector: e.vector})
}

func (idx *Index) insertLocked(e entry) {
	for i := range idx.entries {
		if idx.entries[i].id == e.id {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			break
		}
	}
	idx.entries = append(idx.entries, e)
	if over := len(idx.entries) - idx.window; over > 0 {
		idx.entries = append(idx.entries[:0], idx.entries[over:]...)
	}
}

// Nearest returns the most similar entry scoring at least threshold. Equal
// scores resolve to the most recently inserted entry.
func (idx *Index) Nearest(vector []float64, threshold float64) (Match, bool) {
	qNorm := norm(vector)
	if qNorm == 0 {
		return Match{}, false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best Match
	found := false
	for i := len(idx.entries) - 1; i >= 0; i-- {
		e := idx.entries[i]
		if e.norm == 0 || len(e.vector) != len(vector) {
			continue
		}
		score := dot(e.vector, vector) / (e.norm * qNorm)
		if score < threshold {
			continue
		}
		if !found || score > best.Score {
			best = Match{ArticleID: e.id, Score: score}
			found = true
		}
	}
	return best, found
}

// Warm replaces the in-memory window with the newest entries from src
func (idx *Index) Warm(ctx context.Context, src Source) (int, error) {
	loaded, err := src.RecentEmbeddings(ctx, idx.window)
	if err != nil {
		return 0, err
	}

	entries := make([]entry, 0, idx.window)
	for _, le := range loaded {
		if len(le.Vector) == 0 {
			continue
		}
		entries = append(entries, entry{id: le.ArticleID, vector: le.Vector, norm: norm(le.Vector)})
	}

	idx.mu.Lock()
	idx.entries = idx.entries[:0]
	for _, e := range entries {
		idx.insertLocked(e)
	}
	n := len(idx.entries)
	idx.mu.Unlock()

	idx.log.Info().Int("entries", n).Int("window", idx.window).Msg("Similarity index warmed")
	return n, nil
}

// Reset drops every entry, including the external mirror
func (idx *Index) Reset(ctx context.Context) error {
	idx.mu.Lock()
	idx.entries = idx.entries[:0]
	idx.mu.Unlock()

	if idx.store == nil {
		return nil
	}
	return idx.store.Reset(ctx)
}

// Len returns the number of entries held
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero magnitude or the dimensions differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
