package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/publishing"
	"github.com/twax-curation-api/internal/service"
)

// MockScorer is a mock implementation of service.Scorer
type MockScorer struct {
	mu        sync.Mutex
	ScoreFunc func(ctx context.Context, title, content string) (*models.Score, error)
	DraftFunc func(ctx context.Context, title, content, feedback string) (*models.Draft, error)

	ScoreCalls int
	DraftCalls int
	Feedback   []string
}

// Verify interface compliance
var _ service.Scorer = (*MockScorer)(nil)

// NewMockScorer returns a scorer that rates everything relevance 8
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

func (m *MockScorer) Score(ctx context.Context, title, content string) (*models.Score, error) {
	m.mu.Lock()
	m.ScoreCalls++
	fn := m.ScoreFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, title, content)
	}
	return &models.Score{Relevance: 8, Newsworthiness: 7, Summary: "Summary of " + title}, nil
}

func (m *MockScorer) DraftPost(ctx context.Context, title, content, feedback string) (*models.Draft, error) {
	m.mu.Lock()
	m.DraftCalls++
	m.Feedback = append(m.Feedback, feedback)
	fn := m.DraftFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, title, content, feedback)
	}
	return &models.Draft{Text: "Read this: " + title, Hashtags: []string{"AI"}}, nil
}

// Calls returns the score and draft call counts
func (m *MockScorer) Calls() (score, draft int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ScoreCalls, m.DraftCalls
}

// MockEmbedder is a mock implementation of service.Embedder. By default every
// distinct text gets its own unit vector, so identical texts match exactly
// and different texts are orthogonal.
type MockEmbedder struct {
	mu        sync.Mutex
	Dim       int
	EmbedFunc func(ctx context.Context, text string) ([]float64, error)
	slots     map[string]int
	Calls     int
}

// Verify interface compliance
var _ service.Embedder = (*MockEmbedder)(nil)

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 64, slots: make(map[string]int)}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	m.Calls++
	fn := m.EmbedFunc
	slot, ok := m.slots[text]
	if !ok {
		slot = len(m.slots) % m.Dim
		m.slots[text] = slot
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	vec := make([]float64, m.Dim)
	vec[slot] = 1
	return vec, nil
}

// MockFeedSource is a mock implementation of service.FeedSource
type MockFeedSource struct {
	Candidates []models.Candidate
	Failures   []models.FeedFailure
	Calls      int
}

// Verify interface compliance
var _ service.FeedSource = (*MockFeedSource)(nil)

func (m *MockFeedSource) FetchAll(ctx context.Context) ([]models.Candidate, []models.FeedFailure) {
	m.Calls++
	return m.Candidates, m.Failures
}

// MockPublisher is a mock implementation of publishing.Publisher
type MockPublisher struct {
	mu          sync.Mutex
	Name        models.Platform
	PublishFunc func(ctx context.Context, post publishing.Post) (string, error)
	Posts       []publishing.Post
}

// Verify interface compliance
var _ publishing.Publisher = (*MockPublisher)(nil)

func NewMockPublisher(platform models.Platform) *MockPublisher {
	return &MockPublisher{Name: platform}
}

func (m *MockPublisher) Platform() models.Platform {
	return m.Name
}

func (m *MockPublisher) Publish(ctx context.Context, post publishing.Post) (string, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, post)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Posts = append(m.Posts, post)
	return fmt.Sprintf("%s-post-%d", m.Name, len(m.Posts)), nil
}

// Sent returns the posts accepted so far
func (m *MockPublisher) Sent() []publishing.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishing.Post(nil), m.Posts...)
}
