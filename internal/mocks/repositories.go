package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/repository"
)

// MockArticleRepository is an in-memory ArticleRepository that enforces URL
// uniqueness the way the articles_url_key constraint does.
type MockArticleRepository struct {
	mu       sync.Mutex
	Articles map[string]*models.Article
	byURL    map[string]string
	order    []string

	CreateError        error
	GetError           error
	MarkPublishedError error
	// BeforeCreate runs before the uniqueness check, outside the lock
	BeforeCreate func(article *models.Article)

	CreateCalls        int
	MarkPublishedCalls int
}

// Verify interface compliance
var _ repository.ArticleRepository = (*MockArticleRepository)(nil)

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{
		Articles: make(map[string]*models.Article),
		byURL:    make(map[string]string),
	}
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article) error {
	if m.BeforeCreate != nil {
		m.BeforeCreate(article)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	if _, exists := m.byURL[article.URL]; exists {
		return models.ErrDuplicateURL
	}
	stored := *article
	m.Articles[article.ID] = &stored
	m.byURL[article.URL] = article.ID
	m.order = append(m.order, article.ID)
	return nil
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.copyOf(id), nil
}

func (m *MockArticleRepository) GetByURL(ctx context.Context, url string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	id, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	return m.copyOf(id), nil
}

func (m *MockArticleRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*models.Article, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.Articles[m.order[i]]
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result = append(result, m.copyOf(a.ID))
	}

	if filter.Order != models.OrderRecent {
		sort.SliceStable(result, func(i, j int) bool {
			ri, rj := result[i].RelevanceScore, result[j].RelevanceScore
			if ri == nil || rj == nil {
				return ri != nil && rj == nil
			}
			return *ri > *rj
		})
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockArticleRepository) UpdateModeration(ctx context.Context, id string, from, to models.ArticleStatus, moderatedAt time.Time, editedPost *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Articles[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.ModeratedAt = &moderatedAt
	if editedPost != nil {
		a.EditedPost = models.StringPtr(*editedPost)
	}
	return true, nil
}

func (m *MockArticleRepository) MarkPublished(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkPublishedCalls++
	if m.MarkPublishedError != nil {
		return false, m.MarkPublishedError
	}
	a, ok := m.Articles[id]
	if !ok || a.Status != models.StatusApproved {
		return false, nil
	}
	a.Status = models.StatusPublished
	return true, nil
}

func (m *MockArticleRepository) RecentEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []models.EmbeddingEntry
	for _, id := range m.order {
		if a := m.Articles[id]; len(a.Embedding) > 0 {
			entries = append(entries, models.EmbeddingEntry{ArticleID: id, Vector: a.Embedding})
		}
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (m *MockArticleRepository) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.ArticleStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for _, a := range m.Articles {
		counts[a.Status]++
	}
	return counts, nil
}

func (m *MockArticleRepository) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.Articles))
	m.Articles = make(map[string]*models.Article)
	m.byURL = make(map[string]string)
	m.order = nil
	return n, nil
}

func (m *MockArticleRepository) StreamAll(ctx context.Context, filter models.ListFilter, callback func(*models.Article) error) error {
	articles, err := m.List(ctx, filter)
	if err != nil {
		return err
	}
	for _, a := range articles {
		if err := callback(a); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored articles
func (m *MockArticleRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Articles)
}

func (m *MockArticleRepository) copyOf(id string) *models.Article {
	a, ok := m.Articles[id]
	if !ok {
		return nil
	}
	c := *a
	return &c
}

// MockPublishedPostRepository is an in-memory PublishedPostRepository
type MockPublishedPostRepository struct {
	mu          sync.Mutex
	Posts       []*models.PublishedPost
	CreateError error
}

// Verify interface compliance
var _ repository.PublishedPostRepository = (*MockPublishedPostRepository)(nil)

func NewMockPublishedPostRepository() *MockPublishedPostRepository {
	return &MockPublishedPostRepository{}
}

func (m *MockPublishedPostRepository) Create(ctx context.Context, post *models.PublishedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Posts = append(m.Posts, post)
	return nil
}

func (m *MockPublishedPostRepository) ListByArticle(ctx context.Context, articleID string) ([]*models.PublishedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]*models.PublishedPost, 0)
	for _, p := range m.Posts {
		if p.ArticleID == articleID {
			posts = append(posts, p)
		}
	}
	return posts, nil
}
