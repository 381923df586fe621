package mocks

import (
	"context"
	"io"
	"net/http"

	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/service"
)

// MockIngestService is a mock implementation of IngestService
type MockIngestService struct {
	IngestOneFunc   func(ctx context.Context, c models.Candidate) (*models.IngestResult, error)
	IngestBatchFunc func(ctx context.Context, cs []models.Candidate) (*models.BatchSummary, error)
	FetchFunc       func(ctx context.Context) (*models.BatchSummary, error)
	ImportFunc      func(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error)
	Ingested        []models.Candidate
}

// Verify interface compliance
var _ service.IngestService = (*MockIngestService)(nil)

func NewMockIngestService() *MockIngestService {
	return &MockIngestService{}
}

func (m *MockIngestService) IngestOne(ctx context.Context, c models.Candidate) (*models.IngestResult, error) {
	if m.IngestOneFunc != nil {
		return m.IngestOneFunc(ctx, c)
	}
	m.Ingested = append(m.Ingested, c)
	return &models.IngestResult{
		Status:  models.IngestCreated,
		Article: &models.Article{ID: "test-article-id", Title: c.Title, URL: c.URL, Status: models.StatusPending},
	}, nil
}

func (m *MockIngestService) IngestBatch(ctx context.Context, cs []models.Candidate) (*models.BatchSummary, error) {
	if m.IngestBatchFunc != nil {
		return m.IngestBatchFunc(ctx, cs)
	}
	m.Ingested = append(m.Ingested, cs...)
	return &models.BatchSummary{Fetched: len(cs), New: len(cs), Articles: []models.BatchItem{}}, nil
}

func (m *MockIngestService) FetchAndIngest(ctx context.Context) (*models.BatchSummary, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return &models.BatchSummary{Articles: []models.BatchItem{}}, nil
}

func (m *MockIngestService) ImportStream(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error) {
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, r, format)
	}
	return &models.BatchSummary{Articles: []models.BatchItem{}}, nil
}

// MockArticleService is a mock implementation of ArticleService
type MockArticleService struct {
	Articles       map[string]*models.Article
	Posts          map[string][]*models.PublishedPost
	RegenerateFunc func(ctx context.Context, id, feedback string) (*models.Draft, error)
	LastFilter     models.ListFilter
	Deleted        int64
}

// Verify interface compliance
var _ service.ArticleService = (*MockArticleService)(nil)

func NewMockArticleService() *MockArticleService {
	return &MockArticleService{
		Articles: make(map[string]*models.Article),
		Posts:    make(map[string][]*models.PublishedPost),
	}
}

func (m *MockArticleService) List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error) {
	m.LastFilter = filter
	result := make([]*models.Article, 0, len(m.Articles))
	for _, a := range m.Articles {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *MockArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	a, ok := m.Articles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a, nil
}

func (m *MockArticleService) ListPosts(ctx context.Context, id string) ([]*models.PublishedPost, error) {
	if _, ok := m.Articles[id]; !ok {
		return nil, models.ErrNotFound
	}
	posts := m.Posts[id]
	if posts == nil {
		posts = []*models.PublishedPost{}
	}
	return posts, nil
}

func (m *MockArticleService) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	counts := make(map[models.ArticleStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for _, a := range m.Articles {
		counts[a.Status]++
	}
	return counts, nil
}

func (m *MockArticleService) RegenerateDraft(ctx context.Context, id, feedback string) (*models.Draft, error) {
	if m.RegenerateFunc != nil {
		return m.RegenerateFunc(ctx, id, feedback)
	}
	if _, ok := m.Articles[id]; !ok {
		return nil, models.ErrNotFound
	}
	return &models.Draft{Text: "fresh draft", Hashtags: []string{"AI"}}, nil
}

func (m *MockArticleService) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(m.Articles))
	m.Articles = make(map[string]*models.Article)
	m.Deleted += n
	return n, nil
}

// MockModerationService is a mock implementation of ModerationService
type MockModerationService struct {
	TransitionFunc func(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error)
}

// Verify interface compliance
var _ service.ModerationService = (*MockModerationService)(nil)

func (m *MockModerationService) Transition(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, action, editedPost)
	}
	return &models.Article{ID: id, Status: action.Target(), EditedPost: editedPost}, nil
}

// MockPublishService is a mock implementation of PublishService
type MockPublishService struct {
	PublishFunc func(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error)
	Requests    []models.PublishRequest
}

// Verify interface compliance
var _ service.PublishService = (*MockPublishService)(nil)

func (m *MockPublishService) Publish(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error) {
	m.Requests = append(m.Requests, req)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, req)
	}
	results := make([]models.PublishResult, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		results = append(results, models.PublishResult{Platform: models.Platform(p), Success: true, RemotePostID: "remote-1"})
	}
	return results, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamArticlesFunc func(ctx context.Context, w http.ResponseWriter, format string, filter models.ListFilter) error
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func (m *MockExportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string, filter models.ListFilter) error {
	if m.StreamArticlesFunc != nil {
		return m.StreamArticlesFunc(ctx, w, format, filter)
	}
	return nil
}

// MockPollerService is a mock implementation of PollerService
type MockPollerService struct {
	Started bool
	Stopped bool
}

// Verify interface compliance
var _ service.PollerService = (*MockPollerService)(nil)

func (m *MockPollerService) StartPoller(ctx context.Context) { m.Started = true }

func (m *MockPollerService) StopPoller() { m.Stopped = true }
