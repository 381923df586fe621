package repository

import (
	"context"
	"time"

	"github.com/twax-curation-api/internal/database"
	"github.com/twax-curation-api/internal/models"
)

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	// Create inserts a new article. A URL collision returns models.ErrDuplicateURL.
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	GetByURL(ctx context.Context, url string) (*models.Article, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error)
	// UpdateModeration moves an article from one status to another only if its
	// status is still from. editedPost is written only when non-nil.
	UpdateModeration(ctx context.Context, id string, from, to models.ArticleStatus, moderatedAt time.Time, editedPost *string) (bool, error)
	// MarkPublished moves an approved article to published
	MarkPublished(ctx context.Context, id string) (bool, error)
	// RecentEmbeddings returns up to limit of the newest embeddings, oldest first
	RecentEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingEntry, error)
	CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error)
	DeleteAll(ctx context.Context) (int64, error)
	StreamAll(ctx context.Context, filter models.ListFilter, callback func(*models.Article) error) error
}

// PublishedPostRepository defines the interface for publication records
type PublishedPostRepository interface {
	Create(ctx context.Context, post *models.PublishedPost) error
	ListByArticle(ctx context.Context, articleID string) ([]*models.PublishedPost, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	Articles ArticleRepository
	Posts    PublishedPostRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Articles: NewArticleRepo(db),
		Posts:    NewPublishedPostRepo(db),
	}
}
