package repository

import (
	"context"

	"github.com/twax-curation-api/internal/database"
	"github.com/twax-curation-api/internal/models"
)

// publishedPostRepo is the concrete implementation of PublishedPostRepository
type publishedPostRepo struct {
	db *database.DB
}

// NewPublishedPostRepo creates a new published post repository
func NewPublishedPostRepo(db *database.DB) PublishedPostRepository {
	return &publishedPostRepo{db: db}
}

// Create appends a publication record
func (r *publishedPostRepo) Create(ctx context.Context, post *models.PublishedPost) error {
	query := `
		INSERT INTO published_posts (id, article_id, platform, remote_post_id, text, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.ArticleID, post.Platform, post.RemotePostID, post.Text, post.PublishedAt,
	)
	return err
}

// ListByArticle returns an article's publication records, oldest first
func (r *publishedPostRepo) ListByArticle(ctx context.Context, articleID string) ([]*models.PublishedPost, error) {
	query := `
		SELECT id, article_id, platform, remote_post_id, text, published_at
		FROM published_posts WHERE article_id = $1
		ORDER BY published_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]*models.PublishedPost, 0)
	for rows.Next() {
		var post models.PublishedPost
		if err := rows.Scan(&post.ID, &post.ArticleID, &post.Platform, &post.RemotePostID, &post.Text, &post.PublishedAt); err != nil {
			return nil, err
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}
