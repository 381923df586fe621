package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/twax-curation-api/internal/database"
	"github.com/twax-curation-api/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"id", "title", "url", "content", "source", "published_at", "created_at",
	"relevance_score", "newsworthiness_score", "summary", "generated_post",
	"hashtags", "embedding", "status", "moderated_at", "edited_post",
}

// articleRepo is the concrete implementation of ArticleRepository
type articleRepo struct {
	db *database.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{db: db}
}

// Create inserts a new article, relying on the url unique constraint
func (r *articleRepo) Create(ctx context.Context, article *models.Article) error {
	hashtags := article.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	query, args, err := psql.Insert("articles").
		Columns(articleColumns...).
		Values(
			article.ID, article.Title, article.URL, article.Content, article.Source,
			article.PublishedAt, article.CreatedAt,
			article.RelevanceScore, article.NewsworthinessScore, article.Summary, article.GeneratedPost,
			pq.StringArray(hashtags), pq.Float64Array(article.Embedding),
			article.Status, article.ModeratedAt, article.EditedPost,
		).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateURL
		}
		return err
	}
	return nil
}

// GetByID retrieves an article by ID
func (r *articleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByURL retrieves an article by canonical URL
func (r *articleRepo) GetByURL(ctx context.Context, url string) (*models.Article, error) {
	return r.getOne(ctx, sq.Eq{"url": url})
}

func (r *articleRepo) getOne(ctx context.Context, where sq.Eq) (*models.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// List returns articles filtered by status, most relevant or most recent first
func (r *articleRepo) List(ctx context.Context, filter models.ListFilter) ([]*models.Article, error) {
	query, args, err := listQuery(filter).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]*models.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// UpdateModeration atomically applies a moderation decision
func (r *articleRepo) UpdateModeration(ctx context.Context, id string, from, to models.ArticleStatus, moderatedAt time.Time, editedPost *string) (bool, error) {
	update := psql.Update("articles").
		Set("status", to).
		Set("moderated_at", moderatedAt).
		Where(sq.Eq{"id": id, "status": from})
	if editedPost != nil {
		update = update.Set("edited_post", *editedPost)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkPublished moves an approved article to published
func (r *articleRepo) MarkPublished(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE articles SET status = 'published'
		WHERE id = $1 AND status = 'approved'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RecentEmbeddings loads the newest embeddings to warm the similarity index
func (r *articleRepo) RecentEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	query := `
		SELECT id, embedding FROM (
			SELECT id, embedding, created_at FROM articles
			WHERE embedding IS NOT NULL
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.EmbeddingEntry
	for rows.Next() {
		var entry models.EmbeddingEntry
		var vector pq.Float64Array
		if err := rows.Scan(&entry.ArticleID, &vector); err != nil {
			return nil, err
		}
		entry.Vector = []float64(vector)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByStatus returns article counts grouped by status
func (r *articleRepo) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM articles GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ArticleStatus]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status models.ArticleStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteAll removes every article; published posts cascade
func (r *articleRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM articles")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// StreamAll streams articles for export without buffering the whole result
func (r *articleRepo) StreamAll(ctx context.Context, filter models.ListFilter, callback func(*models.Article) error) error {
	query, args, err := listQuery(filter).ToSql()
	if err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return err
		}
		if err := callback(article); err != nil {
			return err
		}
	}
	return rows.Err()
}

func listQuery(filter models.ListFilter) sq.SelectBuilder {
	builder := psql.Select(articleColumns...).From("articles")
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}

	switch filter.Order {
	case models.OrderRecent:
		builder = builder.OrderBy("created_at DESC", "id")
	default:
		builder = builder.OrderBy("relevance_score DESC NULLS LAST", "created_at DESC", "id")
	}

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return builder
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var publishedAt, moderatedAt sql.NullTime
	var relevance, newsworthiness sql.NullInt32
	var summary, generated, edited sql.NullString
	var hashtags pq.StringArray
	var embedding pq.Float64Array

	err := row.Scan(
		&article.ID, &article.Title, &article.URL, &article.Content, &article.Source,
		&publishedAt, &article.CreatedAt,
		&relevance, &newsworthiness, &summary, &generated,
		&hashtags, &embedding, &article.Status, &moderatedAt, &edited,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		article.PublishedAt = &publishedAt.Time
	}
	if moderatedAt.Valid {
		article.ModeratedAt = &moderatedAt.Time
	}
	if relevance.Valid {
		article.RelevanceScore = models.IntPtr(int(relevance.Int32))
	}
	if newsworthiness.Valid {
		article.NewsworthinessScore = models.IntPtr(int(newsworthiness.Int32))
	}
	if summary.Valid {
		article.Summary = &summary.String
	}
	if generated.Valid {
		article.GeneratedPost = &generated.String
	}
	if edited.Valid {
		article.EditedPost = &edited.String
	}
	article.Hashtags = []string(hashtags)
	if len(embedding) > 0 {
		article.Embedding = []float64(embedding)
	}

	if _, err := models.ParseStatus(string(article.Status)); err != nil {
		return nil, fmt.Errorf("article %s: %w", article.ID, err)
	}
	return &article, nil
}
