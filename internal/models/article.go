package models

import (
	"time"
)

// Field caps applied before persistence and before any adapter call
const (
	MaxContentLength = 10000
	MaxSummaryLength = 280
	MaxDraftLength   = 260
	MaxHashtags      = 2
	MinScore         = 1
	MaxScore         = 10
)

// Article represents one ingested news item and its enrichment/workflow state
type Article struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	URL         string     `json:"url" db:"url"`
	Content     string     `json:"content,omitempty" db:"content"`
	Source      string     `json:"source" db:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	// Written once by the ingestion pipeline
	RelevanceScore      *int      `json:"relevance_score" db:"relevance_score"`
	NewsworthinessScore *int      `json:"newsworthiness_score" db:"newsworthiness_score"`
	Summary             *string   `json:"summary" db:"summary"`
	GeneratedPost       *string   `json:"generated_post" db:"generated_post"`
	Hashtags            []string  `json:"hashtags" db:"hashtags"`
	Embedding           []float64 `json:"-" db:"embedding"`

	// Workflow
	Status      ArticleStatus `json:"status" db:"status"`
	ModeratedAt *time.Time    `json:"moderated_at,omitempty" db:"moderated_at"`
	EditedPost  *string       `json:"edited_post,omitempty" db:"edited_post"`
}

// PostText resolves the text to publish: override, then the reviewer's edit,
// then the AI draft. Returns "" when none is present.
func (a *Article) PostText(override string) string {
	if override != "" {
		return override
	}
	if a.EditedPost != nil && *a.EditedPost != "" {
		return *a.EditedPost
	}
	if a.GeneratedPost != nil && *a.GeneratedPost != "" {
		return *a.GeneratedPost
	}
	return ""
}

// Candidate is a raw article pushed by a client or produced by a feed
type Candidate struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Score is the scoring adapter's verdict on an article
type Score struct {
	Relevance      int    `json:"relevance"`
	Newsworthiness int    `json:"newsworthiness"`
	Summary        string `json:"summary"`
}

// Draft is an AI-proposed social post
type Draft struct {
	Text     string   `json:"text"`
	Hashtags []string `json:"hashtags"`
}

// EmbeddingEntry pairs an article with its embedding for similarity lookups
type EmbeddingEntry struct {
	ArticleID string
	Vector    []float64
}

// IntPtr and StringPtr help build optional fields
func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
