package models

// IngestStatus is the outcome of pushing one candidate through the pipeline
type IngestStatus string

const (
	IngestCreated   IngestStatus = "created"
	IngestDuplicate IngestStatus = "duplicate"
	IngestError     IngestStatus = "error"
)

// Ways a duplicate can be detected
const (
	MatchedByURL        = "url"
	MatchedBySimilarity = "similarity"
)

// Enrichment steps that may degrade to an absent field
const (
	EnrichmentScore     = "score"
	EnrichmentDraft     = "draft"
	EnrichmentEmbedding = "embedding"
)

// IngestResult describes what happened to a single candidate
type IngestResult struct {
	Status     IngestStatus `json:"status"`
	Article    *Article     `json:"article,omitempty"`
	MatchedBy  string       `json:"matched_by,omitempty"`
	Similarity float64      `json:"similarity,omitempty"`
	// Degraded lists optional enrichments that failed or timed out
	Degraded []string `json:"degraded,omitempty"`
}

// Degradation reports whether the created article is missing enrichment
func (r IngestResult) Degradation() bool {
	return len(r.Degraded) > 0
}

// BatchItem is the per-candidate summary returned by batch ingestion
type BatchItem struct {
	Status         IngestStatus `json:"status"`
	ArticleID      string       `json:"id,omitempty"`
	Title          string       `json:"title"`
	URL            string       `json:"url"`
	Source         string       `json:"source"`
	MatchedBy      string       `json:"matched_by,omitempty"`
	Relevance      *int         `json:"relevance,omitempty"`
	Newsworthiness *int         `json:"newsworthiness,omitempty"`
	Post           *string      `json:"post,omitempty"`
	Hashtags       []string     `json:"hashtags,omitempty"`
	Degraded       []string     `json:"degraded,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// FeedFailure records a feed that could not be fetched or parsed
type FeedFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// LineError is an uploaded record that could not be decoded
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// BatchSummary aggregates a batch ingestion run
type BatchSummary struct {
	Fetched    int           `json:"fetched"`
	New        int           `json:"new"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	DurationMs int64         `json:"duration_ms"`
	Articles   []BatchItem   `json:"articles"`
	FeedErrors []FeedFailure `json:"feed_errors,omitempty"`
	Rejected   []LineError   `json:"rejected,omitempty"`
}

// ListOrder selects the ordering of list-articles
type ListOrder string

const (
	OrderRelevance ListOrder = "relevance"
	OrderRecent    ListOrder = "recent"
)

// ListFilter drives list-articles and export queries
type ListFilter struct {
	Status *ArticleStatus
	Order  ListOrder
	Limit  int
}

// ModerationRequest is the API payload for POST /v1/articles/:id/moderate
type ModerationRequest struct {
	Action     string  `json:"action"`
	EditedPost *string `json:"edited_post,omitempty"`
}
