package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/twax-curation-api/internal/models"
)

func TestIngestOne_CreatesPendingArticle(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	res, err := h.services.Ingest.IngestOne(ctx, candidate("GPU prices fall", "https://news.example.com/gpu"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated {
		t.Fatalf("Expected created, got %s", res.Status)
	}

	a := res.Article
	if a.Status != models.StatusPending {
		t.Errorf("Expected pending, got %s", a.Status)
	}
	if a.RelevanceScore == nil || *a.RelevanceScore != 8 {
		t.Errorf("Expected relevance 8, got %v", a.RelevanceScore)
	}
	if a.Summary == nil || *a.Summary == "" {
		t.Error("Expected a summary")
	}
	if a.GeneratedPost == nil || *a.GeneratedPost != "Read this: GPU prices fall" {
		t.Errorf("Expected generated post, got %v", a.GeneratedPost)
	}
	if len(a.Hashtags) != 1 || a.Hashtags[0] != "AI" {
		t.Errorf("Expected hashtags [AI], got %v", a.Hashtags)
	}
	if len(res.Degraded) != 0 {
		t.Errorf("Expected no degradation, got %v", res.Degraded)
	}
	if h.articles.Count() != 1 {
		t.Errorf("Expected 1 stored article, got %d", h.articles.Count())
	}
	if h.index.Len() != 1 {
		t.Errorf("Expected embedding to be indexed, got %d entries", h.index.Len())
	}
}

func TestIngestOne_DuplicateURL(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	first, err := h.services.Ingest.IngestOne(ctx, candidate("Chip launch", "https://news.example.com/chip"))
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	// Same page behind a tracking parameter, different title
	second, err := h.services.Ingest.IngestOne(ctx, candidate("Chip launch (updated)", "https://NEWS.example.com/chip?utm_source=rss"))
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if second.Status != models.IngestDuplicate {
		t.Fatalf("Expected duplicate, got %s", second.Status)
	}
	if second.MatchedBy != models.MatchedByURL {
		t.Errorf("Expected matched_by url, got %s", second.MatchedBy)
	}
	if second.Article.ID != first.Article.ID {
		t.Errorf("Expected existing article %s, got %s", first.Article.ID, second.Article.ID)
	}
	if score, _ := h.scorer.Calls(); score != 1 {
		t.Errorf("Expected no AI calls for the duplicate, got %d score calls", score)
	}
	if h.articles.Count() != 1 {
		t.Errorf("Expected 1 stored article, got %d", h.articles.Count())
	}
}

func TestIngestOne_NearDuplicateBySimilarity(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	c := candidate("Model release", "https://a.example.com/story")
	first, err := h.services.Ingest.IngestOne(ctx, c)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	// Syndicated copy: same text, different outlet
	c.URL = "https://b.example.com/copy"
	second, err := h.services.Ingest.IngestOne(ctx, c)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if second.Status != models.IngestDuplicate || second.MatchedBy != models.MatchedBySimilarity {
		t.Fatalf("Expected similarity duplicate, got %s/%s", second.Status, second.MatchedBy)
	}
	if second.Article.ID != first.Article.ID {
		t.Errorf("Expected match against %s, got %s", first.Article.ID, second.Article.ID)
	}
	if second.Similarity < 0.85 {
		t.Errorf("Expected similarity >= 0.85, got %f", second.Similarity)
	}
	if h.articles.Count() != 1 {
		t.Errorf("Expected 1 stored article, got %d", h.articles.Count())
	}
}

func TestIngestOne_IgnoresStaleSimilarityMatch(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.embedder.EmbedFunc = func(ctx context.Context, text string) ([]float64, error) {
		return []float64{1, 0, 0}, nil
	}
	// Indexed id with no stored article behind it
	if err := h.index.Upsert(ctx, "purged-article", []float64{1, 0, 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	res, err := h.services.Ingest.IngestOne(ctx, candidate("Fresh story", "https://news.example.com/fresh"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated {
		t.Errorf("Expected created when the match no longer exists, got %s", res.Status)
	}
}

func TestIngestOne_DraftThreshold(t *testing.T) {
	tests := []struct {
		relevance int
		wantDraft bool
	}{
		{relevance: 5, wantDraft: false},
		{relevance: 6, wantDraft: true},
		{relevance: 10, wantDraft: true},
	}

	for _, tt := range tests {
		h := newTestHarness(t)
		relevance := tt.relevance
		h.scorer.ScoreFunc = func(ctx context.Context, title, content string) (*models.Score, error) {
			return &models.Score{Relevance: relevance, Newsworthiness: 4, Summary: "s"}, nil
		}

		res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story"))
		if err != nil {
			t.Fatalf("relevance %d: IngestOne failed: %v", relevance, err)
		}

		_, drafts := h.scorer.Calls()
		hasDraft := res.Article.GeneratedPost != nil
		if hasDraft != tt.wantDraft || (drafts > 0) != tt.wantDraft {
			t.Errorf("relevance %d: expected draft=%v, got post=%v calls=%d", relevance, tt.wantDraft, hasDraft, drafts)
		}
		if *res.Article.RelevanceScore != relevance {
			t.Errorf("relevance %d: expected stored relevance, got %d", relevance, *res.Article.RelevanceScore)
		}
	}
}

func TestIngestOne_DraftFailureStillCreates(t *testing.T) {
	h := newTestHarness(t)
	h.scorer.DraftFunc = func(ctx context.Context, title, content, feedback string) (*models.Draft, error) {
		return nil, errors.New("model overloaded")
	}

	res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated {
		t.Fatalf("Expected created, got %s", res.Status)
	}
	if res.Article.GeneratedPost != nil {
		t.Errorf("Expected no generated post, got %q", *res.Article.GeneratedPost)
	}
	if res.Article.RelevanceScore == nil {
		t.Error("Expected scores to be kept")
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != models.EnrichmentDraft {
		t.Errorf("Expected degraded [draft], got %v", res.Degraded)
	}
}

func TestIngestOne_ScoreFailureSkipsDraft(t *testing.T) {
	h := newTestHarness(t)
	h.scorer.ScoreFunc = func(ctx context.Context, title, content string) (*models.Score, error) {
		return nil, errors.New("quota exceeded")
	}

	res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Article.RelevanceScore != nil || res.Article.Summary != nil {
		t.Error("Expected absent scores")
	}
	if _, drafts := h.scorer.Calls(); drafts != 0 {
		t.Errorf("Expected no draft call without a score, got %d", drafts)
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != models.EnrichmentScore {
		t.Errorf("Expected degraded [score], got %v", res.Degraded)
	}
}

func TestIngestOne_EmbeddingFailureSkipsIndex(t *testing.T) {
	h := newTestHarness(t)
	h.embedder.EmbedFunc = func(ctx context.Context, text string) ([]float64, error) {
		return nil, errors.New("embedding unavailable")
	}

	res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated {
		t.Fatalf("Expected created, got %s", res.Status)
	}
	if h.index.Len() != 0 {
		t.Errorf("Expected empty index, got %d", h.index.Len())
	}
	if len(res.Article.Embedding) != 0 {
		t.Error("Expected no stored embedding")
	}
}

func TestIngestOne_ScorerTimeoutDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.AI.Timeout = 20 * time.Millisecond
	h := newTestHarnessWithConfig(t, cfg)

	h.scorer.ScoreFunc = func(ctx context.Context, title, content string) (*models.Score, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Slow", "https://news.example.com/slow"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated || res.Article.RelevanceScore != nil {
		t.Errorf("Expected created without scores, got %s", res.Status)
	}
}

func TestIngestOne_ScorerPanicDegrades(t *testing.T) {
	h := newTestHarness(t)
	h.scorer.ScoreFunc = func(ctx context.Context, title, content string) (*models.Score, error) {
		panic("boom")
	}

	res, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story"))
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if res.Status != models.IngestCreated {
		t.Errorf("Expected created, got %s", res.Status)
	}
}

func TestIngestOne_TruncatesAdapterInput(t *testing.T) {
	h := newTestHarness(t)

	var scoredChars int
	h.scorer.ScoreFunc = func(ctx context.Context, title, content string) (*models.Score, error) {
		scoredChars = utf8.RuneCountInString(content)
		return &models.Score{Relevance: 2, Newsworthiness: 2, Summary: "s"}, nil
	}
	var embedded string
	h.embedder.EmbedFunc = func(ctx context.Context, text string) ([]float64, error) {
		embedded = text
		return []float64{1, 1}, nil
	}

	c := candidate("Long", "https://news.example.com/long")
	c.Content = strings.Repeat("\u00fc", 12000)

	res, err := h.services.Ingest.IngestOne(context.Background(), c)
	if err != nil {
		t.Fatalf("IngestOne failed: %v", err)
	}
	if scoredChars != 2000 {
		t.Errorf("Expected 2000 chars sent to scorer, got %d", scoredChars)
	}
	if n := utf8.RuneCountInString(embedded); n != len("Long ")+500 {
		t.Errorf("Expected title plus 500 chars embedded, got %d", n)
	}
	if n := utf8.RuneCountInString(res.Article.Content); n != models.MaxContentLength {
		t.Errorf("Expected stored content capped at %d, got %d", models.MaxContentLength, n)
	}
}

func TestIngestOne_InvalidCandidate(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Ingest.IngestOne(context.Background(), models.Candidate{URL: "ftp://example.com/x"})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if score, _ := h.scorer.Calls(); score != 0 {
		t.Errorf("Expected no AI calls, got %d", score)
	}
	if h.articles.Count() != 0 {
		t.Errorf("Expected nothing stored, got %d", h.articles.Count())
	}
}

func TestIngestOne_StorageFailure(t *testing.T) {
	h := newTestHarness(t)
	h.articles.CreateError = errors.New("connection reset")

	if _, err := h.services.Ingest.IngestOne(context.Background(), candidate("Story", "https://news.example.com/story")); err == nil {
		t.Error("Expected storage error to be returned")
	}
	if h.index.Len() != 0 {
		t.Errorf("Expected nothing indexed after a failed insert, got %d", h.index.Len())
	}
}

func TestIngestOne_ConcurrentSameURL(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// Hold every insert until all workers have passed the URL lookup
	const workers = 8
	var arrived sync.WaitGroup
	arrived.Add(workers)
	release := make(chan struct{})
	h.articles.BeforeCreate = func(*models.Article) {
		arrived.Done()
		<-release
	}
	go func() {
		arrived.Wait()
		close(release)
	}()

	// Distinct texts keep the similarity check out of the way
	results := make([]*models.IngestResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := candidate("Race", "https://news.example.com/race")
			c.Content = strings.Repeat("x", i+1)
			res, err := h.services.Ingest.IngestOne(ctx, c)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	created, duplicates := 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.Status {
		case models.IngestCreated:
			created++
		case models.IngestDuplicate:
			duplicates++
		}
	}
	if created != 1 || duplicates != workers-1 {
		t.Errorf("Expected 1 created and %d duplicates, got %d and %d", workers-1, created, duplicates)
	}
	if h.articles.Count() != 1 {
		t.Errorf("Expected 1 stored article, got %d", h.articles.Count())
	}
}

func TestIngestBatch_OrderAndCounts(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	existing := h.seedArticle(t, models.StatusPending, nil)

	candidates := []models.Candidate{
		candidate("First", "https://news.example.com/1"),
		{Title: "Known", URL: existing.URL, Content: "c"},
		{Title: "", URL: "https://news.example.com/no-title"},
		candidate("Second", "https://news.example.com/2"),
		{Title: "First again", URL: "https://news.example.com/1", Content: "other"},
	}

	summary, err := h.services.Ingest.IngestBatch(ctx, candidates)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	if summary.Fetched != 5 {
		t.Errorf("Expected fetched 5, got %d", summary.Fetched)
	}
	if summary.New != 2 || summary.Duplicates != 2 || summary.Errors != 1 {
		t.Errorf("Expected 2 new, 2 duplicates, 1 error, got %d/%d/%d", summary.New, summary.Duplicates, summary.Errors)
	}
	if len(summary.Articles) != len(candidates) {
		t.Fatalf("Expected %d items, got %d", len(candidates), len(summary.Articles))
	}

	for i, item := range summary.Articles {
		if item.URL == "" || item.Title != candidates[i].Title && item.Status != models.IngestCreated {
			t.Errorf("item %d out of order: %+v", i, item)
		}
	}
	if summary.Articles[1].Status != models.IngestDuplicate || summary.Articles[1].ArticleID != existing.ID {
		t.Errorf("Expected item 1 to duplicate %s, got %+v", existing.ID, summary.Articles[1])
	}
	if summary.Articles[2].Status != models.IngestError || summary.Articles[2].Error == "" {
		t.Errorf("Expected item 2 to be an error, got %+v", summary.Articles[2])
	}
	if summary.Articles[3].Status != models.IngestCreated || summary.Articles[3].Relevance == nil {
		t.Errorf("Expected item 3 created with scores, got %+v", summary.Articles[3])
	}
}

func TestIngestBatch_Empty(t *testing.T) {
	h := newTestHarness(t)

	summary, err := h.services.Ingest.IngestBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if summary.Fetched != 0 || len(summary.Articles) != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}

func TestIngestBatch_CancelledContext(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates := []models.Candidate{
		candidate("A", "https://news.example.com/a"),
		candidate("B", "https://news.example.com/b"),
	}
	summary, err := h.services.Ingest.IngestBatch(ctx, candidates)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(summary.Articles) != 2 {
		t.Fatalf("Expected an item per candidate, got %d", len(summary.Articles))
	}
	if summary.New+summary.Errors != 2 {
		t.Errorf("Expected every candidate accounted for, got %+v", summary)
	}
}

func TestFetchAndIngest_ReportsFeedErrors(t *testing.T) {
	h := newTestHarness(t)
	h.feeds.Candidates = []models.Candidate{
		candidate("Feed A", "https://a.example.com/1"),
		candidate("Feed B", "https://b.example.com/1"),
	}
	h.feeds.Failures = []models.FeedFailure{{Source: "Broken", Error: "HTTP 500"}}

	summary, err := h.services.Ingest.FetchAndIngest(context.Background())
	if err != nil {
		t.Fatalf("FetchAndIngest failed: %v", err)
	}
	if summary.New != 2 {
		t.Errorf("Expected 2 new, got %d", summary.New)
	}
	if len(summary.FeedErrors) != 1 || summary.FeedErrors[0].Source != "Broken" {
		t.Errorf("Expected feed error for Broken, got %v", summary.FeedErrors)
	}

	// Second run finds only duplicates
	summary, _ = h.services.Ingest.FetchAndIngest(context.Background())
	if summary.New != 0 || summary.Duplicates != 2 {
		t.Errorf("Expected 2 duplicates on refetch, got new=%d dup=%d", summary.New, summary.Duplicates)
	}
}

func TestImportStream_NDJSON(t *testing.T) {
	h := newTestHarness(t)

	body := strings.Join([]string{
		`{"title":"One","url":"https://news.example.com/one","content":"a"}`,
		``,
		`{"title":"Two",`,
		`{"title":"Three","url":"https://news.example.com/three","content":"b"}`,
	}, "\n")

	summary, err := h.services.Ingest.ImportStream(context.Background(), strings.NewReader(body), "ndjson")
	if err != nil {
		t.Fatalf("ImportStream failed: %v", err)
	}
	if summary.New != 2 {
		t.Errorf("Expected 2 new, got %d", summary.New)
	}
	if summary.Errors != 1 || summary.Fetched != 3 {
		t.Errorf("Expected 3 fetched and 1 error, got %d/%d", summary.Fetched, summary.Errors)
	}
	if len(summary.Rejected) != 1 || summary.Rejected[0].Line != 3 {
		t.Errorf("Expected line 3 rejected, got %v", summary.Rejected)
	}
}

func TestImportStream_JSONArray(t *testing.T) {
	h := newTestHarness(t)

	body := `[{"title":"One","url":"https://news.example.com/one"},{"title":"Two","url":"https://news.example.com/two"}]`
	summary, err := h.services.Ingest.ImportStream(context.Background(), strings.NewReader(body), "json")
	if err != nil {
		t.Fatalf("ImportStream failed: %v", err)
	}
	if summary.New != 2 {
		t.Errorf("Expected 2 new, got %d", summary.New)
	}

	_, err = h.services.Ingest.ImportStream(context.Background(), strings.NewReader(`{"title":"x"}`), "json")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for a non-array body, got %v", err)
	}
}

func TestImportStream_UnsupportedFormat(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Ingest.ImportStream(context.Background(), strings.NewReader(""), "xml")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
