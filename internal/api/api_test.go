package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/api"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/mocks"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/service"
	"github.com/twax-curation-api/pkg/logger"
)

type testMocks struct {
	ingest     *mocks.MockIngestService
	articles   *mocks.MockArticleService
	moderation *mocks.MockModerationService
	publish    *mocks.MockPublishService
	export     *mocks.MockExportService
}

func setupTestRouter() (*gin.Engine, *testMocks) {
	gin.SetMode(gin.TestMode)

	m := &testMocks{
		ingest:     mocks.NewMockIngestService(),
		articles:   mocks.NewMockArticleService(),
		moderation: &mocks.MockModerationService{},
		publish:    &mocks.MockPublishService{},
		export:     &mocks.MockExportService{},
	}

	services := &service.Services{
		Ingest:     m.ingest,
		Articles:   m.articles,
		Moderation: m.moderation,
		Publish:    m.publish,
		Export:     m.export,
		Poller:     &mocks.MockPollerService{},
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080", MaxBodyBytes: 1024},
	}

	log := zerolog.Nop()
	router := api.NewRouter(services, cfg, log)

	return router, m
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter()

	w := doRequest(router, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != logger.ServiceName {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, m := setupTestRouter()
	m.articles.Articles["a"] = &models.Article{ID: "a", Status: models.StatusPending}
	m.articles.Articles["b"] = &models.Article{ID: "b", Status: models.StatusPending}
	m.articles.Articles["c"] = &models.Article{ID: "c", Status: models.StatusPublished}

	w := doRequest(router, "GET", "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Articles struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		} `json:"articles"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response.Articles.Total != 3 {
		t.Errorf("Expected total 3, got %d", response.Articles.Total)
	}
	if response.Articles.ByStatus["pending"] != 2 || response.Articles.ByStatus["published"] != 1 {
		t.Errorf("Unexpected counts: %v", response.Articles.ByStatus)
	}
}

func TestIngest_CreatedAndDuplicate(t *testing.T) {
	router, m := setupTestRouter()

	w := doRequest(router, "POST", "/v1/articles", `{"title":"T","url":"https://x.example.com/1"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if len(m.ingest.Ingested) != 1 || m.ingest.Ingested[0].Title != "T" {
		t.Errorf("Expected candidate to reach the service, got %v", m.ingest.Ingested)
	}

	m.ingest.IngestOneFunc = func(ctx context.Context, c models.Candidate) (*models.IngestResult, error) {
		return &models.IngestResult{
			Status:    models.IngestDuplicate,
			Article:   &models.Article{ID: "existing"},
			MatchedBy: models.MatchedByURL,
		}, nil
	}
	w = doRequest(router, "POST", "/v1/articles", `{"title":"T","url":"https://x.example.com/1"}`)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for duplicate, got %d", w.Code)
	}

	var res models.IngestResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Status != models.IngestDuplicate || res.MatchedBy != models.MatchedByURL {
		t.Errorf("Expected duplicate by url, got %+v", res)
	}
}

func TestIngest_Validation(t *testing.T) {
	router, m := setupTestRouter()

	w := doRequest(router, "POST", "/v1/articles", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed body, got %d", w.Code)
	}

	m.ingest.IngestOneFunc = func(ctx context.Context, c models.Candidate) (*models.IngestResult, error) {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	w = doRequest(router, "POST", "/v1/articles", `{"url":"https://x.example.com/1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid candidate, got %d", w.Code)
	}
}

func TestIngestBatch_FormatSelection(t *testing.T) {
	router, m := setupTestRouter()

	var gotFormat, gotBody string
	m.ingest.ImportFunc = func(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error) {
		raw, _ := io.ReadAll(r)
		gotFormat, gotBody = format, string(raw)
		return &models.BatchSummary{Fetched: 1, New: 1, Articles: []models.BatchItem{}}, nil
	}

	req := httptest.NewRequest("POST", "/v1/articles/batch", strings.NewReader(`{"title":"a","url":"https://x/1"}`))
	req.Header.Set("Content-Type", "application/x-ndjson")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotFormat != service.FormatNDJSON {
		t.Errorf("Expected ndjson from content type, got %s", gotFormat)
	}
	if !strings.Contains(gotBody, `"title":"a"`) {
		t.Errorf("Expected body to be passed through, got %q", gotBody)
	}

	w = doRequest(router, "POST", "/v1/articles/batch", `[]`)
	if gotFormat != service.FormatJSON {
		t.Errorf("Expected json by default, got %s", gotFormat)
	}

	var summary models.BatchSummary
	json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.New != 1 {
		t.Errorf("Expected summary in response, got %+v", summary)
	}
}

func TestIngestBatch_BodyTooLarge(t *testing.T) {
	router, m := setupTestRouter()
	m.ingest.ImportFunc = func(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error) {
		_, err := io.ReadAll(r)
		return nil, err
	}

	w := doRequest(router, "POST", "/v1/articles/batch", "["+strings.Repeat(" ", 2048)+"]")
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestFetch(t *testing.T) {
	router, m := setupTestRouter()
	m.ingest.FetchFunc = func(ctx context.Context) (*models.BatchSummary, error) {
		return &models.BatchSummary{
			Fetched:    3,
			New:        2,
			Duplicates: 1,
			Articles:   []models.BatchItem{},
			FeedErrors: []models.FeedFailure{{Source: "Wired", Error: "timeout"}},
		}, nil
	}

	w := doRequest(router, "POST", "/v1/fetch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var summary models.BatchSummary
	json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.New != 2 || len(summary.FeedErrors) != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestListArticles_QueryValidation(t *testing.T) {
	router, m := setupTestRouter()
	m.articles.Articles["a"] = &models.Article{ID: "a", Status: models.StatusPending}
	m.articles.Articles["b"] = &models.Article{ID: "b", Status: models.StatusApproved}

	w := doRequest(router, "GET", "/v1/articles?status=pending&order=recent&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if m.articles.LastFilter.Order != models.OrderRecent || m.articles.LastFilter.Limit != 10 {
		t.Errorf("Expected filter to be passed through, got %+v", m.articles.LastFilter)
	}

	var response struct {
		Articles []models.Article `json:"articles"`
		Count    int              `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response.Count != 1 || response.Articles[0].ID != "a" {
		t.Errorf("Expected only the pending article, got %+v", response)
	}

	badQueries := []string{
		"/v1/articles?status=archived",
		"/v1/articles?order=oldest",
		"/v1/articles?limit=zero",
		"/v1/articles?limit=-5",
	}
	for _, path := range badQueries {
		if w := doRequest(router, "GET", path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, w.Code)
		}
	}
}

func TestGetArticle_NotFound(t *testing.T) {
	router, _ := setupTestRouter()

	for _, path := range []string{"/v1/articles/missing", "/v1/articles/missing/posts"} {
		w := doRequest(router, "GET", path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
		}
	}
}

func TestListPosts(t *testing.T) {
	router, m := setupTestRouter()
	m.articles.Articles["a"] = &models.Article{ID: "a", Status: models.StatusPublished}
	m.articles.Posts["a"] = []*models.PublishedPost{{ID: "p1", ArticleID: "a", Platform: models.PlatformBluesky, RemotePostID: "at://x"}}

	w := doRequest(router, "GET", "/v1/articles/a/posts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Posts []models.PublishedPost `json:"posts"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if len(response.Posts) != 1 || response.Posts[0].Platform != models.PlatformBluesky {
		t.Errorf("Unexpected posts: %+v", response.Posts)
	}
}

func TestModerate(t *testing.T) {
	router, m := setupTestRouter()

	var gotAction models.ModerationAction
	var gotEdit *string
	m.moderation.TransitionFunc = func(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error) {
		gotAction, gotEdit = action, editedPost
		return &models.Article{ID: id, Status: models.StatusApproved, EditedPost: editedPost}, nil
	}

	w := doRequest(router, "POST", "/v1/articles/a1/moderate", `{"action":"APPROVE","edited_post":"better"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotAction != models.ActionApprove || gotEdit == nil || *gotEdit != "better" {
		t.Errorf("Expected approve with edit, got %s %v", gotAction, gotEdit)
	}

	w = doRequest(router, "POST", "/v1/articles/a1/moderate", `{"action":"publish"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown action, got %d", w.Code)
	}
}

func TestModerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: cannot approve a rejected article", models.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: edited_post must not be empty", models.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		router, m := setupTestRouter()
		err := tt.err
		m.moderation.TransitionFunc = func(ctx context.Context, id string, action models.ModerationAction, editedPost *string) (*models.Article, error) {
			return nil, err
		}

		w := doRequest(router, "POST", "/v1/articles/a1/moderate", `{"action":"approve"}`)
		if w.Code != tt.code {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.code, w.Code)
		}
	}
}

func TestRegenerate(t *testing.T) {
	router, m := setupTestRouter()
	m.articles.Articles["a"] = &models.Article{ID: "a"}

	var gotFeedback string
	m.articles.RegenerateFunc = func(ctx context.Context, id, feedback string) (*models.Draft, error) {
		gotFeedback = feedback
		return &models.Draft{Text: "new", Hashtags: []string{"Go"}}, nil
	}

	w := doRequest(router, "POST", "/v1/articles/a/regenerate", `{"feedback":"shorter"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotFeedback != "shorter" {
		t.Errorf("Expected feedback 'shorter', got %q", gotFeedback)
	}

	// Body is optional
	w = doRequest(router, "POST", "/v1/articles/a/regenerate", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 without a body, got %d", w.Code)
	}

	m.articles.RegenerateFunc = func(ctx context.Context, id, feedback string) (*models.Draft, error) {
		return nil, fmt.Errorf("%w: quota", models.ErrUpstream)
	}
	w = doRequest(router, "POST", "/v1/articles/a/regenerate", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 on upstream failure, got %d", w.Code)
	}
}

func TestPublish(t *testing.T) {
	router, m := setupTestRouter()
	m.publish.PublishFunc = func(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error) {
		return []models.PublishResult{
			{Platform: models.PlatformTwitter, Success: false, Error: "HTTP 503"},
			{Platform: models.PlatformBluesky, Success: true, RemotePostID: "at://post"},
		}, nil
	}

	w := doRequest(router, "POST", "/v1/publish", `{"article_id":"a1","platforms":["twitter","bluesky"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Results   []models.PublishResult `json:"results"`
		Published bool                   `json:"published"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if !response.Published || len(response.Results) != 2 {
		t.Fatalf("Unexpected response: %s", w.Body.String())
	}
	if response.Results[1].RemotePostID != "at://post" {
		t.Errorf("Expected post id in results, got %+v", response.Results[1])
	}
	if len(m.publish.Requests) != 1 || m.publish.Requests[0].ArticleID != "a1" {
		t.Errorf("Expected request to reach the service, got %+v", m.publish.Requests)
	}
}

func TestPublish_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: no post text", models.ErrPreconditionFailed), http.StatusPreconditionFailed},
		{fmt.Errorf("%w: article is pending", models.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: unknown platform", models.ErrInvalidInput), http.StatusBadRequest},
	}

	for _, tt := range tests {
		router, m := setupTestRouter()
		err := tt.err
		m.publish.PublishFunc = func(ctx context.Context, req models.PublishRequest) ([]models.PublishResult, error) {
			return nil, err
		}

		w := doRequest(router, "POST", "/v1/publish", `{"article_id":"a1","platforms":["twitter"]}`)
		if w.Code != tt.code {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.code, w.Code)
		}
	}
}

func TestExportStream(t *testing.T) {
	router, m := setupTestRouter()

	var gotFormat string
	var gotFilter models.ListFilter
	m.export.StreamArticlesFunc = func(ctx context.Context, w http.ResponseWriter, format string, filter models.ListFilter) error {
		gotFormat, gotFilter = format, filter
		w.Write([]byte("{}\n"))
		return nil
	}

	w := doRequest(router, "GET", "/v1/exports/articles?status=approved", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotFormat != service.FormatNDJSON {
		t.Errorf("Expected ndjson default, got %s", gotFormat)
	}
	if gotFilter.Status == nil || *gotFilter.Status != models.StatusApproved {
		t.Errorf("Expected approved filter, got %+v", gotFilter)
	}

	for _, path := range []string{"/v1/exports/articles?format=xml", "/v1/exports/articles?status=archived"} {
		if w := doRequest(router, "GET", path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, w.Code)
		}
	}
}

func TestDeleteAll_RequiresConfirm(t *testing.T) {
	router, m := setupTestRouter()
	m.articles.Articles["a"] = &models.Article{ID: "a"}

	w := doRequest(router, "DELETE", "/v1/admin/articles", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without confirm, got %d", w.Code)
	}
	if len(m.articles.Articles) != 1 {
		t.Error("Expected nothing deleted without confirm")
	}

	w = doRequest(router, "DELETE", "/v1/admin/articles?confirm=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var response map[string]int64
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["deleted"] != 1 {
		t.Errorf("Expected 1 deleted, got %v", response)
	}
}

func TestCORSHeaders(t *testing.T) {
	router, _ := setupTestRouter()

	w := doRequest(router, "OPTIONS", "/v1/articles", "")

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
	}

	allowOrigin := w.Header().Get("Access-Control-Allow-Origin")
	if allowOrigin != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin '*', got '%s'", allowOrigin)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("Expected DELETE in Access-Control-Allow-Methods")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	router, m := setupTestRouter()
	m.ingest.FetchFunc = func(ctx context.Context) (*models.BatchSummary, error) {
		panic("boom")
	}

	w := doRequest(router, "POST", "/v1/fetch", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 after panic, got %d", w.Code)
	}
}
