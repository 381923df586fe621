// Package publishing sends composed posts to social platforms.
package publishing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
)

// ErrNotConfigured is returned when a platform has no credentials
var ErrNotConfigured = errors.New("publisher not configured")

// Post is the final text for one platform. Link is set when the text ends
// with the article URL.
type Post struct {
	Text string
	Link string
}

// StatusError is a non-2xx platform response
type StatusError struct {
	Platform models.Platform
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Platform, e.Status, e.Body)
}

// Publisher sends a post to one platform and returns the platform's id for it
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, post Post) (string, error)
}

// NewPublishers builds one publisher per supported platform
func NewPublishers(cfg config.PublishConfig, log zerolog.Logger) []Publisher {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return []Publisher{
		NewTwitter(cfg.TwitterAPIURL, cfg.TwitterToken, httpClient, log),
		NewBluesky(cfg.BlueskyPDSURL, cfg.BlueskyHandle, cfg.BlueskyAppKey, httpClient, log),
	}
}

// postJSON sends body as JSON and decodes a 2xx response into out
func postJSON(ctx context.Context, client *http.Client, platform models.Platform, url, bearer string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", platform, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", platform, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Platform: platform, Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", platform, err)
	}
	return nil
}
