package publishing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
)

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Twitter publishes through the X API v2 with a user access token
type Twitter struct {
	apiURL string
	token  string
	client *http.Client
	log    zerolog.Logger
}

// NewTwitter creates a Twitter publisher
func NewTwitter(apiURL, token string, client *http.Client, log zerolog.Logger) *Twitter {
	return &Twitter{
		apiURL: apiURL,
		token:  token,
		client: client,
		log:    log.With().Str("platform", string(models.PlatformTwitter)).Logger(),
	}
}

func (t *Twitter) Platform() models.Platform {
	return models.PlatformTwitter
}

// Publish creates a tweet
func (t *Twitter) Publish(ctx context.Context, post Post) (string, error) {
	if t.token == "" {
		return "", fmt.Errorf("%s: %w", models.PlatformTwitter, ErrNotConfigured)
	}

	var resp tweetResponse
	if err := postJSON(ctx, t.client, models.PlatformTwitter, t.apiURL, t.token, tweetRequest{Text: post.Text}, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("%s: response carried no tweet id", models.PlatformTwitter)
	}

	t.log.Debug().Str("post_id", resp.Data.ID).Msg("Tweet created")
	return resp.Data.ID, nil
}
