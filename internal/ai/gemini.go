// Package ai talks to Gemini for article scoring, post drafting and
// embeddings.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/models"
	"google.golang.org/genai"
)

// ErrDisabled is returned by every call when no API key is configured
var ErrDisabled = errors.New("gemini client disabled: GEMINI_API_KEY is not set")

// ErrEmptyResponse is returned when the model produced no usable candidate
var ErrEmptyResponse = errors.New("gemini returned an empty response")

const scoringPrompt = `You curate technology news for a social account that covers AI, machine learning and the wider tech industry.

Rate the article below.
- relevance: 1-10, how interesting this is to AI/ML and tech readers
- newsworthiness: 1-10, how timely and significant the news is
- summary: the key takeaway in a single sentence of at most 280 characters

Title: %s

Content:
%s
`

const draftPrompt = `You write posts for a tech news account on X and Bluesky.

Write one post about the article below.
- at most 260 characters; a link is appended separately
- lead with the most newsworthy fact and stay strictly accurate
- professional, engaging tone
- no hashtags inside the text; return one or two in the hashtags list

Title: %s

Content:
%s
%s`

// modelAPI is the subset of genai.Models the client uses
type modelAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client scores, drafts and embeds articles with Gemini
type Client struct {
	models         modelAPI
	model          string
	embeddingModel string
	temperature    float32
	dimensions     int
	log            zerolog.Logger
}

// NewClient establishes the Gemini client once at startup
func NewClient(ctx context.Context, cfg config.AIConfig, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return newClient(client.Models, cfg, log), nil
}

func newClient(api modelAPI, cfg config.AIConfig, log zerolog.Logger) *Client {
	return &Client{
		models:         api,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    float32(cfg.Temperature),
		dimensions:     cfg.EmbeddingDimensions,
		log:            log.With().Str("service", "gemini").Logger(),
	}
}

type scoreResponse struct {
	Relevance      int    `json:"relevance"`
	Newsworthiness int    `json:"newsworthiness"`
	Summary        string `json:"summary"`
}

type draftResponse struct {
	Post     string   `json:"post"`
	Hashtags []string `json:"hashtags"`
}

// Score rates an article's relevance and newsworthiness and summarises it
func (c *Client) Score(ctx context.Context, title, content string) (*models.Score, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"relevance":      {Type: genai.TypeInteger, Minimum: genai.Ptr(1.0), Maximum: genai.Ptr(10.0)},
			"newsworthiness": {Type: genai.TypeInteger, Minimum: genai.Ptr(1.0), Maximum: genai.Ptr(10.0)},
			"summary":        {Type: genai.TypeString},
		},
		Required: []string{"relevance", "newsworthiness", "summary"},
	}

	text, err := c.generate(ctx, fmt.Sprintf(scoringPrompt, title, content), schema)
	if err != nil {
		return nil, err
	}
	return parseScore(text)
}

// DraftPost proposes a social post. feedback, when non-empty, is a reviewer
// note to take into account.
func (c *Client) DraftPost(ctx context.Context, title, content, feedback string) (*models.Draft, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"post":     {Type: genai.TypeString},
			"hashtags": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, MaxItems: genai.Ptr[int64](models.MaxHashtags)},
		},
		Required: []string{"post", "hashtags"},
	}

	feedbackSection := ""
	if strings.TrimSpace(feedback) != "" {
		feedbackSection = "\nReviewer feedback to address: " + strings.TrimSpace(feedback) + "\n"
	}

	text, err := c.generate(ctx, fmt.Sprintf(draftPrompt, title, content, feedbackSection), schema)
	if err != nil {
		return nil, err
	}
	return parseDraft(text)
}

// Embed returns a dense vector for text
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	cfg := &genai.EmbedContentConfig{}
	if c.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(c.dimensions))
	}

	result, err := c.models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}

	values := result.Embeddings[0].Values
	if c.dimensions > 0 && len(values) != c.dimensions {
		return nil, fmt.Errorf("gemini embed: expected %d dimensions, got %d", c.dimensions, len(values))
	}

	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}

func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr(c.temperature),
	}

	result, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil &&
		len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", ErrEmptyResponse
}

func parseScore(text string) (*models.Score, error) {
	var resp scoreResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}

	if !inRange(resp.Relevance) || !inRange(resp.Newsworthiness) {
		return nil, fmt.Errorf("score out of range: relevance=%d newsworthiness=%d", resp.Relevance, resp.Newsworthiness)
	}
	summary := strings.TrimSpace(resp.Summary)
	if n := utf8.RuneCountInString(summary); n > models.MaxSummaryLength {
		return nil, fmt.Errorf("summary is %d characters, limit is %d", n, models.MaxSummaryLength)
	}

	return &models.Score{
		Relevance:      resp.Relevance,
		Newsworthiness: resp.Newsworthiness,
		Summary:        summary,
	}, nil
}

func parseDraft(text string) (*models.Draft, error) {
	var resp draftResponse
	if err := json.Unmarshal([]byte(cleanJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}

	post := strings.TrimSpace(resp.Post)
	if post == "" {
		return nil, fmt.Errorf("draft is empty")
	}
	if n := utf8.RuneCountInString(post); n > models.MaxDraftLength {
		return nil, fmt.Errorf("draft is %d characters, limit is %d", n, models.MaxDraftLength)
	}

	return &models.Draft{Text: post, Hashtags: normalizeHashtags(resp.Hashtags)}, nil
}

// normalizeHashtags strips '#', drops blanks and duplicates, and keeps at
// most MaxHashtags entries.
func normalizeHashtags(raw []string) []string {
	tags := make([]string, 0, models.MaxHashtags)
	seen := make(map[string]bool)
	for _, t := range raw {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" || strings.ContainsAny(t, " \t\n") {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
		if len(tags) == models.MaxHashtags {
			break
		}
	}
	return tags
}

func inRange(v int) bool {
	return v >= models.MinScore && v <= models.MaxScore
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
