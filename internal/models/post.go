package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform is a social network the coordinator can publish to
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformBluesky Platform = "bluesky"
)

// CharLimit returns the hard character limit of the platform
func (p Platform) CharLimit() int {
	switch p {
	case PlatformTwitter:
		return 280
	case PlatformBluesky:
		return 300
	}
	return 0
}

// AllowsLink reports whether the article URL is appended to the post body
func (p Platform) AllowsLink() bool {
	switch p {
	case PlatformTwitter, PlatformBluesky:
		return true
	}
	return false
}

// ParsePlatform converts a boundary value into a Platform
func ParsePlatform(value string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(value)))
	switch p {
	case PlatformTwitter, PlatformBluesky:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, value)
}

// ParsePlatforms validates a requested platform set, collapsing duplicates
// while keeping request order. An empty set is invalid.
func ParsePlatforms(values []string) ([]Platform, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrInvalidInput)
	}
	seen := make(map[Platform]bool, len(values))
	platforms := make([]Platform, 0, len(values))
	for _, v := range values {
		p, err := ParsePlatform(v)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	return platforms, nil
}

// PublishedPost records one successful platform publication
type PublishedPost struct {
	ID           string    `json:"id" db:"id"`
	ArticleID    string    `json:"article_id" db:"article_id"`
	Platform     Platform  `json:"platform" db:"platform"`
	RemotePostID string    `json:"remote_post_id" db:"remote_post_id"`
	Text         string    `json:"text" db:"text"`
	PublishedAt  time.Time `json:"published_at" db:"published_at"`
}

// PublishResult is the per-platform outcome of a publish request
type PublishResult struct {
	Platform     Platform `json:"platform"`
	Success      bool     `json:"success"`
	RemotePostID string   `json:"post_id,omitempty"`
	Text         string   `json:"text,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// PublishRequest is the API payload for POST /v1/publish
type PublishRequest struct {
	ArticleID  string   `json:"article_id"`
	Platforms  []string `json:"platforms"`
	CustomText string   `json:"custom_text,omitempty"`
}
