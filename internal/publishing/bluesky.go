package publishing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/models"
	"golang.org/x/sync/singleflight"
)

type blueskySession struct {
	AccessJwt string `json:"accessJwt"`
	Did       string `json:"did"`
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type facetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type facetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

type facet struct {
	Index    facetIndex     `json:"index"`
	Features []facetFeature `json:"features"`
}

type feedPost struct {
	Type      string  `json:"$type"`
	Text      string  `json:"text"`
	CreatedAt string  `json:"createdAt"`
	Facets    []facet `json:"facets,omitempty"`
}

type createRecordRequest struct {
	Repo       string   `json:"repo"`
	Collection string   `json:"collection"`
	Record     feedPost `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Bluesky publishes through an AT Protocol PDS using an app password. The
// session is created on first use and shared; concurrent callers wait on a
// single login.
type Bluesky struct {
	pdsURL   string
	handle   string
	password string
	client   *http.Client
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *blueskySession
	login   singleflight.Group
}

// NewBluesky creates a Bluesky publisher
func NewBluesky(pdsURL, handle, password string, client *http.Client, log zerolog.Logger) *Bluesky {
	return &Bluesky{
		pdsURL:   strings.TrimRight(pdsURL, "/"),
		handle:   handle,
		password: password,
		client:   client,
		log:      log.With().Str("platform", string(models.PlatformBluesky)).Logger(),
		now:      time.Now,
	}
}

func (b *Bluesky) Platform() models.Platform {
	return models.PlatformBluesky
}

// Publish creates an app.bsky.feed.post record. An expired session is
// renewed once.
func (b *Bluesky) Publish(ctx context.Context, post Post) (string, error) {
	if b.handle == "" || b.password == "" {
		return "", fmt.Errorf("%s: %w", models.PlatformBluesky, ErrNotConfigured)
	}

	session, err := b.acquireSession(ctx)
	if err != nil {
		return "", err
	}

	uri, err := b.createRecord(ctx, session, post)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
		b.invalidate(session)
		if session, err = b.acquireSession(ctx); err != nil {
			return "", err
		}
		uri, err = b.createRecord(ctx, session, post)
	}
	if err != nil {
		return "", err
	}

	b.log.Debug().Str("post_id", uri).Msg("Bluesky post created")
	return uri, nil
}

func (b *Bluesky) acquireSession(ctx context.Context) (*blueskySession, error) {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()
	if session != nil {
		return session, nil
	}

	v, err, _ := b.login.Do("session", func() (interface{}, error) {
		b.mu.Lock()
		current := b.session
		b.mu.Unlock()
		if current != nil {
			return current, nil
		}

		var s blueskySession
		req := createSessionRequest{Identifier: b.handle, Password: b.password}
		if err := postJSON(ctx, b.client, models.PlatformBluesky, b.pdsURL+"/xrpc/com.atproto.server.createSession", "", req, &s); err != nil {
			return nil, fmt.Errorf("bluesky login: %w", err)
		}
		if s.AccessJwt == "" || s.Did == "" {
			return nil, fmt.Errorf("bluesky login: incomplete session")
		}

		b.mu.Lock()
		b.session = &s
		b.mu.Unlock()
		b.log.Info().Str("did", s.Did).Msg("Bluesky session established")
		return &s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*blueskySession), nil
}

func (b *Bluesky) invalidate(stale *blueskySession) {
	b.mu.Lock()
	if b.session == stale {
		b.session = nil
	}
	b.mu.Unlock()
}

func (b *Bluesky) createRecord(ctx context.Context, session *blueskySession, post Post) (string, error) {
	record := feedPost{
		Type:      "app.bsky.feed.post",
		Text:      post.Text,
		CreatedAt: b.now().UTC().Format(time.RFC3339),
		Facets:    linkFacets(post.Text, post.Link),
	}

	var resp createRecordResponse
	req := createRecordRequest{Repo: session.Did, Collection: "app.bsky.feed.post", Record: record}
	if err := postJSON(ctx, b.client, models.PlatformBluesky, b.pdsURL+"/xrpc/com.atproto.repo.createRecord", session.AccessJwt, req, &resp); err != nil {
		return "", err
	}
	if resp.URI == "" {
		return "", fmt.Errorf("%s: response carried no record uri", models.PlatformBluesky)
	}
	return resp.URI, nil
}

// linkFacets marks the trailing link as a rich-text link. Offsets are UTF-8
// byte positions.
func linkFacets(text, link string) []facet {
	if link == "" {
		return nil
	}
	start := strings.LastIndex(text, link)
	if start < 0 {
		return nil
	}
	return []facet{{
		Index:    facetIndex{ByteStart: start, ByteEnd: start + len(link)},
		Features: []facetFeature{{Type: "app.bsky.richtext.facet#link", URI: link}},
	}}
}
