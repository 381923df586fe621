package validation

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/twax-curation-api/internal/models"
)

// DefaultSource labels candidates pushed without a source
const DefaultSource = "manual"

// maxTitleLength caps titles in runes
const maxTitleLength = 500

// trackingParams are dropped from URLs during canonicalization
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref_src": true,
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Errors is a list of field errors; it wraps models.ErrInvalidInput
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Field + ": " + v.Message
	}
	return strings.Join(parts, "; ")
}

func (e Errors) Unwrap() error {
	return models.ErrInvalidInput
}

// Validator checks and normalizes inbound candidates
type Validator struct {
	now func() time.Time
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// ValidateCandidate returns a normalized copy of c: trimmed title, canonical
// URL, default source and content capped at models.MaxContentLength runes.
func (v *Validator) ValidateCandidate(c models.Candidate) (models.Candidate, error) {
	var errs Errors
	out := models.Candidate{
		Title:       strings.Join(strings.Fields(c.Title), " "),
		Content:     strings.TrimSpace(c.Content),
		Source:      strings.TrimSpace(c.Source),
		PublishedAt: c.PublishedAt,
	}

	if out.Title == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "title is required"})
	} else if n := utf8.RuneCountInString(out.Title); n > maxTitleLength {
		errs = append(errs, ValidationError{Field: "title", Message: fmt.Sprintf("title exceeds %d characters (has %d)", maxTitleLength, n)})
	}

	if strings.TrimSpace(c.URL) == "" {
		errs = append(errs, ValidationError{Field: "url", Message: "url is required"})
	} else if canonical, err := CanonicalURL(c.URL); err != nil {
		errs = append(errs, ValidationError{Field: "url", Message: err.Error(), Value: c.URL})
	} else {
		out.URL = canonical
	}

	if out.Source == "" {
		out.Source = DefaultSource
	}
	out.Content = TruncateRunes(out.Content, models.MaxContentLength)

	if out.PublishedAt != nil && out.PublishedAt.After(v.now().Add(24*time.Hour)) {
		errs = append(errs, ValidationError{Field: "published_at", Message: "published_at is in the future", Value: out.PublishedAt.Format(time.RFC3339)})
	}

	if len(errs) > 0 {
		return models.Candidate{}, errs
	}
	return out, nil
}

// CanonicalURL normalizes an article URL so that trivially different links
// to the same page compare equal: lowercase scheme and host, no default port,
// no fragment, tracking parameters removed and query keys sorted.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url scheme must be http or https")
	}
	if u.Host == "" {
		return "", fmt.Errorf("url host is required")
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}

	query := u.Query()
	for k := range query {
		if strings.HasPrefix(strings.ToLower(k), "utm_") || trackingParams[strings.ToLower(k)] {
			query.Del(k)
		}
	}
	// Encode sorts by key
	u.RawQuery = query.Encode()
	u.ForceQuery = false

	return u.String(), nil
}

// IsValidID reports whether s is a well-formed article id
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// TruncateRunes cuts s to at most limit runes without splitting a codepoint
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}
	return s
}
