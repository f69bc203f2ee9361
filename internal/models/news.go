package models

import (
	"net/url"
	"strings"
	"time"
)

// NewsItem represents a single harvested news entry. Items are append-only:
// once stored they are never deleted, and only title/summary may be backfilled.
type NewsItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NormalizeURL canonicalizes a news URL for identity comparison: lowercased
// scheme/host, no fragment, no trailing slash, tracking parameters stripped.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(strings.ToLower(raw))
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// MateriallyDiffers reports whether an incoming entry carries a title or
// summary change worth persisting over the stored item.
func (n *NewsItem) MateriallyDiffers(title, summary string) bool {
	if title != "" && title != n.Title {
		return true
	}
	if summary != "" && summary != n.Summary {
		return true
	}
	return false
}
