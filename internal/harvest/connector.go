package harvest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// FeedEntry is one raw news entry fetched from a feed, before storage.
type FeedEntry struct {
	Title       string
	Link        string
	Summary     string
	Source      string
	PublishedAt *time.Time
}

// Connector fetches a bounded batch of news entries from a feed source.
type Connector interface {
	// Name identifies the connector for logging.
	Name() string

	// Fetch retrieves up to limit entries.
	Fetch(ctx context.Context, limit int) ([]FeedEntry, error)
}

// FeedConnector fetches articles from RSS 2.0 and Atom feeds.
type FeedConnector struct {
	feeds   []string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewFeedConnector creates a connector over the given feed URLs.
func NewFeedConnector(feeds []string, timeout time.Duration, logger *slog.Logger) *FeedConnector {
	return &FeedConnector{
		feeds:   feeds,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name identifies the connector.
func (c *FeedConnector) Name() string {
	return "feeds"
}

// rss represents the RSS 2.0 feed structure.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// atomFeed represents the Atom feed structure.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Link  struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

// Fetch retrieves entries from all configured feeds. A single feed failure
// aborts the batch: the harvester surfaces one error rather than silently
// committing a partial window.
func (c *FeedConnector) Fetch(ctx context.Context, limit int) ([]FeedEntry, error) {
	var all []FeedEntry

	for _, feedURL := range c.feeds {
		entries, err := c.fetchFeed(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
		}

		c.logger.Debug("feed fetched", "url", feedURL, "entries", len(entries))
		all = append(all, entries...)

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
	}

	return all, nil
}

func (c *FeedConnector) fetchFeed(ctx context.Context, feedURL string) ([]FeedEntry, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "trendwatch/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	return parseFeed(body, feedSourceName(feedURL))
}

// parseFeed decodes RSS 2.0 first and falls back to Atom.
func parseFeed(body []byte, source string) ([]FeedEntry, error) {
	var r rss
	if err := xml.Unmarshal(body, &r); err == nil && len(r.Channel.Items) > 0 {
		entries := make([]FeedEntry, 0, len(r.Channel.Items))
		for _, item := range r.Channel.Items {
			entries = append(entries, FeedEntry{
				Title:       strings.TrimSpace(item.Title),
				Link:        strings.TrimSpace(item.Link),
				Summary:     stripHTML(item.Description),
				Source:      source,
				PublishedAt: parseFeedTime(item.PubDate),
			})
		}
		return entries, nil
	}

	var a atomFeed
	if err := xml.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(a.Entries))
	for _, entry := range a.Entries {
		summary := entry.Summary
		if summary == "" {
			summary = entry.Content
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		entries = append(entries, FeedEntry{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(entry.Link.Href),
			Summary:     stripHTML(summary),
			Source:      source,
			PublishedAt: parseFeedTime(published),
		})
	}
	return entries, nil
}

// parseFeedTime parses the messy date formats feeds emit. Unparseable dates
// are dropped rather than guessed.
func parseFeedTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// stripHTML flattens feed summary markup to plain text.
func stripHTML(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return strings.TrimSpace(text)
}

func feedSourceName(feedURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(feedURL, "https://"), "http://")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimPrefix(trimmed, "www.")
}
