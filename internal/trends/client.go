package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/models"
)

// HTTPProbe queries an external trend-measurement API over HTTP.
type HTTPProbe struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProbe creates a probe against the configured trends API.
func NewHTTPProbe(cfg config.TrendsConfig, logger *slog.Logger) *HTTPProbe {
	return &HTTPProbe{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// wire format of the trends API interest-over-time endpoint.
type probeResponse struct {
	Keyword string `json:"keyword"`
	Points  []struct {
		Time  time.Time `json:"time"`
		Value float64   `json:"value"`
	} `json:"points"`
	RisingQueries []string `json:"rising_queries"`
	Cost          float64  `json:"cost"`
}

// Measure fetches the interest series and related rising queries for one
// keyword. The call is bounded by the configured per-call timeout.
func (p *HTTPProbe) Measure(ctx context.Context, query models.TrendQuery) (*models.TrendResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/interest?%s", p.baseURL, url.Values{
		"keyword":   {query.Keyword},
		"locale":    {query.Locale},
		"timeframe": {query.Timeframe},
	}.Encode())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build trends request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError("trends", err)
	}
	defer resp.Body.Close()

	p.logger.Debug("trend probe call complete",
		"keyword", query.Keyword,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.NewUpstreamError("trends", fmt.Errorf("rate limited"))
	case resp.StatusCode != http.StatusOK:
		return nil, models.NewUpstreamError("trends", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, models.NewUpstreamError("trends", fmt.Errorf("malformed response: %w", err))
	}

	result := &models.TrendResult{
		Keyword:       query.Keyword,
		Locale:        query.Locale,
		Timeframe:     query.Timeframe,
		RisingQueries: body.RisingQueries,
		Cost:          body.Cost,
	}
	for _, pt := range body.Points {
		result.Series = append(result.Series, models.TrendPoint{Time: pt.Time, Value: pt.Value})
	}

	return result, nil
}
