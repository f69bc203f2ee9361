package trends

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/trendwatch/trendwatch/internal/models"
)

// MockProbe returns deterministic synthetic series derived from the keyword,
// used when no trends API is configured and throughout the tests.
type MockProbe struct {
	// Cost charged per measurement.
	CostPerCall float64
	// Rising maps a keyword to the rising queries its result should surface.
	Rising map[string][]string
	// Fail marks keywords whose measurement should error.
	Fail map[string]error
}

// NewMockProbe creates a deterministic probe.
func NewMockProbe() *MockProbe {
	return &MockProbe{CostPerCall: 1.0}
}

// Measure produces a stable pseudo-random series seeded by the keyword.
func (m *MockProbe) Measure(ctx context.Context, query models.TrendQuery) (*models.TrendResult, error) {
	if err, ok := m.Fail[query.Keyword]; ok {
		return nil, models.NewUpstreamError("trends", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, models.NewUpstreamError("trends", err)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(query.Keyword + "|" + query.Locale))
	seed := h.Sum32()

	now := time.Now().UTC().Truncate(time.Hour)
	series := make([]models.TrendPoint, 0, 8)
	for i := 7; i >= 0; i-- {
		value := float64((seed>>(uint(i)%16))%100) + float64(i)
		series = append(series, models.TrendPoint{
			Time:  now.Add(-time.Duration(i) * time.Hour),
			Value: value,
		})
	}

	return &models.TrendResult{
		Keyword:       query.Keyword,
		Locale:        query.Locale,
		Timeframe:     query.Timeframe,
		Series:        series,
		RisingQueries: m.Rising[query.Keyword],
		Cost:          m.CostPerCall,
	}, nil
}
