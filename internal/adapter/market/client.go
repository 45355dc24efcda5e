// Package market implements the HTTP market data source and bid transport.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/port"

	"go.uber.org/zap"
)

type forecastDocument struct {
	Prices      []float64 `json:"prices"`
	Demand      []float64 `json:"demand"`
	Competitors int       `json:"competitors"`
}

// ForecastClient pulls hourly price/demand forecasts from the utility
// forecast endpoint.
type ForecastClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewForecastClient(url string, timeout time.Duration, logger *zap.Logger) *ForecastClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ForecastClient{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *ForecastClient) Refresh(ctx context.Context) (*domain.ForecastSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast endpoint returned status %d", resp.StatusCode)
	}

	var doc forecastDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return snapshotFromDocument(doc, time.Now())
}

func snapshotFromDocument(doc forecastDocument, at time.Time) (*domain.ForecastSnapshot, error) {
	if len(doc.Prices) != domain.HoursPerDay || len(doc.Demand) != domain.HoursPerDay {
		return nil, errors.New("forecast document must carry 24 prices and 24 demand values")
	}
	if doc.Competitors < 0 {
		return nil, errors.New("forecast competitor count must be >= 0")
	}
	snap := &domain.ForecastSnapshot{
		Competitors: doc.Competitors,
		RetrievedAt: at,
	}
	for i := 0; i < domain.HoursPerDay; i++ {
		// non-finite values are failed reads, not data
		if !finite(doc.Prices[i]) || !finite(doc.Demand[i]) {
			return nil, errors.New("forecast document contains non-finite values")
		}
		snap.Prices[i] = doc.Prices[i]
		snap.Demand[i] = doc.Demand[i]
	}
	return snap, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ensure interface compliance
var _ port.MarketData = (*ForecastClient)(nil)
