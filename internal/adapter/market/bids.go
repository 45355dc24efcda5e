package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// prices and capacities are rounded to 4 decimal places on the wire
const wirePrecision = 4

// BidClient submits offers to the utility order book endpoint with
// capacity/price (and hour, for day-ahead) query parameters.
type BidClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewBidClient(bidURL string, timeout time.Duration, logger *zap.Logger) *BidClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BidClient{
		url: bidURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *BidClient) SubmitFastBid(ctx context.Context, bid domain.Bid) error {
	q := url.Values{}
	q.Set("capacity", wireNumber(bid.CapacityKWh))
	q.Set("price", wireNumber(bid.Price))
	return c.post(ctx, q)
}

func (c *BidClient) SubmitDayAheadBid(ctx context.Context, bid domain.HourlyBid) error {
	q := url.Values{}
	q.Set("capacity", wireNumber(bid.CapacityKWh))
	q.Set("price", wireNumber(bid.Price))
	q.Set("hour", strconv.Itoa(bid.Hour))
	return c.post(ctx, q)
}

func (c *BidClient) post(ctx context.Context, query url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bid endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func wireNumber(x float64) string {
	return decimal.NewFromFloat(x).Round(wirePrecision).String()
}

// ensure interface compliance
var _ port.BidTransport = (*BidClient)(nil)
