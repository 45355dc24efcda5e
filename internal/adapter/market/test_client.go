package market

import (
	"context"
	"errors"
	"sync"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

// TestMarketData is a scriptable in-memory market data source.
type TestMarketData struct {
	mu       sync.Mutex
	Snapshot *domain.ForecastSnapshot
	Fail     bool
	Calls    int
}

func (m *TestMarketData) Refresh(ctx context.Context) (*domain.ForecastSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Fail || m.Snapshot == nil {
		return nil, errors.New("test market: refresh failure")
	}
	snap := *m.Snapshot
	return &snap, nil
}

func (m *TestMarketData) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// TestBidTransport records submitted bids.
type TestBidTransport struct {
	mu       sync.Mutex
	Fail     bool
	FastBids []domain.Bid
	DayAhead []domain.HourlyBid
}

func (t *TestBidTransport) SubmitFastBid(ctx context.Context, bid domain.Bid) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Fail {
		return errors.New("test transport: submit failure")
	}
	t.FastBids = append(t.FastBids, bid)
	return nil
}

func (t *TestBidTransport) SubmitDayAheadBid(ctx context.Context, bid domain.HourlyBid) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Fail {
		return errors.New("test transport: submit failure")
	}
	t.DayAhead = append(t.DayAhead, bid)
	return nil
}

func (t *TestBidTransport) SubmittedFastBids() []domain.Bid {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Bid, len(t.FastBids))
	copy(out, t.FastBids)
	return out
}

func (t *TestBidTransport) SubmittedDayAheadBids() []domain.HourlyBid {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.HourlyBid, len(t.DayAhead))
	copy(out, t.DayAhead)
	return out
}
