package port

import (
	"context"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

// MarketData supplies price/demand forecasts and the competitor count.
type MarketData interface {
	// Refresh pulls a fresh forecast snapshot. On error the caller keeps
	// the previous snapshot in force.
	Refresh(ctx context.Context) (*domain.ForecastSnapshot, error)
}

// BidTransport submits offers to the utility's order book.
type BidTransport interface {
	SubmitFastBid(ctx context.Context, bid domain.Bid) error
	SubmitDayAheadBid(ctx context.Context, bid domain.HourlyBid) error
}
