package strategy

import (
	"math"
	"testing"

	"github.com/cybergolem/bessbid/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatPrices(p float64) [domain.HoursPerDay]float64 {
	var out [domain.HoursPerDay]float64
	for i := range out {
		out[i] = p
	}
	return out
}

func TestFastDispatchBidProfitable(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	// market price far above marginal cost clears the gate
	bid := s.FastDispatchBid(2.00, 20000, 1, 10, 14, nil)
	require.False(t, bid.Declined())

	// capacity = min((0.8-0.1)*6.5, 6.5*1*0.95) = 4.55
	assert.InDelta(t, 4.55, bid.CapacityKWh, 1e-9)

	// price is the Nash equilibrium price: 2.00 * (1 + 0.3*0.4/3)
	assert.InDelta(t, 2.00*1.04, bid.Price, 1e-9)

	// and never below marginal cost
	mc := s.MarginalCost(14, 0.7, 0)
	assert.GreaterOrEqual(t, bid.Price, mc)
}

func TestFastDispatchBidUnprofitable(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	bid := s.FastDispatchBid(0.05, 20000, 1, 10, 14, nil)
	assert.True(t, bid.Declined())
	assert.Zero(t, bid.CapacityKWh)
	assert.Zero(t, bid.Price)
}

func TestFastDispatchBidAtSOCFloor(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.1)

	bid := s.FastDispatchBid(5.00, 20000, 1, 10, 14, nil)
	assert.True(t, bid.Declined())
	assert.Zero(t, bid.Price)
}

func TestFastDispatchBidWindowLimit(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	// quarter-hour window caps capacity at 6.5*0.25*0.95
	bid := s.FastDispatchBid(2.00, 20000, 0.25, 10, 14, nil)
	require.False(t, bid.Declined())
	assert.InDelta(t, 6.5*0.25*0.95, bid.CapacityKWh, 1e-9)

	// zero window declines
	assert.True(t, s.FastDispatchBid(2.00, 20000, 0, 10, 14, nil).Declined())
}

func TestFastDispatchBidOpportunityCostRaisesFloor(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	// clears with no forecast
	require.False(t, s.FastDispatchBid(2.00, 20000, 1, 10, 14, nil).Declined())

	// an extreme future price makes holding energy more valuable
	future := make([]float64, 24)
	future[0] = 10.0
	bid := s.FastDispatchBid(2.00, 20000, 1, 10, 14, future)
	assert.True(t, bid.Declined())
}

func TestAllocationWeightsSumToOne(t *testing.T) {
	var prices [domain.HoursPerDay]float64
	for i := range prices {
		prices[i] = 0.05 * float64(i%7)
	}
	mask := DerivePeakMask(prices)

	weights := allocationWeights(prices, mask)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDayAheadAllocationFlatPrices(t *testing.T) {
	s := testStrategy(t)

	prices := flatPrices(0.20)
	// ties include: every hour meets the 6th-price threshold
	mask := DerivePeakMask(prices)
	for h, m := range mask {
		require.True(t, m, "hour %d must be marked on flat prices", h)
	}

	bids := s.DayAheadAllocation(prices, mask)
	require.Len(t, bids, 24)

	total := 0.0
	for h, b := range bids {
		assert.Equal(t, h, b.Hour)
		// flat prices, uniform mask: 1/24 of the budget each
		assert.InDelta(t, 5.2/24, b.CapacityKWh, 1e-9)
		total += b.CapacityKWh
	}
	// budget = 6.5 * (0.9 - 0.1)
	assert.InDelta(t, 5.2, total, 1e-9)
}

func TestDayAheadAllocationAllOffPeak(t *testing.T) {
	s := testStrategy(t)

	var mask [domain.HoursPerDay]bool
	bids := s.DayAheadAllocation(flatPrices(0.20), mask)

	total := 0.0
	for _, b := range bids {
		require.Greater(t, b.CapacityKWh, 0.0, "softmax must allocate every hour")
		total += b.CapacityKWh
	}
	assert.InDelta(t, 5.2, total, 1e-9)
}

func TestDayAheadAllocationConcentratesOnPeaks(t *testing.T) {
	s := testStrategy(t)

	prices := flatPrices(0.10)
	for h := 16; h <= 21; h++ {
		prices[h] = 0.80
	}
	mask := DerivePeakMask(prices)
	bids := s.DayAheadAllocation(prices, mask)

	assert.Greater(t, bids[18].CapacityKWh, 4*bids[3].CapacityKWh)
}

func TestDayAheadPricesRespectFloors(t *testing.T) {
	s := testStrategy(t)

	prices := flatPrices(0.10)
	for h := 16; h <= 21; h++ {
		prices[h] = 0.60
	}
	mask := DerivePeakMask(prices)
	bids := s.DayAheadAllocation(prices, mask)

	for h, b := range bids {
		dod := b.CapacityKWh / 6.5
		mc := s.MarginalCost(h, dod, OpportunityCost(rotate(prices[:], h)))
		priceMargin, costMargin := 0.05, 0.10
		if mask[h] {
			priceMargin, costMargin = 0.15, 0.20
		}
		want := math.Max(prices[h]*(1+priceMargin), mc*(1+costMargin))
		require.InDelta(t, want, b.Price, 1e-9, "hour %d", h)
		require.GreaterOrEqual(t, b.Price, mc)
	}
}

func TestDerivePeakMask(t *testing.T) {
	var prices [domain.HoursPerDay]float64
	for i := range prices {
		prices[i] = 0.10
	}
	for h := 14; h < 20; h++ {
		prices[h] = 0.40
	}
	mask := DerivePeakMask(prices)

	count := 0
	for h, m := range mask {
		if m {
			require.GreaterOrEqual(t, h, 14)
			require.Less(t, h, 20)
			count++
		}
	}
	assert.Equal(t, 6, count)
}

func TestDerivePeakMaskTiesIncluded(t *testing.T) {
	var prices [domain.HoursPerDay]float64
	for i := range prices {
		prices[i] = 0.10
	}
	// seven hours tie at the top: all seven are included
	for h := 10; h < 17; h++ {
		prices[h] = 0.40
	}
	mask := DerivePeakMask(prices)

	count := 0
	for _, m := range mask {
		if m {
			count++
		}
	}
	assert.Equal(t, 7, count)
}

func TestPricesFromRotation(t *testing.T) {
	var snap domain.ForecastSnapshot
	for i := range snap.Prices {
		snap.Prices[i] = float64(i)
	}
	r := snap.PricesFrom(22)
	assert.Equal(t, 22.0, r[0])
	assert.Equal(t, 23.0, r[1])
	assert.Equal(t, 0.0, r[2])
}
