package strategy

import (
	"math"
	"sort"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

const (
	allocationGamma = 2.0

	peakRevenueUplift = 1.2

	peakPriceMargin    = 0.15
	offPeakPriceMargin = 0.05
	peakCostMargin     = 0.20
	offPeakCostMargin  = 0.10

	peakMaskSize = 6
)

// FastDispatchBid prices the currently available energy for a fast-DR event.
// The bid clears only when the Nash equilibrium price exceeds the marginal
// cost of delivery; otherwise participation is declined with a (0, 0) bid.
//
// priceForecast is the hourly price vector starting at the current hour and
// may be nil when no forecast has been installed yet.
func (s *Strategy) FastDispatchBid(marketPrice, gridDemand, windowHours float64, numCompetitors, hour int, priceForecast []float64) domain.Bid {
	if !isFinite(windowHours) || windowHours < 0 {
		windowHours = 0
	}
	available := s.AvailableKWh()
	dod := available / s.params.BatteryCapacityKWh

	opp := OpportunityCost(priceForecast)
	mc := s.MarginalCost(hour, dod, opp)
	nash := s.NashPrice(marketPrice, gridDemand, numCompetitors)

	if nash <= mc || available <= 0 {
		return domain.Bid{}
	}
	capacity := math.Min(available, s.params.BatteryCapacityKWh*windowHours*s.params.RoundTripEfficiency)
	if capacity <= 0 {
		return domain.Bid{}
	}
	return domain.Bid{
		CapacityKWh: capacity,
		Price:       nash,
	}
}

// DayAheadAllocation distributes the usable energy budget across the 24
// hours of the next day by expected revenue and prices each hour above both
// the market and the marginal cost of that hour's share.
func (s *Strategy) DayAheadAllocation(prices [domain.HoursPerDay]float64, peak [domain.HoursPerDay]bool) []domain.HourlyBid {
	weights := allocationWeights(prices, peak)

	budget := s.params.BatteryCapacityKWh * (s.params.MaxSOC - s.params.MinSOC)

	bids := make([]domain.HourlyBid, domain.HoursPerDay)
	for h := 0; h < domain.HoursPerDay; h++ {
		capacity := budget * weights[h]

		dod := capacity / s.params.BatteryCapacityKWh
		opp := OpportunityCost(rotate(prices[:], h))
		mc := s.MarginalCost(h, dod, opp)

		priceMargin, costMargin := offPeakPriceMargin, offPeakCostMargin
		if peak[h] {
			priceMargin, costMargin = peakPriceMargin, peakCostMargin
		}
		price := math.Max(prices[h]*(1+priceMargin), mc*(1+costMargin))

		bids[h] = domain.HourlyBid{
			Hour:        h,
			CapacityKWh: capacity,
			Price:       price,
		}
	}
	return bids
}

// allocationWeights computes softmax-style hour weights over expected
// revenue with concentration gamma. The weights sum to 1 and are never zero,
// so every hour receives some capacity.
func allocationWeights(prices [domain.HoursPerDay]float64, peak [domain.HoursPerDay]bool) [domain.HoursPerDay]float64 {
	var weights [domain.HoursPerDay]float64
	var sum float64
	for h := 0; h < domain.HoursPerDay; h++ {
		revenue := prices[h]
		if !isFinite(revenue) {
			revenue = 0
		}
		if peak[h] {
			revenue *= peakRevenueUplift
		}
		weights[h] = math.Exp(allocationGamma * revenue)
		sum += weights[h]
	}
	for h := range weights {
		weights[h] /= sum
	}
	return weights
}

// DerivePeakMask marks the expected peak hours of a day-ahead price vector
// when the utility does not supply a mask: the six highest-priced hours,
// with ties included.
func DerivePeakMask(prices [domain.HoursPerDay]float64) [domain.HoursPerDay]bool {
	ranked := make([]float64, domain.HoursPerDay)
	copy(ranked, prices[:])
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	threshold := ranked[peakMaskSize-1]

	var mask [domain.HoursPerDay]bool
	for h, p := range prices {
		mask[h] = p >= threshold
	}
	return mask
}

func rotate(values []float64, from int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = values[(from+i)%n]
	}
	return out
}
