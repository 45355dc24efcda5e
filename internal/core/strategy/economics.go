package strategy

import "math"

const (
	peakBaseCost    = 0.29
	offPeakBaseCost = 0.10

	opportunityDiscount = 0.9
	opportunityWeight   = 0.5
)

// baseCost is the $/kWh supply cost of the stored energy by hour of day.
// Daytime energy comes from curtailed solar priced at the retail peak rate,
// overnight energy from off-peak grid charging.
func baseCost(hour int) float64 {
	if hour >= 6 && hour <= 18 {
		return peakBaseCost
	}
	return offPeakBaseCost
}

// MarginalCost is the $/kWh cost floor of dispatching at the given hour with
// the given depth of discharge and opportunity cost, grossed up for
// round-trip losses.
func (s *Strategy) MarginalCost(hour int, dod, opportunityCost float64) float64 {
	if !isFinite(dod) {
		dod = 0
	}
	if !isFinite(opportunityCost) {
		opportunityCost = 0
	}
	cost := baseCost(hour) + s.DegradationCostPerKWh(dod) + opportunityCost + s.params.RiskPremium
	return cost / s.params.RoundTripEfficiency
}

// OpportunityCost values energy held back against the best discounted future
// price: half of max_i(p[i] * 0.9^i). An empty forecast is worth nothing.
func OpportunityCost(priceForecast []float64) float64 {
	best := 0.0
	discount := 1.0
	for _, p := range priceForecast {
		if isFinite(p) && p*discount > best {
			best = p * discount
		}
		discount *= opportunityDiscount
	}
	return opportunityWeight * best
}

// NashPrice computes the equilibrium offer price: the observed market price
// marked up by mu = alpha * (min(D/maxDemand, 1.5) / (N*beta + 1)). Scarcity
// raises the markup, competition erodes it. Works for N = 0 (a monopolist
// keeps the full scarcity premium).
func (s *Strategy) NashPrice(marketPrice, gridDemand float64, numCompetitors int) float64 {
	if !isFinite(marketPrice) {
		marketPrice = 0
	}
	if !isFinite(gridDemand) {
		gridDemand = 0
	}
	if numCompetitors < 0 {
		numCompetitors = 0
	}
	demandFactor := math.Min(gridDemand/s.params.MaxGridDemand, 1.5)
	markup := s.params.Alpha * demandFactor / (float64(numCompetitors)*s.params.Beta + 1)
	return marketPrice * (1 + markup)
}
