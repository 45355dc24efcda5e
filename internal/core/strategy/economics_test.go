package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpportunityCost(t *testing.T) {
	assert.Zero(t, OpportunityCost(nil))
	assert.Zero(t, OpportunityCost([]float64{}))

	// single hour: half of the spot value
	assert.InDelta(t, 0.25, OpportunityCost([]float64{0.50}), 1e-12)

	// discounting: a later higher price can lose to an earlier lower one
	// 0.5 * max(0.40, 0.50*0.9^3) = 0.5 * 0.40
	got := OpportunityCost([]float64{0.40, 0.10, 0.10, 0.50})
	assert.InDelta(t, 0.20, got, 1e-12)

	// non-finite entries are ignored
	got = OpportunityCost([]float64{math.NaN(), math.Inf(1), 0.30})
	assert.InDelta(t, 0.5*0.30*0.9*0.9, got, 1e-12)
}

func TestMarginalCostDayNightSplit(t *testing.T) {
	s := testStrategy(t)

	day := s.MarginalCost(12, 0, 0)
	night := s.MarginalCost(3, 0, 0)
	assert.InDelta(t, (0.29+0.05)/0.95, day, 1e-12)
	assert.InDelta(t, (0.10+0.05)/0.95, night, 1e-12)

	// boundary hours 6 and 18 are daytime
	assert.Equal(t, day, s.MarginalCost(6, 0, 0))
	assert.Equal(t, day, s.MarginalCost(18, 0, 0))
	assert.Equal(t, night, s.MarginalCost(19, 0, 0))
	assert.Equal(t, night, s.MarginalCost(5, 0, 0))
}

func TestMarginalCostComposition(t *testing.T) {
	s := testStrategy(t)

	deg := s.DegradationCostPerKWh(0.7)
	want := (0.29 + deg + 0.12 + 0.05) / 0.95
	assert.InDelta(t, want, s.MarginalCost(14, 0.7, 0.12), 1e-12)

	// non-finite dod and opportunity treated as zero
	assert.InDelta(t, (0.29+0.05)/0.95, s.MarginalCost(14, math.NaN(), math.Inf(1)), 1e-12)
}

func TestNashPriceMarkup(t *testing.T) {
	s := testStrategy(t)

	// D/maxDemand = 20000/50000 = 0.4, N*beta+1 = 3
	// price = 0.50 * (1 + 0.3*0.4/3) = 0.52
	got := s.NashPrice(0.50, 20000, 10)
	assert.InDelta(t, 0.52, got, 1e-12)
}

func TestNashPriceDemandCap(t *testing.T) {
	s := testStrategy(t)

	// demand factor saturates at 1.5
	capped := s.NashPrice(1.0, 1e9, 0)
	require.InDelta(t, 1.0*(1+0.3*1.5), capped, 1e-12)
}

func TestNashPriceNoCompetitors(t *testing.T) {
	s := testStrategy(t)

	// N = 0 keeps the whole scarcity premium, no division by zero
	got := s.NashPrice(1.0, 20000, 0)
	assert.InDelta(t, 1.0*(1+0.3*0.4), got, 1e-12)

	// negative counts are treated as zero
	assert.Equal(t, got, s.NashPrice(1.0, 20000, -3))
}

func TestNashPriceNonFinite(t *testing.T) {
	s := testStrategy(t)

	assert.Zero(t, s.NashPrice(math.NaN(), 20000, 10))
	assert.InDelta(t, 0.50, s.NashPrice(0.50, math.Inf(1), 10), 1e-12)
}
