package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference rig: 6.5 kWh LFP pack at 95% round-trip efficiency
func testStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := New(DefaultParams(6.5, 0.95))
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadParams(t *testing.T) {
	bad := DefaultParams(6.5, 0.95)
	bad.BatteryCapacityKWh = 0
	_, err := New(bad)
	require.Error(t, err)

	bad = DefaultParams(6.5, 0.95)
	bad.MinSOC = 0.9
	bad.MaxSOC = 0.1
	_, err = New(bad)
	require.Error(t, err)

	bad = DefaultParams(6.5, 1.2)
	_, err = New(bad)
	require.Error(t, err)
}

func TestAppendCycleIgnoresJitter(t *testing.T) {
	s := testStrategy(t)

	s.AppendCycle(0.005, 0.5, 25, time.Now())
	s.AppendCycle(0.01, 0.5, 25, time.Now())
	assert.Equal(t, 0, s.CycleCount())
	assert.Zero(t, s.EquivalentFullCycles())

	s.AppendCycle(0.02, 0.5, 25, time.Now())
	assert.Equal(t, 1, s.CycleCount())
	assert.InDelta(t, 0.02, s.EquivalentFullCycles(), 1e-12)
}

func TestEquivalentFullCyclesMonotone(t *testing.T) {
	s := testStrategy(t)

	prev := 0.0
	for i := 0; i < 200; i++ {
		s.AppendCycle(0.05, 0.5, 25, time.Now())
		efc := s.EquivalentFullCycles()
		require.GreaterOrEqual(t, efc, prev)
		prev = efc
	}
	// sum of depths over all recorded cycles
	assert.InDelta(t, 200*0.05, prev, 1e-9)
	assert.Equal(t, 200, s.CycleCount())
}

func TestAppendCycleNonFiniteDepth(t *testing.T) {
	s := testStrategy(t)

	s.AppendCycle(math.NaN(), 0.5, 25, time.Now())
	s.AppendCycle(math.Inf(1), 0.5, 25, time.Now())
	assert.Equal(t, 0, s.CycleCount())
}

func TestDegradationCostStrictlyIncreasing(t *testing.T) {
	s := testStrategy(t)

	prev := s.DegradationCostPerKWh(0)
	assert.Zero(t, prev)
	for dod := 0.01; dod <= 1.0; dod += 0.01 {
		cost := s.DegradationCostPerKWh(dod)
		require.Greater(t, cost, prev, "cost must increase at dod=%f", dod)
		prev = cost
	}
}

func TestDegradationCostEdges(t *testing.T) {
	s := testStrategy(t)

	assert.Zero(t, s.DegradationCostPerKWh(-0.5))
	assert.Zero(t, s.DegradationCostPerKWh(math.NaN()))
	// above 1 clamps to 1
	assert.Equal(t, s.DegradationCostPerKWh(1), s.DegradationCostPerKWh(1.7))

	// hand-computed point: S(0.5) = 0.693*0.5*e^1.655, N = 5000/S,
	// C = (4000/6.5)*(0.5/N)
	stress := 0.693 * 0.5 * math.Exp(3.31*0.5)
	want := 4000.0 / 6.5 * 0.5 / (5000 / stress)
	assert.InDelta(t, want, s.DegradationCostPerKWh(0.5), 1e-12)
}

func TestUpdateStateOfCharge(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	// deliver 1.3 kWh out of 6.5 => SOC drops 0.2
	s.UpdateStateOfCharge(1.3)
	assert.InDelta(t, 0.6, s.SOC(), 1e-12)
	require.Equal(t, 1, s.CycleCount())
	rec := s.Cycles()[0]
	assert.InDelta(t, 0.2, rec.Depth, 1e-12)
	assert.InDelta(t, 0.7, rec.MeanSOC, 1e-12)
	assert.InDelta(t, 0.2, s.EquivalentFullCycles(), 1e-12)
}

func TestUpdateStateOfChargeZeroIsNoOp(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.8)

	s.UpdateStateOfCharge(0)
	assert.Equal(t, 0.8, s.SOC())
	assert.Equal(t, 0, s.CycleCount())
}

func TestUpdateStateOfChargeClampsToFloor(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.2)

	// 6.5 kWh requested but only (0.2-0.1)*6.5 available above the floor
	s.UpdateStateOfCharge(6.5)
	assert.InDelta(t, 0.1, s.SOC(), 1e-12)
	require.Equal(t, 1, s.CycleCount())
	assert.InDelta(t, 0.1, s.Cycles()[0].Depth, 1e-12)
}

func TestSetSOCRejectsNonFinite(t *testing.T) {
	s := testStrategy(t)
	s.SetSOC(0.75)
	s.SetSOC(math.NaN())
	s.SetSOC(math.Inf(-1))
	assert.Equal(t, 0.75, s.SOC())
}

func TestDispatchGate(t *testing.T) {
	s := testStrategy(t)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, s.DispatchPermitted(t0))
	require.True(t, s.MarkDispatch(t0))

	// second opportunity 1800s later is suppressed
	assert.False(t, s.DispatchPermitted(t0.Add(30*time.Minute)))
	assert.False(t, s.MarkDispatch(t0.Add(30*time.Minute)))
	assert.Equal(t, t0, s.LastDispatch())

	// gate reopens after the holdoff
	assert.True(t, s.DispatchPermitted(t0.Add(time.Hour)))
	assert.True(t, s.MarkDispatch(t0.Add(time.Hour)))
}

func TestInstallForecastKeepsPreviousOnNil(t *testing.T) {
	s := testStrategy(t)
	snap := &domain.ForecastSnapshot{Competitors: 4}
	s.InstallForecast(snap)
	s.InstallForecast(nil)
	assert.Same(t, snap, s.Forecast())
}
