package strategy

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

// Cycles with a depth at or below this threshold are measurement jitter,
// not battery wear, and are never recorded.
const MinCycleDepth = 0.01

// Params are the chemistry and market constants of a strategy instance.
// They are fixed after construction.
type Params struct {
	BatteryCapacityKWh  float64
	RoundTripEfficiency float64
	MinSOC              float64
	MaxSOC              float64
	ReplacementCost     float64
	KDeltaE1            float64
	KDeltaE2            float64
	CyclesToEOL         float64
	RiskPremium         float64
	Alpha               float64
	Beta                float64
	MaxGridDemand       float64
	DispatchHoldoff     time.Duration
}

// DefaultParams returns the LFP reference parameterization.
func DefaultParams(capacityKWh, efficiency float64) Params {
	return Params{
		BatteryCapacityKWh:  capacityKWh,
		RoundTripEfficiency: efficiency,
		MinSOC:              0.10,
		MaxSOC:              0.90,
		ReplacementCost:     4000,
		KDeltaE1:            0.693,
		KDeltaE2:            3.31,
		CyclesToEOL:         5000,
		RiskPremium:         0.05,
		Alpha:               0.3,
		Beta:                0.2,
		MaxGridDemand:       50000,
		DispatchHoldoff:     time.Hour,
	}
}

func (p Params) validate() error {
	if p.BatteryCapacityKWh <= 0 {
		return errors.New("battery capacity must be > 0")
	}
	if p.RoundTripEfficiency <= 0 || p.RoundTripEfficiency > 1 {
		return errors.New("round-trip efficiency must be in (0,1]")
	}
	if p.MinSOC < 0 || p.MaxSOC > 1 || p.MinSOC >= p.MaxSOC {
		return errors.New("SOC bounds must satisfy 0 <= min < max <= 1")
	}
	if p.ReplacementCost <= 0 || p.CyclesToEOL <= 0 {
		return errors.New("replacement cost and cycles to EOL must be > 0")
	}
	if p.KDeltaE1 <= 0 || p.KDeltaE2 <= 0 {
		return errors.New("degradation coefficients must be > 0")
	}
	if p.MaxGridDemand <= 0 {
		return errors.New("max grid demand must be > 0")
	}
	if p.RiskPremium < 0 {
		return errors.New("risk premium must be >= 0")
	}
	return nil
}

// Strategy is the process-wide bidding state: SOC, the rainflow ledger, the
// current forecast snapshot and the anti-flutter clock. All mutable state is
// guarded by a single mutex; the forecast is replaced by whole-object swap so
// readers never observe a half-updated snapshot.
type Strategy struct {
	params Params

	mu           sync.RWMutex
	currentSOC   float64
	cycles       []domain.CycleRecord
	fullCycles   float64
	forecast     *domain.ForecastSnapshot
	lastDispatch time.Time
}

func New(params Params) (*Strategy, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.DispatchHoldoff <= 0 {
		params.DispatchHoldoff = time.Hour
	}
	return &Strategy{
		params:     params,
		currentSOC: 0.5,
		cycles:     make([]domain.CycleRecord, 0, 32),
	}, nil
}

func (s *Strategy) Params() Params {
	return s.params
}

func (s *Strategy) SOC() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSOC
}

// SetSOC installs an externally observed SOC, clamped to [0,1]. Non-finite
// values are rejected as failed reads.
func (s *Strategy) SetSOC(soc float64) {
	if !isFinite(soc) {
		return
	}
	soc = math.Max(0, math.Min(1, soc))
	s.mu.Lock()
	s.currentSOC = soc
	s.mu.Unlock()
}

// UpdateStateOfCharge applies a commanded energy delivery: SOC drops by
// energy/capacity clamped to the configured bounds, and the resulting swing
// is recorded as a cycle. Zero delivery changes nothing.
func (s *Strategy) UpdateStateOfCharge(energyDeliveredKWh float64) {
	if !isFinite(energyDeliveredKWh) || energyDeliveredKWh == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.currentSOC
	next := prev - energyDeliveredKWh/s.params.BatteryCapacityKWh
	next = math.Max(s.params.MinSOC, math.Min(s.params.MaxSOC, next))
	s.currentSOC = next
	s.appendCycleLocked(math.Abs(prev-next), (prev+next)/2, 25.0, time.Now())
}

// AvailableKWh is the dispatchable energy above the SOC floor.
func (s *Strategy) AvailableKWh() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return math.Max(0, s.currentSOC-s.params.MinSOC) * s.params.BatteryCapacityKWh
}

// InstallForecast swaps in a new snapshot. Nil snapshots are ignored so a
// failed refresh keeps the previous one in force.
func (s *Strategy) InstallForecast(snap *domain.ForecastSnapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.forecast = snap
	s.mu.Unlock()
}

// Forecast returns the current snapshot, or nil before the first refresh.
func (s *Strategy) Forecast() *domain.ForecastSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forecast
}

// DispatchPermitted reports whether the anti-flutter gate is open at t.
func (s *Strategy) DispatchPermitted(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDispatch.IsZero() || t.Sub(s.lastDispatch) >= s.params.DispatchHoldoff
}

// MarkDispatch closes the anti-flutter gate at t. Returns false if the gate
// was already closed, in which case the timestamp is left untouched.
func (s *Strategy) MarkDispatch(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastDispatch.IsZero() && t.Sub(s.lastDispatch) < s.params.DispatchHoldoff {
		return false
	}
	s.lastDispatch = t
	return true
}

// LastDispatch returns the time of the most recent permitted dispatch event.
func (s *Strategy) LastDispatch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDispatch
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
