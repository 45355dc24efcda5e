package strategy

import (
	"math"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

// AppendCycle records one charge/discharge swing in the rainflow ledger.
// Swings at or below MinCycleDepth are ignored. The ledger is append-only;
// the backing array doubles when full and no cycle is ever dropped within a
// run.
func (s *Strategy) AppendCycle(depth, meanSOC, temperatureC float64, at time.Time) {
	if !isFinite(depth) || depth <= MinCycleDepth {
		return
	}
	if !isFinite(meanSOC) {
		meanSOC = 0
	}
	if !isFinite(temperatureC) {
		temperatureC = 0
	}
	s.mu.Lock()
	s.appendCycleLocked(depth, meanSOC, temperatureC, at)
	s.mu.Unlock()
}

func (s *Strategy) appendCycleLocked(depth, meanSOC, temperatureC float64, at time.Time) {
	if depth <= MinCycleDepth {
		return
	}
	depth = math.Min(depth, 1)
	if len(s.cycles) == cap(s.cycles) {
		grown := make([]domain.CycleRecord, len(s.cycles), 2*cap(s.cycles))
		copy(grown, s.cycles)
		s.cycles = grown
	}
	s.cycles = append(s.cycles, domain.CycleRecord{
		Depth:        depth,
		MeanSOC:      meanSOC,
		TemperatureC: temperatureC,
		At:           at,
	})
	s.fullCycles += depth
}

// EquivalentFullCycles is the sum of recorded cycle depths. Monotonically
// non-decreasing over the life of the strategy.
func (s *Strategy) EquivalentFullCycles() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fullCycles
}

// CycleCount returns the number of recorded cycles.
func (s *Strategy) CycleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cycles)
}

// Cycles returns a copy of the ledger.
func (s *Strategy) Cycles() []domain.CycleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CycleRecord, len(s.cycles))
	copy(out, s.cycles)
	return out
}

// stressFactor is the Millner exponential stress model for LFP cells:
// S(d) = k1 * d * exp(k2 * d).
func (s *Strategy) stressFactor(dod float64) float64 {
	return s.params.KDeltaE1 * dod * math.Exp(s.params.KDeltaE2*dod)
}

// DegradationCostPerKWh is the incremental replacement-cost contribution per
// delivered kWh for a discharge of the given depth. Depth 0 costs nothing;
// depths above 1 are clamped.
func (s *Strategy) DegradationCostPerKWh(dod float64) float64 {
	if !isFinite(dod) || dod <= 0 {
		return 0
	}
	dod = math.Min(dod, 1)
	cyclesAtDepth := s.params.CyclesToEOL / s.stressFactor(dod)
	return s.params.ReplacementCost / s.params.BatteryCapacityKWh * dod / cyclesAtDepth
}
