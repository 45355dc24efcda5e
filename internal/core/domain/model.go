package domain

import "time"

const HoursPerDay = 24

// Bid is a fast-dispatch market offer. A zero-capacity bid is a declined
// participation and always carries a zero price.
type Bid struct {
	CapacityKWh float64
	Price       float64
}

func (b Bid) Declined() bool {
	return b.CapacityKWh == 0
}

// HourlyBid is one hour of a day-ahead capacity program offer.
type HourlyBid struct {
	Hour        int
	CapacityKWh float64
	Price       float64
}

// ForecastSnapshot holds one market data refresh. Snapshots are immutable
// once installed and replaced by whole-object swap.
type ForecastSnapshot struct {
	Prices      [HoursPerDay]float64
	Demand      [HoursPerDay]float64
	Competitors int
	RetrievedAt time.Time
}

// PricesFrom returns the price vector rotated so index 0 is hour h.
func (s *ForecastSnapshot) PricesFrom(h int) []float64 {
	h = ((h % HoursPerDay) + HoursPerDay) % HoursPerDay
	out := make([]float64, HoursPerDay)
	for i := 0; i < HoursPerDay; i++ {
		out[i] = s.Prices[(h+i)%HoursPerDay]
	}
	return out
}

// CycleRecord is one entry of the rainflow ledger.
type CycleRecord struct {
	Depth        float64
	MeanSOC      float64
	TemperatureC float64
	At           time.Time
}

// BatteryReading is one telemetry sample from the battery bus.
type BatteryReading struct {
	SOC          float64
	TemperatureC float64
}
