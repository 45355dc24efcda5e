// Package ephemeris precomputes sunrise and sunset times for a fixed site.
package ephemeris

import (
	"math"
	"time"
)

const daysPerYear = 365

// Table holds one year of sunrise/sunset times, in fractional local hours,
// indexed by day of year. Leap day 366 reuses day 365.
type Table struct {
	sunrise [daysPerYear]float64
	sunset  [daysPerYear]float64
}

// Generate builds the lookup table for the given site. tzOffsetHours is the
// local UTC offset used for the solar-noon calculation.
func Generate(latitudeDeg, longitudeDeg, tzOffsetHours float64) *Table {
	t := &Table{}
	latRad := latitudeDeg * math.Pi / 180
	for day := 0; day < daysPerYear; day++ {
		// solar declination, degrees
		declination := -23.44 * math.Cos((2*math.Pi/365.0)*float64(day+10))

		solarNoon := 12.0 - longitudeDeg/15.0 + tzOffsetHours

		// hour angle at sunrise/sunset, degrees; clamp the cos argument so
		// polar day/night degenerate to 0h/24h instead of NaN
		arg := -math.Tan(latRad) * math.Tan(declination*math.Pi/180)
		arg = math.Max(-1, math.Min(1, arg))
		hourAngle := math.Acos(arg) * 180 / math.Pi

		t.sunrise[day] = solarNoon - hourAngle/15.0
		t.sunset[day] = solarNoon + hourAngle/15.0
	}
	return t
}

// SunlightHours returns the sunrise and sunset of the given date, in
// fractional local hours.
func (t *Table) SunlightHours(date time.Time) (sunrise, sunset float64) {
	day := date.YearDay() - 1
	if day >= daysPerYear {
		day = daysPerYear - 1
	}
	return t.sunrise[day], t.sunset[day]
}

// Daylight reports whether the given moment falls between sunrise and
// sunset.
func (t *Table) Daylight(at time.Time) bool {
	sunrise, sunset := t.SunlightHours(at)
	h := float64(at.Hour()) + float64(at.Minute())/60
	return h >= sunrise && h <= sunset
}
