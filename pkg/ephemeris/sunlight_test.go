package ephemeris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSunlightHoursSanFrancisco(t *testing.T) {
	table := Generate(37.7749, -122.4194, -8)

	// summer solstice: long day around solar noon
	sunrise, sunset := table.SunlightHours(time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC))
	require.Less(t, sunrise, sunset)
	assert.InDelta(t, 14.7, sunset-sunrise, 0.5, "solstice daylight should be ~14.7h")

	// winter solstice: short day
	sunrise, sunset = table.SunlightHours(time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 9.5, sunset-sunrise, 0.5, "winter daylight should be ~9.5h")
}

func TestDaylight(t *testing.T) {
	table := Generate(37.7749, -122.4194, -8)

	assert.True(t, table.Daylight(time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)))
	assert.False(t, table.Daylight(time.Date(2024, 6, 21, 1, 0, 0, 0, time.UTC)))
}

func TestPolarLatitudesDoNotNaN(t *testing.T) {
	table := Generate(78.2, 15.6, 1)

	sunrise, sunset := table.SunlightHours(time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC))
	require.False(t, sunrise != sunrise || sunset != sunset, "no NaN for polar day")
	assert.InDelta(t, 24, sunset-sunrise, 0.01)
}

func TestLeapDayReusesLastEntry(t *testing.T) {
	table := Generate(37.7749, -122.4194, -8)

	d365, s365 := table.SunlightHours(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	d366, s366 := table.SunlightHours(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, d365, d366)
	assert.Equal(t, s365, s366)
}
