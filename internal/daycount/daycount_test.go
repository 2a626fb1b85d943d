package daycount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYearFraction(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		conv  Convention
		want  float64
	}{
		{"act/act same leap year", date(2024, 1, 1), date(2024, 7, 1), ActualActualISDA, 182.0 / 366.0},
		{"act/act across years", date(2023, 11, 1), date(2024, 3, 1), ActualActualISDA, 61.0/365.0 + 60.0/366.0},
		{"act/act full years", date(2023, 1, 1), date(2026, 1, 1), ActualActualISDA, 3},
		{"act/360", date(2024, 1, 1), date(2024, 4, 1), Actual360, 91.0 / 360.0},
		{"act/365f", date(2024, 1, 1), date(2025, 1, 1), Actual365Fixed, 366.0 / 365.0},
		{"30/360 month end", date(2024, 1, 31), date(2024, 2, 29), Thirty360, 29.0 / 360.0},
		{"reversed", date(2024, 7, 1), date(2024, 1, 1), ActualActualISDA, -182.0 / 366.0},
		{"same day", date(2024, 7, 1), date(2024, 7, 1), ActualActualISDA, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, YearFraction(tt.start, tt.end, tt.conv), 1e-12)
		})
	}
}

func TestDays_IgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 2, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, Days(start, end))
}

func TestParse(t *testing.T) {
	c, err := Parse("act/act isda")
	require.NoError(t, err)
	assert.Equal(t, ActualActualISDA, c)

	c, err = Parse("A365")
	require.NoError(t, err)
	assert.Equal(t, Actual365Fixed, c)

	_, err = Parse("BUS/252")
	assert.Error(t, err)
}
