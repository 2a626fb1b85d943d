// Package daycount converts date pairs into year fractions.
package daycount

import (
	"fmt"
	"strings"
	"time"
)

// Convention names a day count convention.
type Convention string

// Supported conventions
const (
	ActualActualISDA Convention = "ACT/ACT"
	Actual360        Convention = "ACT/360"
	Actual365Fixed   Convention = "ACT/365F"
	Thirty360        Convention = "30/360"
)

// Parse resolves a convention name. Matching is case-insensitive.
func Parse(s string) (Convention, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACT/ACT", "ACT/ACT ISDA", "ACTUAL/ACTUAL", "ACTUALACTUAL":
		return ActualActualISDA, nil
	case "ACT/360", "A360":
		return Actual360, nil
	case "ACT/365F", "ACT/365", "A365F", "A365":
		return Actual365Fixed, nil
	case "30/360", "30E/360":
		return Thirty360, nil
	}
	return "", fmt.Errorf("unknown day count convention %q", s)
}

// Days returns calendar days from start to end, ignoring time of day.
func Days(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// YearFraction computes the year fraction between two dates. Negative when
// end precedes start.
func YearFraction(start, end time.Time, c Convention) float64 {
	if end.Before(start) {
		return -YearFraction(end, start, c)
	}
	switch c {
	case ActualActualISDA:
		return actActISDA(start, end)
	case Actual360:
		return float64(Days(start, end)) / 360.0
	case Thirty360:
		// 30E/360: day of month capped at 30
		d1 := min(start.Day(), 30)
		d2 := min(end.Day(), 30)
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	default:
		return float64(Days(start, end)) / 365.0
	}
}

// actActISDA splits the period at year boundaries and divides the days in
// each year by that year's length.
func actActISDA(start, end time.Time) float64 {
	y1, y2 := start.Year(), end.Year()
	if y1 == y2 {
		return float64(Days(start, end)) / yearDays(y1)
	}
	jan1Next := time.Date(y1+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan1End := time.Date(y2, time.January, 1, 0, 0, 0, 0, time.UTC)
	return float64(Days(start, jan1Next))/yearDays(y1) +
		float64(y2-y1-1) +
		float64(Days(jan1End, end))/yearDays(y2)
}

func yearDays(y int) float64 {
	if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
		return 366
	}
	return 365
}
