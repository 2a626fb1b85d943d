package daycount

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AddMonths behaves like Excel's EDATE: the day is clamped to the end of
// the target month instead of rolling over.
func AddMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := min(t.Day(), last)
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddTenor shifts t by a tenor such as "2W", "6M" or "1Y".
func AddTenor(t time.Time, tenor string) (time.Time, error) {
	s := strings.ToUpper(strings.TrimSpace(tenor))
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("bad tenor %q", tenor)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("bad tenor %q", tenor)
	}
	switch s[len(s)-1] {
	case 'D':
		return t.AddDate(0, 0, n), nil
	case 'W':
		return t.AddDate(0, 0, 7*n), nil
	case 'M':
		return AddMonths(t, n), nil
	case 'Y':
		return AddMonths(t, 12*n), nil
	}
	return time.Time{}, fmt.Errorf("bad tenor unit in %q", tenor)
}

// ParseGrid builds a date grid from "<count>,<tenor>", e.g. "24,1M". Date i
// is asof shifted by (i+1) tenors, so the grid is strictly increasing and
// excludes asof.
func ParseGrid(asof time.Time, spec string) ([]time.Time, error) {
	count, tenor, ok := strings.Cut(spec, ",")
	if !ok {
		return nil, fmt.Errorf("grid %q: want <count>,<tenor>", spec)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("grid %q: bad count", spec)
	}
	tenor = strings.ToUpper(strings.TrimSpace(tenor))
	if len(tenor) < 2 {
		return nil, fmt.Errorf("grid %q: bad tenor", spec)
	}
	step, err := strconv.Atoi(tenor[:len(tenor)-1])
	if err != nil || step <= 0 {
		return nil, fmt.Errorf("grid %q: bad tenor", spec)
	}
	unit := tenor[len(tenor)-1:]

	dates := make([]time.Time, n)
	for i := range dates {
		d, err := AddTenor(asof, strconv.Itoa(step*(i+1))+unit)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", spec, err)
		}
		dates[i] = d
	}
	return dates, nil
}
