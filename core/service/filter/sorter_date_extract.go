package filter

import (
	"regexp"
	"strconv"
	"time"
)

var (
	isoDatePattern    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dottedDatePattern = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`)
)

// twoDigitYearPivot splits two-digit years: values below it map to
// 2000+, the rest to 1900+.
const twoDigitYearPivot = 70

// ExtractFutureDates scans text for ISO (2026-09-30) and dotted
// European (30.09.2026, 30.09.26) dates and returns those strictly
// after now, deduplicated and sorted ascending.
func ExtractFutureDates(text string, now time.Time) []time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seen := make(map[time.Time]bool)
	var dates []time.Time

	add := func(year, month, day int) {
		d, ok := validDate(year, month, day)
		if !ok || !d.After(today) || seen[d] {
			return
		}
		seen[d] = true
		dates = append(dates, d)
	}

	for _, m := range isoDatePattern.FindAllStringSubmatch(text, -1) {
		add(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	for _, m := range dottedDatePattern.FindAllStringSubmatch(text, -1) {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			if year < twoDigitYearPivot {
				year += 2000
			} else {
				year += 1900
			}
		}
		add(year, atoi(m[2]), atoi(m[1]))
	}

	for i := 1; i < len(dates); i++ {
		for j := i; j > 0 && dates[j].Before(dates[j-1]); j-- {
			dates[j], dates[j-1] = dates[j-1], dates[j]
		}
	}
	return dates
}

// validDate rejects impossible calendar dates instead of letting
// time.Date normalize them (31.02. must not become March 3rd).
func validDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 || year > 9999 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
