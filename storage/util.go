package storage

import (
	"fmt"
	"time"
)

var weekdays = [7]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// Calendar weekday bitmask as 0/1 values for the monday..sunday
// columns.
func weekdayColumns(mask int8) [7]int {
	cols := [7]int{}
	for i, d := range weekdays {
		if mask&(1<<d) != 0 {
			cols[i] = 1
		}
	}
	return cols
}

func weekdayMask(cols [7]bool) int8 {
	mask := int8(0)
	for i, d := range weekdays {
		if cols[i] {
			mask |= 1 << d
		}
	}
	return mask
}

// Name of the calendar column for the weekday of a YYYYMMDD date.
func weekdayColumn(date string) (string, error) {
	parsed, err := time.Parse("20060102", date)
	if err != nil {
		return "", fmt.Errorf("invalid date: %s", date)
	}
	return map[time.Weekday]string{
		time.Monday:    "monday",
		time.Tuesday:   "tuesday",
		time.Wednesday: "wednesday",
		time.Thursday:  "thursday",
		time.Friday:    "friday",
		time.Saturday:  "saturday",
		time.Sunday:    "sunday",
	}[parsed.Weekday()], nil
}
