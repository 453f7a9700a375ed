package common

import "time"

// Clock supplies "today" for defaulted dates.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Today truncates the clock's reading to a UTC calendar date.
func Today(c Clock) time.Time {
	if c == nil {
		c = SystemClock{}
	}
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
