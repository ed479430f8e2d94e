package project

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 12 * month
)

// relMagnitudes renders whole units with 30-day months and 12-month years.
var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "0 seconds %s", DivBy: time.Second},
	{D: 2 * time.Second, Format: "1 second %s", DivBy: 1},
	{D: time.Minute, Format: "%d seconds %s", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * day, Format: "1 day %s", DivBy: 1},
	{D: month, Format: "%d days %s", DivBy: day},
	{D: 2 * month, Format: "1 month %s", DivBy: 1},
	{D: year, Format: "%d months %s", DivBy: month},
	{D: 2 * year, Format: "1 year %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: year},
}

// FormatRelativeTime renders t relative to now, e.g. "3 minutes ago".
func FormatRelativeTime(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "ago", "from now", relMagnitudes)
}
