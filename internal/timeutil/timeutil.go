package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

// Day is a calendar date without a time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func DayOf(value time.Time) Day {
	return Day{Year: value.Year(), Month: value.Month(), Day: value.Day()}
}

func ParseDay(value string) (Day, error) {
	parsed, err := time.Parse(DayLayout, strings.TrimSpace(value))
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q (expected YYYY-MM-DD)", value)
	}
	return DayOf(parsed), nil
}

// At returns the instant at hour:minute on d in loc.
func (d Day) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

func (d Day) AddDays(n int) Day {
	return DayOf(d.At(12, 0, time.UTC).AddDate(0, 0, n))
}

func (d Day) Before(other Day) bool {
	return d.Compare(other) < 0
}

func (d Day) Compare(other Day) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DayStart is the time of day at which a logical work day begins.
type DayStart struct {
	Hour   int
	Minute int
}

var DefaultDayStart = DayStart{Hour: 5}

// ParseDayStart accepts H:MM or HH:MM.
func ParseDayStart(value string) (DayStart, error) {
	raw := strings.TrimSpace(value)
	hourRaw, minuteRaw, ok := strings.Cut(raw, ":")
	if !ok {
		return DayStart{}, fmt.Errorf("invalid day start %q (expected H:MM)", value)
	}
	hour, err := strconv.Atoi(hourRaw)
	if err != nil || hour < 0 || hour > 23 {
		return DayStart{}, fmt.Errorf("invalid day start hour in %q", value)
	}
	if len(minuteRaw) != 2 {
		return DayStart{}, fmt.Errorf("invalid day start minute in %q", value)
	}
	minute, err := strconv.Atoi(minuteRaw)
	if err != nil || minute < 0 || minute > 59 {
		return DayStart{}, fmt.Errorf("invalid day start minute in %q", value)
	}
	return DayStart{Hour: hour, Minute: minute}, nil
}

func (s DayStart) String() string {
	return fmt.Sprintf("%d:%02d", s.Hour, s.Minute)
}

// LogicalDay maps an instant to the work day it belongs to. Instants before
// the day start (in the instant's own location) count towards the previous date.
func (s DayStart) LogicalDay(value time.Time) Day {
	day := DayOf(value)
	if MinutesFromMidnight(value) < s.Hour*60+s.Minute {
		return day.AddDays(-1)
	}
	return day
}

// Cutoff is the day start of the date maxDaysPast days before now.
func Cutoff(now time.Time, maxDaysPast int, start DayStart) time.Time {
	past := now.AddDate(0, 0, -maxDaysPast)
	return DayOf(past).At(start.Hour, start.Minute, now.Location())
}

func MinutesFromMidnight(value time.Time) int {
	return value.Hour()*60 + value.Minute()
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
