package domain

import (
	"fmt"
	"strconv"
	"time"

	pstr "flowkeeper/internal/platform/strings"
)

// Granularity is the time span one partition covers
type Granularity uint8

const (
	// Daily partitions carry a YYYYDDD suffix
	Daily Granularity = iota
	// Hourly partitions carry a YYYYDDDHH suffix
	Hourly
)

func (g Granularity) String() string {
	if g == Hourly {
		return "hourly"
	}
	return "daily"
}

// Step returns the bucket width
func (g Granularity) Step() time.Duration {
	if g == Hourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// ParseGranularity accepts daily/hourly and the legacy 0/1 partition mode values
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "daily", "0":
		return Daily, nil
	case "hourly", "1":
		return Hourly, nil
	}
	return Daily, fmt.Errorf("unknown partition mode %q", s)
}

// Key is a partition date suffix. Keys of one granularity order the same way
// as their fixed-width string forms
type Key struct {
	Year int
	Day  int // day of year, 1-based for real dates; cutoffs may use 0
	Hour int // always 0 for Daily
	Gran Granularity
}

// KeyOf returns the partition key t falls into, using t's location
func KeyOf(t time.Time, g Granularity) Key {
	k := Key{Year: t.Year(), Day: t.YearDay(), Gran: g}
	if g == Hourly {
		k.Hour = t.Hour()
	}
	return k
}

// String renders YYYYDDD or YYYYDDDHH
func (k Key) String() string {
	if k.Gran == Hourly {
		return fmt.Sprintf("%04d%03d%02d", k.Year, k.Day, k.Hour)
	}
	return fmt.Sprintf("%04d%03d", k.Year, k.Day)
}

// IsZero reports whether k is the zero key
func (k Key) IsZero() bool { return k == Key{} }

// Compare orders keys by year, day, then hour. A daily key sorts equal to hour 00
// of the same day, so switching partition mode never makes a day look older
func (k Key) Compare(o Key) int {
	switch {
	case k.Year != o.Year:
		return cmpInt(k.Year, o.Year)
	case k.Day != o.Day:
		return cmpInt(k.Day, o.Day)
	default:
		return cmpInt(k.Hour, o.Hour)
	}
}

// Less reports k < o
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// ParseKey parses a 7 digit daily or 9 digit hourly suffix
func ParseKey(s string) (Key, error) {
	if !pstr.AllDigits(s) || (len(s) != 7 && len(s) != 9) {
		return Key{}, fmt.Errorf("invalid partition suffix %q", s)
	}
	year, _ := strconv.Atoi(s[:4])
	day, _ := strconv.Atoi(s[4:7])
	if day > 366 {
		return Key{}, fmt.Errorf("invalid day %d in partition suffix %q", day, s)
	}
	k := Key{Year: year, Day: day, Gran: Daily}
	if len(s) == 9 {
		hour, _ := strconv.Atoi(s[7:])
		if hour > 23 {
			return Key{}, fmt.Errorf("invalid hour %d in partition suffix %q", hour, s)
		}
		k.Hour, k.Gran = hour, Hourly
	}
	return k, nil
}

// Buckets returns the distinct keys covering [start, end], oldest first
func Buckets(start, end time.Time, g Granularity) []Key {
	if end.Before(start) {
		return nil
	}
	var out []Key
	seen := map[Key]struct{}{}
	add := func(k Key) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for t := start; !t.After(end); {
		add(KeyOf(t, g))
		if g == Hourly {
			t = t.Add(time.Hour)
		} else {
			t = t.AddDate(0, 0, 1)
		}
	}
	add(KeyOf(end, g))
	return out
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
