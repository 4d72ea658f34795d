package domain

import "time"

// daysPerYear is deliberately fixed; leap years shift the boundary by one day
const daysPerYear = 365

// Cutoff returns the oldest key that survives retention on today's date.
// Partitions whose key is strictly less than the cutoff are expired
func Cutoff(today time.Time, retentionDays int, g Granularity) Key {
	return CutoffFor(today.Year(), today.YearDay(), retentionDays, g)
}

// CutoffFor is Cutoff on integer inputs. Each wrap into a previous year adds 365 days,
// so the day component stays in [0, 365) and the key keeps its fixed width
func CutoffFor(year, doy, retentionDays int, g Granularity) Key {
	day := doy - retentionDays
	for day < 0 {
		year--
		day += daysPerYear
	}
	return Key{Year: year, Day: day, Gran: g}
}
