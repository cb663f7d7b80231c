package schedule

import (
	"iter"
	"time"
)

// Timestamp layouts accepted at the API boundary. Unzoned layouts are
// interpreted as clinic-local wall time.
var (
	zonedLayouts   = []string{time.RFC3339, "2006-01-02T15:04Z07:00"}
	unzonedLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// NormalizeToUTC canonicalizes an instant for use as a storage key: UTC,
// truncated to whole minutes. Idempotent.
func NormalizeToUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// ParseTimestamp parses a client-supplied timestamp string. Strings that
// carry an offset are taken as-is; strings without one are interpreted as
// clinic-local wall time. The result is normalized per NormalizeToUTC.
func (c *ClinicTime) ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range zonedLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NormalizeToUTC(t), nil
		}
		lastErr = err
	}
	for _, layout := range unzonedLayouts {
		t, err := time.ParseInLocation(layout, s, c.loc)
		if err == nil {
			return NormalizeToUTC(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// LocalHourBucketRange returns the half-open UTC range [start, end) of the
// local clock-hour containing t. Both boundaries are derived from local
// wall-clock arithmetic rather than adding a fixed 60 minutes, so the range
// stays correct even across an offset change.
func (c *ClinicTime) LocalHourBucketRange(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, c.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), local.Hour()+1, 0, 0, 0, c.loc)
	return start.UTC(), end.UTC()
}

// BucketStart returns only the canonical UTC start of t's local-hour bucket.
func (c *ClinicTime) BucketStart(t time.Time) time.Time {
	start, _ := c.LocalHourBucketRange(t)
	return start
}

// Bookable local hours. Hour 12 is the clinic-wide lunch closure.
var (
	weekdayHours  = []int{8, 9, 10, 11, 13, 14, 15, 16}
	saturdayHours = []int{8, 9, 10, 11}
)

func workingHours(day time.Weekday) []int {
	switch day {
	case time.Sunday:
		return nil
	case time.Saturday:
		return saturdayHours
	default:
		return weekdayHours
	}
}

// WorkingHourBuckets yields the UTC bucket start of every bookable hour of
// `days` consecutive local calendar days beginning on startLocalDate's local
// day. Sundays are skipped and Saturdays use the reduced hour set. The
// sequence is finite and restartable.
func (c *ClinicTime) WorkingHourBuckets(startLocalDate time.Time, days int) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		local := startLocalDate.In(c.loc)
		first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
		for i := 0; i < days; i++ {
			day := first.AddDate(0, 0, i)
			for _, h := range workingHours(day.Weekday()) {
				bucket := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, c.loc)
				if !yield(bucket.UTC()) {
					return
				}
			}
		}
	}
}
