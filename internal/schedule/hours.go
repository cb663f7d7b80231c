package schedule

import (
	"errors"
	"time"
)

var (
	ErrUninitializedTime    = errors.New("timestamp is missing or uninitialized")
	ErrSundayClosed         = errors.New("the clinic is closed on Sundays")
	ErrLunchClosure         = errors.New("the 12:00-12:59 hour is blocked for the lunch closure")
	ErrOutsideSaturdayHours = errors.New("Saturday appointments must start between 08:00 and 11:59 local time")
	ErrOutsideWeekdayHours  = errors.New("weekday appointments must start between 08:00 and 16:59 local time")
	ErrPastTimestamp        = errors.New("appointments cannot be scheduled in the past")
)

// ValidateBusinessHours decides whether an instant is legally schedulable
// under clinic operating hours. Pure: no clock reads, no side effects.
// Rules are evaluated against the clinic-local wall clock:
//
//	1. zero value or year < 1900 means uninitialized input
//	2. Sundays are closed
//	3. local hour 12 is the lunch closure, every day
//	4. Saturday window is [08:00, 12:00)
//	5. Monday-Friday window is [08:00, 17:00)
func (c *ClinicTime) ValidateBusinessHours(t time.Time) error {
	if t.IsZero() || t.Year() < 1900 {
		return ErrUninitializedTime
	}

	local := t.In(c.loc)

	if local.Weekday() == time.Sunday {
		return ErrSundayClosed
	}
	if local.Hour() == 12 {
		return ErrLunchClosure
	}

	if local.Weekday() == time.Saturday {
		if local.Hour() < 8 || local.Hour() >= 12 {
			return ErrOutsideSaturdayHours
		}
		return nil
	}

	if local.Hour() < 8 || local.Hour() >= 17 {
		return ErrOutsideWeekdayHours
	}
	return nil
}

// ValidateNotPast rejects instants strictly earlier than now. Applied to new
// and rescheduled bookings, never retroactively to stored rows.
func ValidateNotPast(t, now time.Time) error {
	if t.Before(now) {
		return ErrPastTimestamp
	}
	return nil
}
