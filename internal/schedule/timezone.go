package schedule

import (
	"time"
)

// clinicUTCOffset is the clinic's fixed offset from UTC in seconds. The
// clinic operates in a zone without daylight saving, so a synthetic fixed
// zone behaves identically to a named one.
const clinicUTCOffset = -4 * 60 * 60

// ClinicTime carries the clinic's local time zone and is the single source
// of local/UTC conversion for the scheduling core. It is constructed once at
// startup and passed explicitly to everything that needs it.
type ClinicTime struct {
	loc *time.Location
}

// ResolveClinicTime tries each candidate zone name in order and falls back
// to a synthetic fixed UTC-4 zone when none can be loaded. Resolution never
// fails, so callers do not have to handle a missing zone.
func ResolveClinicTime(zoneNames []string) *ClinicTime {
	for _, name := range zoneNames {
		loc, err := time.LoadLocation(name)
		if err != nil {
			continue
		}
		// A zone that drifts from the clinic offset (DST or historical
		// changes at the wrong moment) would corrupt bucket boundaries.
		if _, offset := time.Now().In(loc).Zone(); offset == clinicUTCOffset {
			return &ClinicTime{loc: loc}
		}
	}
	return &ClinicTime{loc: time.FixedZone("UTC-4", clinicUTCOffset)}
}

// NewClinicTime wraps an explicit location, mainly for tests.
func NewClinicTime(loc *time.Location) *ClinicTime {
	return &ClinicTime{loc: loc}
}

// Location exposes the resolved zone for formatting.
func (c *ClinicTime) Location() *time.Location {
	return c.loc
}

// ToLocal converts an instant to clinic wall-clock time.
func (c *ClinicTime) ToLocal(t time.Time) time.Time {
	return t.In(c.loc)
}

// ToUTC reinterprets the wall-clock fields of t as clinic-local time and
// returns the corresponding instant in UTC. This is how unzoned timestamps
// from clients are anchored.
func (c *ClinicTime) ToUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc).UTC()
}
