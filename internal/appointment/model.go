package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is one scheduled patient visit. ScheduledAt is always the
// canonical UTC instant at minute granularity. The per-transition stamps
// record who moved the appointment into each state and when; reverting out
// of a state clears its stamp.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Type        string
	Status      Status
	Notes       *string

	CheckedInAt *time.Time
	CheckedInBy *uuid.UUID
	StartedAt   *time.Time
	StartedBy   *uuid.UUID
	CompletedAt *time.Time
	CompletedBy *uuid.UUID
	CanceledAt  *time.Time
	CanceledBy  *uuid.UUID
	NoShowAt    *time.Time
	NoShowBy    *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilitySlot is a per-bucket capacity override. BucketStart is the
// canonical UTC start of a local clock-hour and is unique across rows.
// Capacity 0 means the bucket is closed; the absence of a row means the
// default capacity applies.
type AvailabilitySlot struct {
	ID          uuid.UUID
	BucketStart time.Time
	LocalDay    string // display label, e.g. "Monday"
	LocalTime   string // display label, e.g. "08:00"
	Capacity    int
	UpdatedAt   time.Time
	UpdatedBy   *uuid.UUID
}

// SchedulingSettings is the process-wide singleton row (id = 1).
type SchedulingSettings struct {
	ID                 int16
	MaxPatientsPerHour int
	UpdatedAt          time.Time
	UpdatedBy          *uuid.UUID
}

// StatusHistory is one row of the append-only status audit log. Reason is
// present on reversions and nil on forward transitions.
type StatusHistory struct {
	ID            int64
	AppointmentID uuid.UUID
	FromStatus    Status
	ToStatus      Status
	Reason        *string
	ActorID       *uuid.UUID
	CreatedAt     time.Time
}
