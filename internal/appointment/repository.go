package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAvailabilityNotFound = errors.New("availability override not found")
)

// Repository contains all DB interactions needed by the scheduling core.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	// UpdateAppointmentSchedule moves an appointment to a new validated
	// instant. The caller has already revalidated hours and capacity.
	UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-set on the current status;
	// it stamps the audit columns of the state being entered.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, at time.Time) (*Appointment, error)
	// RevertAppointmentStatus is the rollback twin: compare-and-set that
	// clears the audit stamp of the state being left.
	RevertAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// CountBlockingInRange counts appointments scheduled in [start, end)
	// whose status still occupies capacity.
	CountBlockingInRange(ctx context.Context, start, end time.Time) (int, error)

	GetAvailabilityByBucket(ctx context.Context, bucketStart time.Time) (*AvailabilitySlot, error)
	ListAvailabilityInRange(ctx context.Context, start, end time.Time) ([]AvailabilitySlot, error)
	UpsertAvailability(ctx context.Context, slot *AvailabilitySlot) (*AvailabilitySlot, error)
	// InsertAvailabilityIfAbsent materializes a row only when none exists
	// for the bucket; reports whether a row was inserted.
	InsertAvailabilityIfAbsent(ctx context.Context, slot *AvailabilitySlot) (bool, error)
	DeleteAvailability(ctx context.Context, bucketStart time.Time) error

	// EnsureSettings lazily creates the singleton row with the given
	// default before returning it.
	EnsureSettings(ctx context.Context, defaultMax int) (*SchedulingSettings, error)
	UpdateSettings(ctx context.Context, maxPerHour int, actorID uuid.UUID) (*SchedulingSettings, error)

	InsertStatusHistory(ctx context.Context, h StatusHistory) error
	ListStatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error)
}
