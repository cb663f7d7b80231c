package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medcore/clinic-scheduling/internal/redis"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

const minRevertReasonLen = 5

var (
	ErrBucketFull        = errors.New("no remaining capacity in the requested hour")
	ErrBucketBeingBooked = errors.New("the requested hour is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidReversion  = errors.New("invalid status reversion")
	ErrReasonRequired    = errors.New("a reason of at least 5 characters is required to revert a status")
	ErrNotReschedulable  = errors.New("only active appointments can be rescheduled")
	ErrInvalidCapacity   = errors.New("capacity must be zero or positive")
	ErrInvalidMaxPerHour = errors.New("max patients per hour must be positive")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	clinic   *schedule.ClinicTime
	capacity *CapacityResolver
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, clinic *schedule.ClinicTime, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		clinic:   clinic,
		capacity: NewCapacityResolver(repo, clinic),
		log:      log,
		now:      time.Now,
	}
}

type BookRequest struct {
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Type        string
	Notes       *string
	ActorID     uuid.UUID
}

// Book validates the requested instant against business hours and bucket
// capacity, then creates the appointment in Scheduled state. The capacity
// check and the insert run under a per-bucket lock so concurrent requests
// cannot both take the last remaining slot.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ts := schedule.NormalizeToUTC(req.ScheduledAt)

	if err := s.clinic.ValidateBusinessHours(ts); err != nil {
		return nil, err
	}
	if err := schedule.ValidateNotPast(ts, s.now()); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	bucketStart := s.clinic.BucketStart(ts)

	var created *Appointment
	err := s.locker.WithBucketLock(ctx, bucketStart, func(lockCtx context.Context) error {
		load, err := s.capacity.Load(lockCtx, ts)
		if err != nil {
			return err
		}
		if load.Remaining <= 0 {
			return ErrBucketFull
		}

		appt := &Appointment{
			ID:          uuid.New(),
			PatientID:   req.PatientID,
			ScheduledAt: ts,
			Type:        req.Type,
			Status:      StatusScheduled,
			Notes:       req.Notes,
		}
		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBucketBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("patient_id", req.PatientID.String()).
		Time("scheduled_at", created.ScheduledAt).
		Msg("appointment booked")

	return created, nil
}

// Reschedule moves an active appointment to a new instant, revalidating
// hours and capacity on the target bucket under its lock.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time, actorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !appt.Status.Blocking() {
		return nil, ErrNotReschedulable
	}

	ts := schedule.NormalizeToUTC(newTime)
	if err := s.clinic.ValidateBusinessHours(ts); err != nil {
		return nil, err
	}
	if err := schedule.ValidateNotPast(ts, s.now()); err != nil {
		return nil, err
	}

	oldStart := s.clinic.BucketStart(appt.ScheduledAt)
	newStart := s.clinic.BucketStart(ts)

	// Moving within the same bucket never changes its occupancy, so the
	// capacity check only applies when the bucket actually changes.
	if newStart.Equal(oldStart) {
		return s.repo.UpdateAppointmentSchedule(ctx, id, ts)
	}

	var updated *Appointment
	err = s.locker.WithBucketLock(ctx, newStart, func(lockCtx context.Context) error {
		load, err := s.capacity.Load(lockCtx, ts)
		if err != nil {
			return err
		}
		if load.Remaining <= 0 {
			return ErrBucketFull
		}
		updated, err = s.repo.UpdateAppointmentSchedule(lockCtx, id, ts)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBucketBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Time("scheduled_at", ts).
		Msg("appointment rescheduled")

	return updated, nil
}

// ChangeStatus applies a forward transition. A self-transition is accepted
// as a no-op with no mutation and no audit entry. Every accepted real
// transition stamps the entered state on the appointment and appends one
// history row.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to Status, actorID uuid.UUID) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == to {
		return appt, nil
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, actorID, now)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The compare-and-set lost a race with another writer.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	actor := actorID
	history := StatusHistory{
		AppointmentID: id,
		FromStatus:    appt.Status,
		ToStatus:      to,
		ActorID:       &actor,
		CreatedAt:     now,
	}
	if err := s.repo.InsertStatusHistory(ctx, history); err != nil {
		return nil, fmt.Errorf("append status history: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")

	return updated, nil
}

// RevertStatus rolls an appointment back one lifecycle step. The reason is
// mandatory and recorded verbatim in the history row; the audit stamp of
// the state being left is cleared.
func (s *Service) RevertStatus(ctx context.Context, id uuid.UUID, to Status, actorID uuid.UUID, reason string) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < minRevertReasonLen {
		return nil, ErrReasonRequired
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !CanRevert(appt.Status, to) {
		return nil, ErrInvalidReversion
	}

	updated, err := s.repo.RevertAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidReversion
		}
		return nil, fmt.Errorf("revert status: %w", err)
	}

	actor := actorID
	history := StatusHistory{
		AppointmentID: id,
		FromStatus:    appt.Status,
		ToStatus:      to,
		Reason:        &reason,
		ActorID:       &actor,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.InsertStatusHistory(ctx, history); err != nil {
		return nil, fmt.Errorf("append status history: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("appointment status reverted")

	return updated, nil
}

// CancelAppointment is the forward transition to Canceled. Cancellation is
// a status, not a deletion.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*Appointment, error) {
	return s.ChangeStatus(ctx, id, StatusCanceled, actorID)
}

// DeleteAppointment hard-deletes a row. Administrative cleanup only.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.log.Warn().Str("appointment_id", id.String()).Msg("appointment deleted")
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]StatusHistory, error) {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	rows, err := s.repo.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return rows, nil
}

// BucketLoad reports capacity, occupancy and remaining room for the bucket
// containing t.
func (s *Service) BucketLoad(ctx context.Context, t time.Time) (BucketLoad, error) {
	return s.capacity.Load(ctx, t)
}

// UpsertAvailability sets an explicit capacity override for one bucket.
// Capacity 0 stores a literal closed bucket; removing the override is a
// separate, explicit delete.
func (s *Service) UpsertAvailability(ctx context.Context, bucketStart time.Time, capacity int, actorID uuid.UUID) (*AvailabilitySlot, error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	start := s.clinic.BucketStart(schedule.NormalizeToUTC(bucketStart))
	local := s.clinic.ToLocal(start)
	actor := actorID

	slot := &AvailabilitySlot{
		ID:          uuid.New(),
		BucketStart: start,
		LocalDay:    local.Weekday().String(),
		LocalTime:   local.Format("15:04"),
		Capacity:    capacity,
		UpdatedBy:   &actor,
	}
	saved, err := s.repo.UpsertAvailability(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("upsert availability: %w", err)
	}
	return saved, nil
}

func (s *Service) DeleteAvailability(ctx context.Context, bucketStart time.Time) error {
	start := s.clinic.BucketStart(schedule.NormalizeToUTC(bucketStart))
	if err := s.repo.DeleteAvailability(ctx, start); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}

// Calendar reports the load of every working-hour bucket across `days`
// local days starting at startLocalDate.
func (s *Service) Calendar(ctx context.Context, startLocalDate time.Time, days int) ([]BucketLoad, error) {
	var out []BucketLoad
	for bucket := range s.clinic.WorkingHourBuckets(startLocalDate, days) {
		load, err := s.capacity.Load(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("load bucket %s: %w", bucket, err)
		}
		out = append(out, load)
	}
	return out, nil
}

// MaterializeCalendar pre-seeds generic availability rows for the next
// `days` local days, so the admin calendar is visible before any explicit
// override exists. Used by the calendar worker.
func (s *Service) MaterializeCalendar(ctx context.Context, startLocalDate time.Time, days int) error {
	capacity, err := s.capacity.DefaultCapacity(ctx)
	if err != nil {
		return err
	}
	for bucket := range s.clinic.WorkingHourBuckets(startLocalDate, days) {
		if err := s.capacity.EnsureGenericAvailability(ctx, bucket, capacity, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Settings(ctx context.Context) (*SchedulingSettings, error) {
	settings, err := s.repo.EnsureSettings(ctx, DefaultMaxPerHour)
	if err != nil {
		return nil, fmt.Errorf("load scheduling settings: %w", err)
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, maxPerHour int, actorID uuid.UUID) (*SchedulingSettings, error) {
	if maxPerHour <= 0 {
		return nil, ErrInvalidMaxPerHour
	}
	settings, err := s.repo.UpdateSettings(ctx, maxPerHour, actorID)
	if err != nil {
		return nil, fmt.Errorf("update scheduling settings: %w", err)
	}
	return settings, nil
}
