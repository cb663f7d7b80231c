package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, patient_id, scheduled_at, type, status, notes,
	checked_in_at, checked_in_by, started_at, started_by,
	completed_at, completed_by, canceled_at, canceled_by,
	no_show_at, no_show_by, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ScheduledAt,
		&a.Type,
		&a.Status,
		&a.Notes,
		&a.CheckedInAt,
		&a.CheckedInBy,
		&a.StartedAt,
		&a.StartedBy,
		&a.CompletedAt,
		&a.CompletedBy,
		&a.CanceledAt,
		&a.CanceledBy,
		&a.NoShowAt,
		&a.NoShowBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ScheduledAt = a.ScheduledAt.UTC()
	return &a, nil
}

func scanAvailability(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot

	err := row.Scan(
		&s.ID,
		&s.BucketStart,
		&s.LocalDay,
		&s.LocalTime,
		&s.Capacity,
		&s.UpdatedAt,
		&s.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	s.BucketStart = s.BucketStart.UTC()
	return &s, nil
}

// auditColumns maps a status to the appointment columns stamped on entry.
func auditColumns(s Status) (tsCol, byCol string) {
	switch s {
	case StatusCheckedIn:
		return "checked_in_at", "checked_in_by"
	case StatusInProgress:
		return "started_at", "started_by"
	case StatusCompleted:
		return "completed_at", "completed_by"
	case StatusCanceled:
		return "canceled_at", "canceled_by"
	case StatusNoShow:
		return "no_show_at", "no_show_by"
	default:
		return "", ""
	}
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, scheduled_at, type, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+apptColumns+`
	`, appt.ID, appt.PatientID, appt.ScheduledAt, appt.Type, appt.Status, appt.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_at = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, scheduledAt)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, at time.Time) (*Appointment, error) {
	tsCol, byCol := auditColumns(to)
	if tsCol == "" {
		return nil, fmt.Errorf("status %q has no forward audit columns", to)
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET status = $2,
		    %s = $4,
		    %s = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns, tsCol, byCol)

	row := r.pool.QueryRow(ctx, query, id, to, from, at, actorID)
	return scanAppointment(row)
}

func (r *PgRepository) RevertAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	tsCol, byCol := auditColumns(from)
	if tsCol == "" {
		return nil, fmt.Errorf("status %q has no audit columns to clear", from)
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET status = $2,
		    %s = NULL,
		    %s = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns, tsCol, byCol)

	row := r.pool.QueryRow(ctx, query, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountBlockingInRange(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE scheduled_at >= $1
		  AND scheduled_at < $2
		  AND status IN ('scheduled', 'checked_in', 'in_progress')
	`, start, end).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PgRepository) GetAvailabilityByBucket(ctx context.Context, bucketStart time.Time) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, bucket_start, local_day, local_time, capacity, updated_at, updated_by
		FROM availability_slots
		WHERE bucket_start = $1
	`, bucketStart)
	return scanAvailability(row)
}

func (r *PgRepository) ListAvailabilityInRange(ctx context.Context, start, end time.Time) ([]AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bucket_start, local_day, local_time, capacity, updated_at, updated_by
		FROM availability_slots
		WHERE bucket_start >= $1
		  AND bucket_start < $2
		ORDER BY bucket_start
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpsertAvailability(ctx context.Context, slot *AvailabilitySlot) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, bucket_start, local_day, local_time, capacity, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		ON CONFLICT (bucket_start) DO UPDATE
		SET capacity = EXCLUDED.capacity,
		    local_day = EXCLUDED.local_day,
		    local_time = EXCLUDED.local_time,
		    updated_at = now(),
		    updated_by = EXCLUDED.updated_by
		RETURNING id, bucket_start, local_day, local_time, capacity, updated_at, updated_by
	`, slot.ID, slot.BucketStart, slot.LocalDay, slot.LocalTime, slot.Capacity, slot.UpdatedBy)

	return scanAvailability(row)
}

func (r *PgRepository) InsertAvailabilityIfAbsent(ctx context.Context, slot *AvailabilitySlot) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO availability_slots (id, bucket_start, local_day, local_time, capacity, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		ON CONFLICT (bucket_start) DO NOTHING
	`, slot.ID, slot.BucketStart, slot.LocalDay, slot.LocalTime, slot.Capacity, slot.UpdatedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) DeleteAvailability(ctx context.Context, bucketStart time.Time) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_slots WHERE bucket_start = $1`, bucketStart)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) EnsureSettings(ctx context.Context, defaultMax int) (*SchedulingSettings, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduling_settings (id, max_patients_per_hour, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO NOTHING
	`, defaultMax)
	if err != nil {
		return nil, err
	}

	var s SchedulingSettings
	err = r.pool.QueryRow(ctx, `
		SELECT id, max_patients_per_hour, updated_at, updated_by
		FROM scheduling_settings
		WHERE id = 1
	`).Scan(&s.ID, &s.MaxPatientsPerHour, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) UpdateSettings(ctx context.Context, maxPerHour int, actorID uuid.UUID) (*SchedulingSettings, error) {
	var s SchedulingSettings
	err := r.pool.QueryRow(ctx, `
		INSERT INTO scheduling_settings (id, max_patients_per_hour, updated_at, updated_by)
		VALUES (1, $1, now(), $2)
		ON CONFLICT (id) DO UPDATE
		SET max_patients_per_hour = EXCLUDED.max_patients_per_hour,
		    updated_at = now(),
		    updated_by = EXCLUDED.updated_by
		RETURNING id, max_patients_per_hour, updated_at, updated_by
	`, maxPerHour, actorID).Scan(&s.ID, &s.MaxPatientsPerHour, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) InsertStatusHistory(ctx context.Context, h StatusHistory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_status_history (appointment_id, from_status, to_status, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, h.AppointmentID, h.FromStatus, h.ToStatus, h.Reason, h.ActorID, nullableTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (r *PgRepository) ListStatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, reason, actor_id, created_at
		FROM appointment_status_history
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.AppointmentID, &h.FromStatus, &h.ToStatus, &h.Reason, &h.ActorID, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
