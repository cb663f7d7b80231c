package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/clinic-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	PatientID   string  `json:"patient_id"`
	ScheduledAt string  `json:"scheduled_at"` // RFC3339, or local wall time without offset
	Type        string  `json:"type"`
	Notes       *string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type RevertStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type UpsertAvailabilityRequest struct {
	BucketStart string `json:"bucket_start"`
	Capacity    int    `json:"capacity"`
}

type UpdateSettingsRequest struct {
	MaxPatientsPerHour int `json:"max_patients_per_hour"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LocalTime   string     `json:"local_time"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress_percent"`
	Notes       *string    `json:"notes,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	NoShowAt    *time.Time `json:"no_show_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type StatusHistoryResponse struct {
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Reason     *string    `json:"reason,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AvailabilityResponse struct {
	BucketStart time.Time `json:"bucket_start"`
	LocalDay    string    `json:"local_day"`
	LocalTime   string    `json:"local_time"`
	Capacity    int       `json:"capacity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type BucketLoadResponse struct {
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	LocalDay    string    `json:"local_day"`
	LocalTime   string    `json:"local_time"`
	Capacity    int       `json:"capacity"`
	Booked      int       `json:"booked"`
	Remaining   int       `json:"remaining"`
	Overridden  bool      `json:"overridden"`
}

type SettingsResponse struct {
	MaxPatientsPerHour int       `json:"max_patients_per_hour"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, local string) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		ScheduledAt: a.ScheduledAt,
		LocalTime:   local,
		Type:        a.Type,
		Status:      string(a.Status),
		Progress:    appointment.ProgressPercent(a.Status),
		Notes:       a.Notes,
		CheckedInAt: a.CheckedInAt,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		CanceledAt:  a.CanceledAt,
		NoShowAt:    a.NoShowAt,
		CreatedAt:   a.CreatedAt,
	}
}
