package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medcore/clinic-scheduling/internal/appointment"
	redisclient "github.com/medcore/clinic-scheduling/internal/redis"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

type Handlers struct {
	svc    *appointment.Service
	clinic *schedule.ClinicTime
}

func NewHandlers(svc *appointment.Service, clinic *schedule.ClinicTime) *Handlers {
	return &Handlers{svc: svc, clinic: clinic}
}

// actorID extracts the acting user for audit fields. Identity is issued
// upstream; this layer only relays it.
func actorID(r *http.Request) uuid.UUID {
	if id, err := uuid.Parse(r.Header.Get("X-Actor-ID")); err == nil {
		return id
	}
	return uuid.Nil
}

func (h *Handlers) localLabel(a *appointment.Appointment) string {
	return h.clinic.ToLocal(a.ScheduledAt).Format("2006-01-02 15:04")
}

func (h *Handlers) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	scheduledAt, err := h.clinic.ParseTimestamp(req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduled_at", "scheduled_at must be an RFC3339 or local YYYY-MM-DDTHH:MM timestamp")
		return
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookRequest{
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Type:        req.Type,
		Notes:       req.Notes,
		ActorID:     actorID(r),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, h.localLabel(appt)))
}

func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.localLabel(appt)))
}

func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id query parameter must be a valid UUID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i], h.localLabel(&appts[i])))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	scheduledAt, err := h.clinic.ParseTimestamp(req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scheduled_at", "scheduled_at must be an RFC3339 or local YYYY-MM-DDTHH:MM timestamp")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), id, scheduledAt, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.localLabel(appt)))
}

func (h *Handlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		h.handleError(w, err)
		return
	}

	appt, err := h.svc.ChangeStatus(r.Context(), id, status, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.localLabel(appt)))
}

func (h *Handlers) RevertStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req RevertStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		h.handleError(w, err)
		return
	}

	appt, err := h.svc.RevertStatus(r.Context(), id, status, actorID(r), req.Reason)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt, h.localLabel(appt)))
}

func (h *Handlers) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteAppointment(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) StatusHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	rows, err := h.svc.StatusHistory(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	out := make([]StatusHistoryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatusHistoryResponse{
			FromStatus: string(row.FromStatus),
			ToStatus:   string(row.ToStatus),
			Reason:     row.Reason,
			ActorID:    row.ActorID,
			CreatedAt:  row.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrAvailabilityNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())

	case errors.Is(err, schedule.ErrUninitializedTime),
		errors.Is(err, schedule.ErrSundayClosed),
		errors.Is(err, schedule.ErrLunchClosure),
		errors.Is(err, schedule.ErrOutsideSaturdayHours),
		errors.Is(err, schedule.ErrOutsideWeekdayHours):
		writeError(w, http.StatusUnprocessableEntity, "outside_business_hours", err.Error())
	case errors.Is(err, schedule.ErrPastTimestamp):
		writeError(w, http.StatusUnprocessableEntity, "past_timestamp", err.Error())

	case errors.Is(err, appointment.ErrBucketFull):
		writeError(w, http.StatusConflict, "bucket_full", err.Error())
	case errors.Is(err, appointment.ErrBucketBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "bucket_being_booked", "the requested hour is being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidReversion):
		writeError(w, http.StatusConflict, "invalid_status_reversion", err.Error())
	case errors.Is(err, appointment.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())

	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", err.Error())
	case errors.Is(err, appointment.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, "invalid_capacity", err.Error())
	case errors.Is(err, appointment.ErrInvalidMaxPerHour):
		writeError(w, http.StatusBadRequest, "invalid_max_per_hour", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
