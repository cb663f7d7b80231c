package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Availability, calendar and settings endpoints.

func (h *Handlers) UpsertAvailability(w http.ResponseWriter, r *http.Request) {
	var req UpsertAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	bucketStart, err := h.clinic.ParseTimestamp(req.BucketStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bucket_start", "bucket_start must be an RFC3339 or local YYYY-MM-DDTHH:MM timestamp")
		return
	}

	slot, err := h.svc.UpsertAvailability(r.Context(), bucketStart, req.Capacity, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		BucketStart: slot.BucketStart,
		LocalDay:    slot.LocalDay,
		LocalTime:   slot.LocalTime,
		Capacity:    slot.Capacity,
		UpdatedAt:   slot.UpdatedAt,
	})
}

func (h *Handlers) DeleteAvailability(w http.ResponseWriter, r *http.Request) {
	bucketStart, err := h.clinic.ParseTimestamp(r.URL.Query().Get("bucket_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bucket_start", "bucket_start query parameter is required")
		return
	}

	if err := h.svc.DeleteAvailability(r.Context(), bucketStart); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) BucketLoad(w http.ResponseWriter, r *http.Request) {
	at, err := h.clinic.ParseTimestamp(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_at", "at query parameter is required")
		return
	}

	load, err := h.svc.BucketLoad(r.Context(), at)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toBucketLoadResponse(load.BucketStart, load.BucketEnd, load.Capacity, load.Booked, load.Remaining, load.Overridden))
}

func (h *Handlers) Calendar(w http.ResponseWriter, r *http.Request) {
	start, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("start"), h.clinic.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be a YYYY-MM-DD local date")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > 60 {
			writeError(w, http.StatusBadRequest, "invalid_days", "days must be between 1 and 60")
			return
		}
	}

	loads, err := h.svc.Calendar(r.Context(), start, days)
	if err != nil {
		h.handleError(w, err)
		return
	}

	out := make([]BucketLoadResponse, 0, len(loads))
	for _, l := range loads {
		out = append(out, h.toBucketLoadResponse(l.BucketStart, l.BucketEnd, l.Capacity, l.Booked, l.Remaining, l.Overridden))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		MaxPatientsPerHour: settings.MaxPatientsPerHour,
		UpdatedAt:          settings.UpdatedAt,
	})
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	settings, err := h.svc.UpdateSettings(r.Context(), req.MaxPatientsPerHour, actorID(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		MaxPatientsPerHour: settings.MaxPatientsPerHour,
		UpdatedAt:          settings.UpdatedAt,
	})
}

func (h *Handlers) toBucketLoadResponse(start, end time.Time, capacity, booked, remaining int, overridden bool) BucketLoadResponse {
	local := h.clinic.ToLocal(start)
	return BucketLoadResponse{
		BucketStart: start,
		BucketEnd:   end,
		LocalDay:    local.Weekday().String(),
		LocalTime:   local.Format("15:04"),
		Capacity:    capacity,
		Booked:      booked,
		Remaining:   remaining,
		Overridden:  overridden,
	}
}
