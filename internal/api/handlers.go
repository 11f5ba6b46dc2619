package api

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/appointment"
)

// AppointmentService is the part of appointment.Service the handlers use.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status appointment.AppointmentStatus) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.Filter, page, limit int) (*appointment.Page, error)
	GetStats(ctx context.Context, f appointment.StatsFilter) (*appointment.Stats, error)
	CheckAvailability(ctx context.Context, q appointment.AvailabilityQuery) (*appointment.Availability, error)
}

func createAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.BookingRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, log, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), req)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		verr := &appointment.ValidationError{}

		page := queryInt(q, "page", 1, verr)
		limit := queryInt(q, "limit", appointment.DefaultPageLimit, verr)

		f := appointment.Filter{
			BusinessID: queryUUID(q, "business_id", verr),
			StartDate:  queryTime(q, "start_date", verr),
			EndDate:    queryTime(q, "end_date", verr),
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status := appointment.AppointmentStatus(strings.ToLower(raw))
			if !status.Valid() {
				verr.Add("status", "must be one of pending, confirmed, cancelled, completed")
			} else {
				f.Status = &status
			}
		}
		if err := verr.OrNil(); err != nil {
			handleServiceError(w, log, err)
			return
		}

		result, err := svc.ListAppointments(r.Context(), f, page, limit)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func getAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func updateStatusHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, log, err)
			return
		}

		appt, err := svc.SetStatus(r.Context(), id, appointment.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func statsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		verr := &appointment.ValidationError{}

		f := appointment.StatsFilter{
			BusinessID: queryUUID(q, "business_id", verr),
			StartDate:  queryTime(q, "start_date", verr),
			EndDate:    queryTime(q, "end_date", verr),
		}
		if err := verr.OrNil(); err != nil {
			handleServiceError(w, log, err)
			return
		}

		stats, err := svc.GetStats(r.Context(), f)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func checkAvailabilityHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		query := appointment.AvailabilityQuery{
			BusinessID: q.Get("business_id"),
			Date:       q.Get("date"),
		}
		if raw := strings.TrimSpace(q.Get("service_duration")); raw != "" {
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				handleServiceError(w, log, &appointment.ValidationError{Fields: []appointment.FieldError{{
					Field:   "service_duration",
					Message: "must be a number of minutes",
				}}})
				return
			}
			query.ServiceDuration = &n
		}

		result, err := svc.CheckAvailability(r.Context(), query)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// Query helpers record a field error in verr and return the zero value on
// malformed input.

func queryInt(q url.Values, key string, def int, verr *appointment.ValidationError) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		verr.Add(key, "must be a positive integer")
		return def
	}
	return n
}

func queryUUID(q url.Values, key string, verr *appointment.ValidationError) *uuid.UUID {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add(key, "must be a valid UUID")
		return nil
	}
	return &id
}

// queryTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func queryTime(q url.Values, key string, verr *appointment.ValidationError) *time.Time {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t
	}
	verr.Add(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	return nil
}
