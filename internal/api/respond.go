package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/appointment"
)

// errInvalidBody marks a request body that is not JSON at all.
var errInvalidBody = errors.New("could not parse JSON")

// decodeJSON reads r's body into v. A value of the wrong JSON type is
// reported as a field error on its path, e.g. "service.price".
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		verr := &appointment.ValidationError{}
		t := typeErr.Type
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		verr.Add(typeErr.Field, "must be "+jsonKind(t.Kind()))
		return verr
	}
	return errInvalidBody
}

func jsonKind(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "a list"
	default:
		return "an object"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeValidationError(w http.ResponseWriter, verr *appointment.ValidationError) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_failed",
		Details: verr.Error(),
		Fields:  verr.Fields,
	})
}

// handleServiceError translates appointment errors into the response
// contract. Anything unrecognised is a store failure.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.Is(err, errInvalidBody):
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		writeError(w, http.StatusBadRequest, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusBadRequest, "slot_being_booked", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", err.Error())
	default:
		log.Error("appointment operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
