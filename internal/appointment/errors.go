package appointment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotAlreadyBooked   = errors.New("an appointment is already booked at this time")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field rule of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsConflict reports whether err means the requested slot is taken.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotAlreadyBooked) || errors.Is(err, ErrSlotBeingBooked)
}
