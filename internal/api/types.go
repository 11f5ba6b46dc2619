package api

import (
	"github.com/hackgods/appointment-engine/internal/appointment"
)

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string                   `json:"error"`
	Details string                   `json:"details,omitempty"`
	Fields  []appointment.FieldError `json:"fields,omitempty"`
}
