package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// BookingRequest is the raw create input. It is validated as a whole so
// that every violated rule is reported at once.
type BookingRequest struct {
	BusinessID string       `json:"business_id" validate:"required,uuid"`
	Client     ClientInput  `json:"client"`
	Service    ServiceInput `json:"service"`
	Date       string       `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Notes      *string      `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ClientInput struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

type ServiceInput struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Duration *float64 `json:"duration" validate:"required,gt=0,lte=525600"`
	Price    *float64 `json:"price" validate:"required,gte=0"`
}

// AvailabilityQuery is the raw input of the standalone availability check.
type AvailabilityQuery struct {
	BusinessID      string   `json:"business_id" validate:"required,uuid"`
	Date            string   `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ServiceDuration *float64 `json:"service_duration" validate:"required,gt=0,lte=525600"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the tag rules of s and converts failures into a
// *ValidationError keyed by JSON field path, e.g. "client.email".
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe.Namespace()), fieldMessage(fe))
	}
	return out
}

// fieldPath drops the leading struct type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "datetime":
		return "must be an RFC 3339 timestamp"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func (r *BookingRequest) normalize() {
	r.BusinessID = strings.TrimSpace(r.BusinessID)
	r.Client.Name = strings.TrimSpace(r.Client.Name)
	r.Client.Email = strings.TrimSpace(r.Client.Email)
	r.Service.Name = strings.TrimSpace(r.Service.Name)
	r.Date = strings.TrimSpace(r.Date)
}

// toAppointment validates r and builds the pending record it describes.
func (r BookingRequest) toAppointment() (*Appointment, error) {
	r.normalize()
	if err := validateStruct(r); err != nil {
		return nil, err
	}

	businessID, err := uuid.Parse(r.BusinessID)
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "business_id", Message: "must be a valid UUID"}}}
	}
	scheduledAt, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "date", Message: "must be an RFC 3339 timestamp"}}}
	}

	return &Appointment{
		BusinessID: businessID,
		Client: Client{
			Name:  r.Client.Name,
			Email: r.Client.Email,
			Phone: r.Client.Phone,
		},
		Service: ServiceInfo{
			Name:            r.Service.Name,
			DurationMinutes: *r.Service.Duration,
			Price:           *r.Service.Price,
		},
		ScheduledAt: scheduledAt.UTC(),
		Status:      StatusPending,
		Notes:       r.Notes,
	}, nil
}

// window validates q and returns the half-open interval it asks about.
func (q AvailabilityQuery) window() (uuid.UUID, time.Time, time.Time, error) {
	q.BusinessID = strings.TrimSpace(q.BusinessID)
	q.Date = strings.TrimSpace(q.Date)
	if err := validateStruct(q); err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, err
	}

	businessID, err := uuid.Parse(q.BusinessID)
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, &ValidationError{Fields: []FieldError{{Field: "business_id", Message: "must be a valid UUID"}}}
	}
	start, err := time.Parse(time.RFC3339, q.Date)
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, &ValidationError{Fields: []FieldError{{Field: "date", Message: "must be an RFC 3339 timestamp"}}}
	}

	start = start.UTC()
	end := start.Add(ServiceInfo{DurationMinutes: *q.ServiceDuration}.Duration())
	return businessID, start, end, nil
}
