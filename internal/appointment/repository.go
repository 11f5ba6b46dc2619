package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service.
type Repository interface {
	// Conflict checks, active statuses only.
	FindActiveAt(ctx context.Context, businessID uuid.UUID, at time.Time) (*Appointment, error)
	FindActiveInRange(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreateAppointment stores a new record and fills in its id and
	// timestamps. It returns ErrSlotAlreadyBooked when another active
	// appointment of the business starts at the same instant.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error)

	// Listing, ordered by scheduled_at descending.
	ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]Appointment, int, error)

	// Aggregates
	StatusStats(ctx context.Context, f StatsFilter) ([]StatusStat, error)
	DailyStats(ctx context.Context, f StatsFilter) ([]DailyStat, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
