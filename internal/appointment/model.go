package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// statusOrder is the lifecycle order used wherever statuses are listed.
var statusOrder = []AppointmentStatus{
	StatusPending,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is one of the four known statuses.
func (s AppointmentStatus) Valid() bool {
	for _, known := range statusOrder {
		if s == known {
			return true
		}
	}
	return false
}

// Active statuses occupy calendar space for conflict purposes.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Client struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type ServiceInfo struct {
	Name            string  `json:"name"`
	DurationMinutes float64 `json:"duration"`
	Price           float64 `json:"price"`
}

// Duration is the calendar length of the service. Fractional minutes are
// kept, truncated to the nanosecond.
func (s ServiceInfo) Duration() time.Duration {
	return time.Duration(s.DurationMinutes * float64(time.Minute))
}

type Appointment struct {
	ID           uuid.UUID         `json:"id"`
	BusinessID   uuid.UUID         `json:"business_id"`
	Client       Client            `json:"client"`
	Service      ServiceInfo       `json:"service"`
	ScheduledAt  time.Time         `json:"date"`
	Status       AppointmentStatus `json:"status"`
	Notes        *string           `json:"notes,omitempty"`
	ReminderSent bool              `json:"reminder_sent"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EndsAt is the exclusive end of the appointment window.
func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(a.Service.Duration())
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Filter narrows listing queries. Zero values mean "no constraint"; the
// date bounds are inclusive.
type Filter struct {
	BusinessID *uuid.UUID
	Status     *AppointmentStatus
	StartDate  *time.Time
	EndDate    *time.Time
}

// StatsFilter narrows statistics. Stats always cover every status.
type StatsFilter struct {
	BusinessID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
}

func (f StatsFilter) listFilter() Filter {
	return Filter{BusinessID: f.BusinessID, StartDate: f.StartDate, EndDate: f.EndDate}
}

type Page struct {
	Appointments []Appointment `json:"appointments"`
	TotalPages   int           `json:"total_pages"`
	CurrentPage  int           `json:"current_page"`
	TotalCount   int           `json:"total_count"`
}

type StatusStat struct {
	Status       AppointmentStatus `json:"status"`
	Count        int               `json:"count"`
	TotalRevenue float64           `json:"total_revenue"`
}

// DailyStat buckets appointments by weekday of scheduled_at in UTC,
// numbered 1 (Sunday) through 7 (Saturday).
type DailyStat struct {
	DayOfWeek int    `json:"day_of_week"`
	Day       string `json:"day"`
	Count     int    `json:"count"`
}

type Stats struct {
	StatusStats       []StatusStat `json:"status_stats"`
	TotalAppointments int          `json:"total_appointments"`
	TotalRevenue      float64      `json:"total_revenue"`
	DailyStats        []DailyStat  `json:"daily_stats"`
}

type Availability struct {
	Available               bool          `json:"available"`
	ConflictingAppointments []Appointment `json:"conflicting_appointments"`
}
