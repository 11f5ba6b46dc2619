package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/appointment-engine/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var ErrInvalidStatusTransition = errors.New("invalid status transition")

// allowedTransitions lists, per current status, the statuses it may move to.
// Every pair is currently allowed, including leaving cancelled or completed.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   statusOrder,
	StatusConfirmed: statusOrder,
	StatusCompleted: statusOrder,
	StatusCancelled: statusOrder,
}

func canTransition(from, to AppointmentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	repo    Repository
	checker *Checker
	locker  redisclient.Locker
	log     *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		checker: NewChecker(repo),
		locker:  locker,
		log:     log,
	}
}

func slotKey(businessID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s:%d", businessID, at.UnixNano())
}

// CreateAppointment validates req and books it as a pending appointment.
// The exact-instant check and the insert run under a per-slot lock, and the
// store rejects a second active appointment at the same instant regardless.
func (s *Service) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := req.toAppointment()
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotKey(appt.BusinessID, appt.ScheduledAt), func(lockCtx context.Context) error {
		taken, err := s.checker.HasConflict(lockCtx, appt.BusinessID, appt.ScheduledAt)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotAlreadyBooked
		}

		stored, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyBooked) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = stored

		s.logEvent(lockCtx, stored.ID, EventAppointmentCreated, map[string]any{
			"business_id":  stored.BusinessID.String(),
			"scheduled_at": stored.ScheduledAt,
			"ends_at":      stored.EndsAt(),
			"service":      stored.Service.Name,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// SetStatus moves an appointment to status. Reactivating an appointment whose
// instant has since been booked by someone else fails with
// ErrSlotAlreadyBooked.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) (*Appointment, error) {
	status = AppointmentStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "status",
			Message: "must be one of pending, confirmed, cancelled, completed",
		}}}
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !canTransition(current.Status, status) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from": current.Status,
		"to":   updated.Status,
	})

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns one page of matching appointments, newest
// scheduled_at first. page is 1-based.
func (s *Service) ListAppointments(ctx context.Context, f Filter, page, limit int) (*Page, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	appts, total, err := s.repo.ListAppointments(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	return &Page{
		Appointments: appts,
		TotalPages:   (total + limit - 1) / limit,
		CurrentPage:  page,
		TotalCount:   total,
	}, nil
}

// GetStats aggregates every appointment matching f by status and weekday.
func (s *Service) GetStats(ctx context.Context, f StatsFilter) (*Stats, error) {
	byStatus, err := s.repo.StatusStats(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("status stats: %w", err)
	}

	daily, err := s.repo.DailyStats(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}

	return buildStats(byStatus, daily), nil
}

// CheckAvailability answers the standalone availability query for
// [date, date + service_duration).
func (s *Service) CheckAvailability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	businessID, start, end, err := q.window()
	if err != nil {
		return nil, err
	}
	return s.checker.IsAvailable(ctx, businessID, start, end)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}
