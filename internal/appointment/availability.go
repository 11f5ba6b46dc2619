package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checker answers whether a business calendar is free, in two senses:
//
//   - HasConflict is the booking rule: only an active appointment starting
//     at exactly the same instant blocks the slot. Overlapping windows that
//     start at different instants do not conflict.
//   - IsAvailable is the availability query: any active appointment whose
//     start falls inside [start, end) blocks the window.
type Checker struct {
	repo Repository
}

func NewChecker(repo Repository) *Checker {
	return &Checker{repo: repo}
}

// HasConflict reports whether an active appointment of businessID starts at at.
func (c *Checker) HasConflict(ctx context.Context, businessID uuid.UUID, at time.Time) (bool, error) {
	_, err := c.repo.FindActiveAt(ctx, businessID, at)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrAppointmentNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("find active appointment: %w", err)
}

// IsAvailable lists the active appointments starting in [start, end).
// Available is true exactly when that list is empty.
func (c *Checker) IsAvailable(ctx context.Context, businessID uuid.UUID, start, end time.Time) (*Availability, error) {
	conflicts, err := c.repo.FindActiveInRange(ctx, businessID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find active appointments in range: %w", err)
	}
	if conflicts == nil {
		conflicts = []Appointment{}
	}

	return &Availability{
		Available:               len(conflicts) == 0,
		ConflictingAppointments: conflicts,
	}, nil
}
