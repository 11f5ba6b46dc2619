package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by STORE_DRIVER=memory
// and by tests. It enforces the same active-slot uniqueness rule as the
// Postgres unique index.
type MemoryRepository struct {
	mu     sync.RWMutex
	now    func() time.Time
	byID   map[uuid.UUID]*Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:  time.Now,
		byID: make(map[uuid.UUID]*Appointment),
	}
}

// Events returns a copy of the recorded audit events.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) activeAtLocked(businessID uuid.UUID, at time.Time, except uuid.UUID) *Appointment {
	for _, a := range r.byID {
		if a.ID == except || a.BusinessID != businessID || !a.Status.Active() {
			continue
		}
		if a.ScheduledAt.Equal(at) {
			return a
		}
	}
	return nil
}

// tick returns a timestamp strictly after prev.
func (r *MemoryRepository) tick(prev time.Time) time.Time {
	now := r.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (r *MemoryRepository) FindActiveAt(_ context.Context, businessID uuid.UUID, at time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a := r.activeAtLocked(businessID, at, uuid.Nil); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) FindActiveInRange(_ context.Context, businessID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Appointment{}
	for _, a := range r.byID {
		if a.BusinessID != businessID || !a.Status.Active() {
			continue
		}
		if !a.ScheduledAt.Before(start) && a.ScheduledAt.Before(end) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.Status.Active() && r.activeAtLocked(appt.BusinessID, appt.ScheduledAt, uuid.Nil) != nil {
		return nil, ErrSlotAlreadyBooked
	}

	stored := *appt
	stored.ID = uuid.New()
	stored.ReminderSent = false
	stored.CreatedAt = r.tick(time.Time{})
	stored.UpdatedAt = stored.CreatedAt
	r.byID[stored.ID] = &stored

	cp := stored
	return &cp, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if to.Active() && r.activeAtLocked(a.BusinessID, a.ScheduledAt, a.ID) != nil {
		return nil, ErrSlotAlreadyBooked
	}

	a.Status = to
	a.UpdatedAt = r.tick(a.UpdatedAt)

	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) matchLocked(f Filter) []Appointment {
	result := []Appointment{}
	for _, a := range r.byID {
		if f.BusinessID != nil && a.BusinessID != *f.BusinessID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.StartDate != nil && a.ScheduledAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && a.ScheduledAt.After(*f.EndDate) {
			continue
		}
		result = append(result, *a)
	}
	return result
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f Filter, limit, offset int) ([]Appointment, int, error) {
	r.mu.RLock()
	matched := r.matchLocked(f)
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledAt.Equal(matched[j].ScheduledAt) {
			return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	if offset >= total {
		return []Appointment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) StatusStats(_ context.Context, f StatsFilter) ([]StatusStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return summarizeStatus(r.matchLocked(f.listFilter())), nil
}

func (r *MemoryRepository) DailyStats(_ context.Context, f StatsFilter) ([]DailyStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return summarizeWeekdays(r.matchLocked(f.listFilter())), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
