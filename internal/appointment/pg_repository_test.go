package appointment

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-engine/internal/db"
	redisclient "github.com/hackgods/appointment-engine/internal/redis"
)

// newPgTestService runs against the database in POSTGRES_DSN. Every test
// books under fresh business ids, so rows left behind never collide.
func newPgTestService(t *testing.T) (*Service, *PgRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, dsn, 20)
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := NewPgRepository(pool)
	return NewService(repo, redisclient.NewNoopLocker(), nil), repo, pool
}

func TestWhereClause(t *testing.T) {
	b1 := uuid.New()
	confirmed := StatusConfirmed
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		f        Filter
		want     string
		wantArgs int
	}{
		{name: "empty", f: Filter{}, want: "", wantArgs: 0},
		{name: "business", f: Filter{BusinessID: &b1}, want: "WHERE business_id = $1", wantArgs: 1},
		{name: "end only", f: Filter{EndDate: &end}, want: "WHERE scheduled_at <= $1", wantArgs: 1},
		{
			name:     "all",
			f:        Filter{BusinessID: &b1, Status: &confirmed, StartDate: &start, EndDate: &end},
			want:     "WHERE business_id = $1 AND status = $2 AND scheduled_at >= $3 AND scheduled_at <= $4",
			wantArgs: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := whereClause(tt.f)
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestPgRepository_BookingThenConflict(t *testing.T) {
	svc, repo, _ := newPgTestService(t)
	ctx := context.Background()
	b1 := uuid.New()

	first := mustBook(t, svc, booking(b1, "2024-06-01T10:00:00Z", 30, 50))
	if first.Status != StatusPending || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected stored record: %+v", first)
	}

	if _, err := svc.CreateAppointment(ctx, booking(b1, "2024-06-01T12:00:00+02:00", 30, 50)); !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}

	// The unique index rejects the duplicate even without the pre-insert check.
	dup := *first
	if _, err := repo.CreateAppointment(ctx, &dup); !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected unique violation as ErrSlotAlreadyBooked, got %v", err)
	}

	mustBook(t, svc, booking(b1, "2024-06-01T10:00:01Z", 30, 50))
}

func TestPgRepository_ConcurrentSameInstant(t *testing.T) {
	svc, _, _ := newPgTestService(t)
	b1 := uuid.New()

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateAppointment(context.Background(), booking(b1, "2024-06-01T10:00:00Z", 30, 50))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, succeeded, conflicts)
	}
}

func TestPgRepository_StatusLifecycle(t *testing.T) {
	svc, _, pool := newPgTestService(t)
	ctx := context.Background()
	b1 := uuid.New()

	first := mustBook(t, svc, booking(b1, "2024-06-01T10:00:00Z", 30, 50))

	prev := first.UpdatedAt
	for _, status := range []AppointmentStatus{StatusConfirmed, StatusConfirmed, StatusCompleted, StatusPending, StatusCancelled} {
		updated, err := svc.SetStatus(ctx, first.ID, status)
		if err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", status, err)
		}
		if !updated.UpdatedAt.After(prev) {
			t.Fatalf("updated_at did not advance on transition to %s", status)
		}
		prev = updated.UpdatedAt
	}

	// The instant is free while first is cancelled, so someone else takes it.
	mustBook(t, svc, booking(b1, "2024-06-01T10:00:00Z", 30, 50))
	if _, err := svc.SetStatus(ctx, first.ID, StatusPending); !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked on reactivation, got %v", err)
	}
	got, err := svc.GetAppointment(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("rejected reactivation must leave status unchanged, got %s", got.Status)
	}

	var events int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM event_logs WHERE appointment_id = $1`, first.ID).Scan(&events); err != nil {
		t.Fatalf("count events failed: %v", err)
	}
	if events != 6 {
		t.Fatalf("expected 6 audit events, got %d", events)
	}

	if _, err := svc.SetStatus(ctx, uuid.New(), StatusConfirmed); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestPgRepository_PaginationMatchesFullOrder(t *testing.T) {
	svc, _, _ := newPgTestService(t)
	ctx := context.Background()
	b1 := uuid.New()

	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		at := base.Add(time.Duration(i%5) * 24 * time.Hour).Add(time.Duration(i) * time.Minute)
		mustBook(t, svc, booking(b1, at.Format(time.RFC3339), 15, float64(i)))
	}

	f := Filter{BusinessID: &b1}
	full, err := svc.ListAppointments(ctx, f, 1, MaxPageLimit)
	if err != nil {
		t.Fatalf("full list failed: %v", err)
	}
	if full.TotalCount != 13 || len(full.Appointments) != 13 {
		t.Fatalf("expected 13 appointments, got %d", full.TotalCount)
	}

	for _, limit := range []int{1, 4, 13} {
		var concat []Appointment
		for page := 1; ; page++ {
			p, err := svc.ListAppointments(ctx, f, page, limit)
			if err != nil {
				t.Fatalf("list page %d failed: %v", page, err)
			}
			concat = append(concat, p.Appointments...)
			if page >= p.TotalPages {
				break
			}
		}
		if len(concat) != len(full.Appointments) {
			t.Fatalf("limit %d: expected %d records, got %d", limit, len(full.Appointments), len(concat))
		}
		for i := range concat {
			if concat[i].ID != full.Appointments[i].ID {
				t.Fatalf("limit %d: record %d differs", limit, i)
			}
		}
	}

	confirmed := StatusConfirmed
	if _, err := svc.SetStatus(ctx, full.Appointments[0].ID, confirmed); err != nil {
		t.Fatal(err)
	}
	start := base.Add(24 * time.Hour)
	end := base.Add(2*24*time.Hour + time.Hour)
	ranged, err := svc.ListAppointments(ctx, Filter{BusinessID: &b1, StartDate: &start, EndDate: &end}, 1, MaxPageLimit)
	if err != nil {
		t.Fatalf("ranged list failed: %v", err)
	}
	// Days 1 and 2 each hold the bookings with i%5 of 1 and 2.
	if ranged.TotalCount != 6 {
		t.Fatalf("expected 6 in range, got %d", ranged.TotalCount)
	}
	onlyConfirmed, err := svc.ListAppointments(ctx, Filter{BusinessID: &b1, Status: &confirmed}, 1, MaxPageLimit)
	if err != nil {
		t.Fatalf("status list failed: %v", err)
	}
	if onlyConfirmed.TotalCount != 1 {
		t.Fatalf("expected 1 confirmed, got %d", onlyConfirmed.TotalCount)
	}
}

func TestPgRepository_Stats(t *testing.T) {
	svc, _, _ := newPgTestService(t)
	ctx := context.Background()
	b1 := uuid.New()

	empty, err := svc.GetStats(ctx, StatsFilter{BusinessID: &b1})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if empty.TotalAppointments != 0 || len(empty.StatusStats) != 0 || len(empty.DailyStats) != 0 {
		t.Fatalf("expected zero stats, got %+v", empty)
	}

	// 2024-06-01 is a Saturday; 23:30 at -05:00 is already Sunday in UTC.
	done := mustBook(t, svc, booking(b1, "2024-06-01T10:00:00Z", 30, 50))
	dropped := mustBook(t, svc, booking(b1, "2024-06-03T10:00:00Z", 30, 30))
	mustBook(t, svc, booking(b1, "2024-06-01T23:30:00-05:00", 30.5, 20))
	if _, err := svc.SetStatus(ctx, done.ID, StatusCompleted); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetStatus(ctx, dropped.ID, StatusCancelled); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.GetStats(ctx, StatsFilter{BusinessID: &b1})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	wantStatus := []StatusStat{
		{Status: StatusPending, Count: 1, TotalRevenue: 20},
		{Status: StatusCompleted, Count: 1, TotalRevenue: 50},
		{Status: StatusCancelled, Count: 1, TotalRevenue: 30},
	}
	if len(stats.StatusStats) != len(wantStatus) {
		t.Fatalf("expected %d status groups, got %+v", len(wantStatus), stats.StatusStats)
	}
	for i := range wantStatus {
		if stats.StatusStats[i] != wantStatus[i] {
			t.Fatalf("group %d: expected %+v, got %+v", i, wantStatus[i], stats.StatusStats[i])
		}
	}
	if stats.TotalAppointments != 3 || stats.TotalRevenue != 100 {
		t.Fatalf("unexpected totals: %+v", stats)
	}

	wantDaily := []DailyStat{
		{DayOfWeek: 1, Day: "Sunday", Count: 1},
		{DayOfWeek: 2, Day: "Monday", Count: 1},
		{DayOfWeek: 7, Day: "Saturday", Count: 1},
	}
	if len(stats.DailyStats) != len(wantDaily) {
		t.Fatalf("expected %d weekday buckets, got %+v", len(wantDaily), stats.DailyStats)
	}
	for i := range wantDaily {
		if stats.DailyStats[i] != wantDaily[i] {
			t.Fatalf("bucket %d: expected %+v, got %+v", i, wantDaily[i], stats.DailyStats[i])
		}
	}
}

func TestPgRepository_FractionalDuration(t *testing.T) {
	svc, _, _ := newPgTestService(t)
	ctx := context.Background()
	b1 := uuid.New()

	appt := mustBook(t, svc, booking(b1, "2024-06-01T10:00:00Z", 30.5, 40))
	got, err := svc.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if got.Service.DurationMinutes != 30.5 {
		t.Fatalf("expected 30.5 minutes after round trip, got %v", got.Service.DurationMinutes)
	}

	av, err := svc.CheckAvailability(ctx, AvailabilityQuery{
		BusinessID:      b1.String(),
		Date:            "2024-06-01T09:29:31Z",
		ServiceDuration: floatPtr(30.5),
	})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if av.Available || len(av.ConflictingAppointments) != 1 {
		t.Fatalf("expected one conflict, got %+v", av)
	}
}
