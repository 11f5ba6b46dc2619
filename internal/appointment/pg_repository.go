package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const appointmentColumns = `id, business_id, client_name, client_email, client_phone,
	service_name, duration_min, price, scheduled_at, status, notes, reminder_sent,
	created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.Client.Name,
		&a.Client.Email,
		&a.Client.Phone,
		&a.Service.Name,
		&a.Service.DurationMinutes,
		&a.Service.Price,
		&a.ScheduledAt,
		&a.Status,
		&a.Notes,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ScheduledAt = a.ScheduledAt.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// whereClause renders f as a SQL condition with positional arguments.
func whereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.BusinessID != nil {
		add("business_id = $%d", *f.BusinessID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.StartDate != nil {
		add("scheduled_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("scheduled_at <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Interface methods

func (r *PgRepository) FindActiveAt(ctx context.Context, businessID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		  AND scheduled_at = $2
		  AND status IN ('pending', 'confirmed')
		LIMIT 1
	`, businessID, at)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveInRange(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		  AND status IN ('pending', 'confirmed')
		ORDER BY scheduled_at
	`, businessID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, business_id, client_name, client_email, client_phone,
			service_name, duration_min, price, scheduled_at, status, notes,
			reminder_sent, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, now(), now())
		RETURNING `+appointmentColumns,
		id, appt.BusinessID, appt.Client.Name, appt.Client.Email, appt.Client.Phone,
		appt.Service.Name, appt.Service.DurationMinutes, appt.Service.Price,
		appt.ScheduledAt, appt.Status, appt.Notes,
	)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return created, nil
}

// UpdateAppointmentStatus keeps updated_at strictly increasing even when two
// transitions land in the same clock tick.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = GREATEST(now(), updated_at + interval '1 microsecond')
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, to)

	updated, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]Appointment, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM appointments
		%s
		ORDER BY scheduled_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, appointmentColumns, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query appointments: %w", err)
	}

	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan appointments: %w", err)
	}
	return appts, total, nil
}

func (r *PgRepository) StatusStats(ctx context.Context, f StatsFilter) ([]StatusStat, error) {
	where, args := whereClause(f.listFilter())

	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*), COALESCE(sum(price), 0)
		FROM appointments
		`+where+`
		GROUP BY status
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []StatusStat{}
	for rows.Next() {
		var st StatusStat
		if err := rows.Scan(&st.Status, &st.Count, &st.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortStatusStats(result)
	return result, nil
}

func (r *PgRepository) DailyStats(ctx context.Context, f StatsFilter) ([]DailyStat, error) {
	where, args := whereClause(f.listFilter())

	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(DOW FROM scheduled_at AT TIME ZONE 'UTC')::int + 1 AS dow, count(*)
		FROM appointments
		`+where+`
		GROUP BY dow
		ORDER BY dow
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []DailyStat{}
	for rows.Next() {
		var ds DailyStat
		if err := rows.Scan(&ds.DayOfWeek, &ds.Count); err != nil {
			return nil, err
		}
		ds.Day = dayName(ds.DayOfWeek)
		result = append(result, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
