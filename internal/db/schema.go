package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent so every binary can run it at startup.
//
// appointments_active_slot_uq backs the booking path: two active
// appointments of one business can never share a start instant, even when
// concurrent requests both pass the pre-insert check.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS appointments (
		id            UUID PRIMARY KEY,
		business_id   UUID NOT NULL,
		client_name   TEXT NOT NULL,
		client_email  TEXT NOT NULL,
		client_phone  TEXT,
		service_name  TEXT NOT NULL,
		duration_min  DOUBLE PRECISION NOT NULL CHECK (duration_min > 0),
		price         DOUBLE PRECISION NOT NULL CHECK (price >= 0),
		scheduled_at  TIMESTAMPTZ NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
		notes         TEXT,
		reminder_sent BOOLEAN NOT NULL DEFAULT false,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// Tables created before fractional durations were accepted.
	`DO $$
	BEGIN
		IF EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'appointments' AND column_name = 'duration_min' AND data_type = 'integer'
		) THEN
			ALTER TABLE appointments ALTER COLUMN duration_min TYPE DOUBLE PRECISION;
		END IF;
	END $$`,
	`CREATE INDEX IF NOT EXISTS appointments_business_scheduled_idx
		ON appointments (business_id, scheduled_at)`,
	`CREATE INDEX IF NOT EXISTS appointments_client_email_idx
		ON appointments (client_email)`,
	`CREATE INDEX IF NOT EXISTS appointments_status_idx
		ON appointments (status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_uq
		ON appointments (business_id, scheduled_at)
		WHERE status IN ('pending', 'confirmed')`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id UUID REFERENCES appointments (id),
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables and indexes the appointment store relies on.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
