package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/appointment"
	"github.com/hackgods/appointment-engine/internal/config"
	"github.com/hackgods/appointment-engine/internal/db"
	"github.com/hackgods/appointment-engine/internal/logger"
	redisclient "github.com/hackgods/appointment-engine/internal/redis"
)

var services = []struct {
	name     string
	duration float64
	price    float64
}{
	{"Haircut", 30, 25},
	{"Beard trim", 15, 12},
	{"Colouring", 90, 80},
	{"Massage", 60, 55},
	{"Manicure", 45, 30},
	{"Consultation", 20, 0},
}

var statuses = []appointment.AppointmentStatus{
	appointment.StatusPending,
	appointment.StatusConfirmed,
	appointment.StatusCompleted,
	appointment.StatusCancelled,
}

func main() {
	businesses := flag.Int("businesses", 10, "number of businesses to create appointments for")
	perBusiness := flag.Int("appointments", 200, "appointments per business")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	lg, err := logger.New(cfg.Env, "seed")
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.StoreDriver != config.StorePostgres {
		lg.Fatal("seed needs STORE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancel()
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	svc := appointment.NewService(appointment.NewPgRepository(pool), redisclient.NewNoopLocker(), lg)

	lg.Info("seed starting", zap.Int("businesses", *businesses), zap.Int("appointments", *perBusiness))
	for i := 0; i < *businesses; i++ {
		businessID := uuid.New()
		created, err := seedBusiness(context.Background(), svc, businessID, *perBusiness)
		if err != nil {
			lg.Fatal("seed business", zap.Stringer("business_id", businessID), zap.Error(err))
		}
		lg.Info("business seeded", zap.Stringer("business_id", businessID), zap.Int("appointments", created))
	}
	lg.Info("seed complete")
}

// seedBusiness books count fake appointments on quarter-hour starts over
// the next 60 days and moves each to a random status. Colliding starts are
// skipped.
func seedBusiness(ctx context.Context, svc *appointment.Service, businessID uuid.UUID, count int) (int, error) {
	base := time.Now().UTC().Truncate(24 * time.Hour)
	created := 0

	for i := 0; i < count; i++ {
		svcDef := services[gofakeit.Number(0, len(services)-1)]
		at := base.
			Add(time.Duration(gofakeit.Number(0, 59)) * 24 * time.Hour).
			Add(time.Duration(gofakeit.Number(8*4, 19*4)) * 15 * time.Minute)

		phone := gofakeit.Phone()
		duration := svcDef.duration
		price := svcDef.price

		appt, err := svc.CreateAppointment(ctx, appointment.BookingRequest{
			BusinessID: businessID.String(),
			Client: appointment.ClientInput{
				Name:  gofakeit.Name(),
				Email: gofakeit.Email(),
				Phone: &phone,
			},
			Service: appointment.ServiceInput{
				Name:     svcDef.name,
				Duration: &duration,
				Price:    &price,
			},
			Date: at.Format(time.RFC3339),
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotAlreadyBooked) {
				continue
			}
			return created, err
		}
		created++

		status := statuses[gofakeit.Number(0, len(statuses)-1)]
		if status == appointment.StatusPending {
			continue
		}
		if _, err := svc.SetStatus(ctx, appt.ID, status); err != nil {
			return created, err
		}
	}

	return created, nil
}
