package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/appointment"
	"github.com/hackgods/appointment-engine/internal/auth"
	"github.com/hackgods/appointment-engine/internal/config"
	"github.com/hackgods/appointment-engine/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	Businesses   int
	SlotsPerDay  int
	Days         int
	JWTSecret    string
	JWTIssuer    string
}

type DataPool struct {
	Businesses   []uuid.UUID
	Slots        []time.Time
	mu           sync.RWMutex
	appointments []uuid.UUID // Thread-safe list of created appointment IDs
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Status       OperationMetrics
	ReadByID     OperationMetrics
	List         OperationMetrics
	Availability OperationMetrics
	Stats        OperationMetrics
}

type Simulator struct {
	config     SimConfig
	pool       *DataPool
	client     *http.Client
	metrics    Metrics
	userToken  string
	adminToken string
	log        *zap.Logger
}

func main() {
	cfg := loadConfig()

	lg, err := logger.New(getEnv("APP_ENV", "dev"), "simulate")
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := validateConfig(cfg); err != nil {
		lg.Fatal("invalid config", zap.Error(err))
	}

	lg.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("status", cfg.StatusRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	userToken, err := issuer.Issue("simulator", "", auth.RoleBusiness, cfg.Duration+time.Hour)
	if err != nil {
		lg.Fatal("issue token", zap.Error(err))
	}
	adminToken, err := issuer.Issue("simulator-admin", "", auth.RoleAdmin, cfg.Duration+time.Hour)
	if err != nil {
		lg.Fatal("issue token", zap.Error(err))
	}

	sim := &Simulator{
		config:     cfg,
		pool:       buildDataPool(cfg),
		client:     &http.Client{Timeout: 10 * time.Second},
		userToken:  userToken,
		adminToken: adminToken,
		log:        lg,
	}

	lg.Info("data pool ready", zap.Int("businesses", len(sim.pool.Businesses)), zap.Int("slots", len(sim.pool.Slots)))

	sim.Run()
	sim.PrintReport()

	violations, err := sim.VerifyNoDoubleBooking(context.Background())
	if err != nil {
		lg.Fatal("verify bookings", zap.Error(err))
	}
	fmt.Printf("Double bookings found: %d\n", violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Businesses:   getInt("SIM_BUSINESSES", 5),
		SlotsPerDay:  getInt("SIM_SLOTS_PER_DAY", 16),
		Days:         getInt("SIM_DAYS", 5),
		JWTSecret:    baseCfg.JWTSecret,
		JWTIssuer:    baseCfg.JWTIssuer,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Businesses <= 0 || cfg.SlotsPerDay <= 0 || cfg.Days <= 0 {
		return fmt.Errorf("SIM_BUSINESSES, SIM_SLOTS_PER_DAY and SIM_DAYS must be > 0")
	}
	return nil
}

// buildDataPool keeps the slot grid small so that workers collide on the
// same business instant often.
func buildDataPool(cfg SimConfig) *DataPool {
	dp := &DataPool{}
	for i := 0; i < cfg.Businesses; i++ {
		dp.Businesses = append(dp.Businesses, uuid.New())
	}

	day := time.Now().UTC().Truncate(24*time.Hour).Add(24 * time.Hour)
	for d := 0; d < cfg.Days; d++ {
		open := day.Add(time.Duration(d)*24*time.Hour + 9*time.Hour)
		for s := 0; s < cfg.SlotsPerDay; s++ {
			dp.Slots = append(dp.Slots, open.Add(time.Duration(s)*30*time.Minute))
		}
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.StatusRatio {
				s.doStatus(ctx, rng)
			} else {
				switch rng.Intn(4) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doList(ctx, rng)
				case 2:
					s.doAvailability(ctx, rng)
				case 3:
					s.doStats(ctx, rng)
				}
			}
		}
	}
}

// call sends one request and returns the status code, or 0 on transport error.
func (s *Simulator) call(ctx context.Context, method, path, token string, body any, out any) (int, time.Duration) {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, latency
}

func (s *Simulator) randomBusiness(rng *rand.Rand) uuid.UUID {
	return s.pool.Businesses[rng.Intn(len(s.pool.Businesses))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	businessID := s.randomBusiness(rng)
	at := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body := map[string]any{
		"business_id": businessID.String(),
		"client": map[string]any{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
		},
		"service": map[string]any{
			"name":     "Consultation",
			"duration": 30,
			"price":    float64(rng.Intn(100)),
		},
		"date": at.Format(time.RFC3339),
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	code, latency := s.call(ctx, http.MethodPost, "/appointments", s.userToken, body, &created)

	success := code == http.StatusCreated
	conflict := code == http.StatusBadRequest
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

var simStatuses = []string{"pending", "confirmed", "cancelled", "completed"}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	body := map[string]string{"status": simStatuses[rng.Intn(len(simStatuses))]}
	code, latency := s.call(ctx, http.MethodPut, "/appointments/"+apptID.String()+"/status", s.userToken, body, nil)

	// Reactivating into an instant someone else booked is a conflict.
	s.metrics.Status.Record(latency, code == http.StatusOK, code == http.StatusBadRequest)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	code, latency := s.call(ctx, http.MethodGet, "/appointments/"+apptID.String(), s.userToken, nil, nil)
	s.metrics.ReadByID.Record(latency, code == http.StatusOK, false)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	q := url.Values{}
	q.Set("business_id", s.randomBusiness(rng).String())
	q.Set("limit", "20")
	q.Set("page", strconv.Itoa(1+rng.Intn(3)))
	if rng.Intn(2) == 0 {
		q.Set("status", simStatuses[rng.Intn(len(simStatuses))])
	}

	code, latency := s.call(ctx, http.MethodGet, "/appointments?"+q.Encode(), s.userToken, nil, nil)
	s.metrics.List.Record(latency, code == http.StatusOK, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	q := url.Values{}
	q.Set("business_id", s.randomBusiness(rng).String())
	q.Set("date", s.pool.Slots[rng.Intn(len(s.pool.Slots))].Format(time.RFC3339))
	q.Set("service_duration", "30")

	code, latency := s.call(ctx, http.MethodGet, "/appointments/availability?"+q.Encode(), "", nil, nil)
	s.metrics.Availability.Record(latency, code == http.StatusOK, code == http.StatusTooManyRequests)
}

func (s *Simulator) doStats(ctx context.Context, rng *rand.Rand) {
	q := url.Values{}
	q.Set("business_id", s.randomBusiness(rng).String())

	code, latency := s.call(ctx, http.MethodGet, "/appointments/stats?"+q.Encode(), s.adminToken, nil, nil)
	s.metrics.Stats.Record(latency, code == http.StatusOK, false)
}

// VerifyNoDoubleBooking pages through every business and counts instants
// held by more than one active appointment.
func (s *Simulator) VerifyNoDoubleBooking(ctx context.Context) (int, error) {
	violations := 0
	for _, businessID := range s.pool.Businesses {
		seen := make(map[time.Time]int)
		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("business_id", businessID.String())
			q.Set("limit", strconv.Itoa(appointment.MaxPageLimit))
			q.Set("page", strconv.Itoa(page))

			var result appointment.Page
			code, _ := s.call(ctx, http.MethodGet, "/appointments?"+q.Encode(), s.userToken, nil, &result)
			if code != http.StatusOK {
				return violations, fmt.Errorf("list business %s page %d: status %d", businessID, page, code)
			}
			for _, a := range result.Appointments {
				if a.Status.Active() {
					seen[a.ScheduledAt.UTC()]++
				}
			}
			if page >= result.TotalPages {
				break
			}
		}
		for _, n := range seen {
			if n > 1 {
				violations += n - 1
			}
		}
	}
	return violations, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status update", &s.metrics.Status)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List", &s.metrics.List)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Stats", &s.metrics.Stats)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
