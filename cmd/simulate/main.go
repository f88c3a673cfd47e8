package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hajri-aziz/Backend-sub000/internal/config"
	"github.com/hajri-aziz/Backend-sub000/internal/db"
)

// The simulator hammers the booking and registration paths to surface
// lost-update races: every free window should admit exactly one appointment
// and every event exactly capacity participants, no matter the concurrency.

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	RegisterRatio float64
	PatientLimit  int
	WindowLimit   int
	PostgresDSN   string
}

// FreeSlot identifies a bookable (psychologist, day, time) triple taken from
// a seeded free window.
type FreeSlot struct {
	PsychologistID uuid.UUID
	Day            string
	Time           string
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []FreeSlot
	Events   []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeError
)

// classify buckets an HTTP result: 409 is the expected contention signal,
// any other non-2xx (or transport failure) is an error.
func classify(status int, err error) outcome {
	switch {
	case err != nil:
		return outcomeError
	case status == http.StatusConflict:
		return outcomeConflict
	case status >= 200 && status < 300:
		return outcomeSuccess
	default:
		return outcomeError
	}
}

type opStats struct {
	mu        sync.Mutex
	total     int64
	success   int64
	conflict  int64
	errored   int64
	latencies []time.Duration
}

func (s *opStats) record(lat time.Duration, out outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	switch out {
	case outcomeSuccess:
		s.success++
	case outcomeConflict:
		s.conflict++
	default:
		s.errored++
	}
	s.latencies = append(s.latencies, lat)
}

type opSummary struct {
	total, success, conflict, errored int64
	avg, min, max, p50, p95           time.Duration
}

func (s *opStats) summary() opSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := opSummary{total: s.total, success: s.success, conflict: s.conflict, errored: s.errored}
	if len(s.latencies) == 0 {
		return out
	}

	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	out.avg = sum / time.Duration(len(sorted))
	out.min = sorted[0]
	out.max = sorted[len(sorted)-1]
	out.p50 = percentile(sorted, 50)
	out.p95 = percentile(sorted, 95)
	return out
}

func percentile(sorted []time.Duration, q int) time.Duration {
	idx := len(sorted) * q / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Simulator struct {
	config SimConfig
	pool   *DataPool
	client *http.Client

	booking  opStats
	cancel   opStats
	register opStats
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f register=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.RegisterRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d free slots, %d events",
		len(dataPool.Patients), len(dataPool.Slots), len(dataPool.Events))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.2),
		RegisterRatio: getFloat("SIM_REGISTER_RATIO", 0.2),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 2000),
		WindowLimit:   getInt("SIM_WINDOW_LIMIT", 2400),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.RegisterRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.RegisterRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT psychologist_id, day, start_time
		FROM availability_windows
		WHERE status = 'free' AND day >= current_date
		LIMIT $1
	`, cfg.WindowLimit)
	if err != nil {
		return nil, fmt.Errorf("load free windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s FreeSlot
		var day time.Time
		if err := rows.Scan(&s.PsychologistID, &day, &s.Time); err != nil {
			return nil, err
		}
		s.Day = day.Format("2006-01-02")
		dataPool.Slots = append(dataPool.Slots, s)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM events WHERE day >= current_date
	`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Events = append(dataPool.Events, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no free windows loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doRegister(ctx, rng)
		}
	}
}

// post sends a JSON body (nil for an empty request) and returns the status,
// response body, and round-trip latency.
func (s *Simulator) post(ctx context.Context, path string, payload any) (int, []byte, time.Duration, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, 0, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, reqBody)
	if err != nil {
		return 0, nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, latency, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, body, latency, err := s.post(ctx, "/appointments", map[string]string{
		"psychologist_id": slot.PsychologistID.String(),
		"patient_id":      patientID.String(),
		"date":            slot.Day,
		"time":            slot.Time,
		"reason":          "simulated checkup",
	})

	if err == nil && status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil && created.ID != uuid.Nil {
			s.pool.AddAppointment(created.ID)
		}
	}
	s.booking.record(latency, classify(status, err))
}

func (s *Simulator) doCancel(ctx context.Context, _ *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment()
	if !ok {
		return
	}

	status, _, latency, err := s.post(ctx,
		fmt.Sprintf("/appointments/%s/cancel", apptID), nil)
	s.cancel.record(latency, classify(status, err))
}

func (s *Simulator) doRegister(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Events) == 0 {
		return
	}

	eventID := s.pool.Events[rng.Intn(len(s.pool.Events))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, _, latency, err := s.post(ctx,
		fmt.Sprintf("/events/%s/registrations", eventID),
		map[string]string{"patient_id": patientID.String()})
	s.register.record(latency, classify(status, err))
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.booking)
	printOperationReport("Cancel", &s.cancel)
	printOperationReport("Event registration", &s.register)
}

func printOperationReport(name string, stats *opStats) {
	sum := stats.summary()
	if sum.total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(sum.total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", sum.total)
	fmt.Printf("  Success: %d (%.1f%%)\n", sum.success, pct(sum.success))
	if sum.conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", sum.conflict, pct(sum.conflict))
	}
	if sum.errored > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", sum.errored, pct(sum.errored))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		sum.avg.Round(time.Millisecond), sum.min.Round(time.Millisecond), sum.max.Round(time.Millisecond),
		sum.p50.Round(time.Millisecond), sum.p95.Round(time.Millisecond))
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
