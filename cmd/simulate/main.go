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
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type SimConfig struct {
	APIBaseURL  string
	TokensFile  string
	Duration    time.Duration
	Workers     int
	BurstSize   int // concurrent bookings fired at one slot
	BookRatio   float64
	StatusRatio float64
	ReadRatio   float64
}

// seedUser mirrors the entries written by cmd/seed.
type seedUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

type DataPool struct {
	Professionals []seedUser
	Clients       []seedUser

	mu      sync.RWMutex
	pending []booked
}

// booked remembers whose token may move an appointment forward.
type booked struct {
	id       string
	proToken string
}

func (dp *DataPool) AddPending(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, b)
}

func (dp *DataPool) TakePending(rng *rand.Rand) (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return booked{}, false
	}
	i := rng.Intn(len(dp.pending))
	b := dp.pending[i]
	dp.pending[i] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		return latencies[min(len(latencies)*p/100, len(latencies)-1)]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95), pct(99)
}

type Metrics struct {
	Burst  OperationMetrics
	Book   OperationMetrics
	Status OperationMetrics
	List   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	slotSeq atomic.Int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d burst=%d book=%.2f status=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BurstSize, cfg.BookRatio, cfg.StatusRatio, cfg.ReadRatio)

	dataPool, err := loadDataPool(cfg.TokensFile)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d professionals, %d clients", len(dataPool.Professionals), len(dataPool.Clients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx := context.Background()
	sim.RunBurst(ctx)
	sim.Run(ctx)
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		TokensFile:  getEnv("SEED_TOKENS_FILE", "seed-tokens.json"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BurstSize:   getInt("SIM_BURST", 50),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.4),
		StatusRatio: getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.4),
	}

	total := cfg.BookRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
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
	if cfg.BurstSize < 0 {
		return fmt.Errorf("SIM_BURST must be >= 0")
	}
	return nil
}

func loadDataPool(path string) (*DataPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokens file (run cmd/seed first): %w", err)
	}

	var users []seedUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode tokens file: %w", err)
	}

	dp := &DataPool{}
	for _, u := range users {
		switch u.Role {
		case "professional":
			dp.Professionals = append(dp.Professionals, u)
		case "client":
			dp.Clients = append(dp.Clients, u)
		}
	}

	if len(dp.Professionals) == 0 {
		return nil, fmt.Errorf("no professionals loaded")
	}
	if len(dp.Clients) == 0 {
		return nil, fmt.Errorf("no clients loaded")
	}
	return dp, nil
}

// nextSlot hands out instants far in the future that no seed data uses.
func (s *Simulator) nextSlot() time.Time {
	base := time.Now().UTC().Truncate(time.Hour).AddDate(1, 0, 0)
	return base.Add(time.Duration(s.slotSeq.Add(1)) * time.Minute)
}

// RunBurst fires BurstSize bookings for the same professional and instant at
// once. Exactly one of them should succeed.
func (s *Simulator) RunBurst(ctx context.Context) {
	if s.config.BurstSize == 0 {
		return
	}

	pro := s.pool.Professionals[0]
	at := s.nextSlot()
	log.Printf("burst: %d concurrent bookings for professional=%s at=%s", s.config.BurstSize, pro.ID, at.Format(time.RFC3339))

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.BurstSize; i++ {
		client := s.pool.Clients[i%len(s.pool.Clients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, _ := s.book(ctx, client, pro, at)
			s.metrics.Burst.Record(0, status)
		}()
	}

	began := time.Now()
	close(start)
	wg.Wait()
	log.Printf("burst finished in %s", time.Since(began))

	if ok := atomic.LoadInt64(&s.metrics.Burst.Success); ok != 1 {
		log.Printf("WARNING: burst produced %d successful bookings for one slot", ok)
	}
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
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
		case r < s.config.BookRatio:
			s.doBook(ctx, rng)
		case r < s.config.BookRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		default:
			s.doList(ctx, rng)
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	pro := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]

	// reuse a recent instant now and then so some attempts collide
	at := s.nextSlot()
	if rng.Intn(4) == 0 {
		at = at.Add(-time.Duration(rng.Intn(3)) * time.Minute)
	}

	start := time.Now()
	status, id := s.book(ctx, client, pro, at)
	s.metrics.Book.Record(time.Since(start), status)

	if id != "" {
		s.pool.AddPending(booked{id: id, proToken: pro.Token})
	}
}

func (s *Simulator) book(ctx context.Context, client, pro seedUser, at time.Time) (int, string) {
	body, _ := json.Marshal(map[string]string{
		"professional_id": pro.ID,
		"scheduled_time":  at.Format(time.RFC3339),
		"service":         "load test",
	})

	status, raw := s.call(ctx, http.MethodPost, "/appointments", client.Token, body)
	if status != http.StatusCreated {
		return status, ""
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &resp)
	return status, resp.ID
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}

	next := "confirmed"
	if rng.Intn(5) == 0 {
		next = "declined"
	}
	body, _ := json.Marshal(map[string]string{"status": next})

	start := time.Now()
	status, _ := s.call(ctx, http.MethodPatch, "/appointments/"+b.id+"/status", b.proToken, body)
	s.metrics.Status.Record(time.Since(start), status)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	bucket := []string{"pending", "confirmed", "history"}[rng.Intn(3)]

	start := time.Now()
	status, _ := s.call(ctx, http.MethodGet, "/appointments?bucket="+bucket, client.Token, nil)
	s.metrics.List.Record(time.Since(start), status)
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body []byte) (int, []byte) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rd)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))

	printBurstReport(&s.metrics.Burst)
	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Status update", &s.metrics.Status)
	printOperationReport("List", &s.metrics.List)

	fmt.Println(strings.Repeat("=", 80))
}

func printBurstReport(om *OperationMetrics) {
	if om.Total == 0 {
		return
	}
	fmt.Printf("\nSame-slot burst:\n")
	fmt.Printf("  Attempts:  %d\n", om.Total)
	fmt.Printf("  Booked:    %d\n", om.Success)
	fmt.Printf("  Conflicts: %d\n", om.Conflict)
	fmt.Printf("  Errors:    %d\n", om.Error)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	avg, lo, hi, p50, p95, p99 := om.Stats()

	fmt.Printf("\n%s:\n", name)
	fmt.Printf("  Total:    %d\n", total)
	fmt.Printf("  Success:  %d (%.1f%%)\n", om.Success, float64(om.Success)*100/float64(total))
	fmt.Printf("  Conflict: %d (%.1f%%)\n", om.Conflict, float64(om.Conflict)*100/float64(total))
	fmt.Printf("  Error:    %d (%.1f%%)\n", om.Error, float64(om.Error)*100/float64(total))
	fmt.Printf("  Latency:  avg=%s min=%s max=%s p50=%s p95=%s p99=%s\n", avg, lo, hi, p50, p95, p99)
}

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
