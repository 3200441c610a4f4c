package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"liquidify/internal/batch"
	"liquidify/internal/config"
	"liquidify/internal/domain"
	"liquidify/internal/observability"
	"liquidify/internal/storage"
)

// Server holds the scheduler state and serves the HTTP endpoints.
type Server struct {
	cfg    *config.Config
	runner *batch.Runner
	stores *allStores
	mint   string // restricts batches to one token when set
	logger *log.Logger

	// State
	mu           sync.Mutex
	started      time.Time
	lastBatchRun time.Time
	lastReport   *batch.Report
	batchRunning bool

	// Stats
	batchRuns int
}

// runScheduler runs the first batch after the initial delay, then one per interval.
func (s *Server) runScheduler(ctx context.Context) error {
	s.logger.Printf("Starting scheduler (initial delay: %v, interval: %v)...",
		s.cfg.Scheduler.InitialDelay.Duration, s.cfg.Scheduler.Interval.Duration)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.Scheduler.InitialDelay.Duration):
	}
	s.runBatch(ctx)

	ticker := time.NewTicker(s.cfg.Scheduler.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runBatch(ctx)
		}
	}
}

// runBatch runs one batch unless the previous one is still in progress.
func (s *Server) runBatch(ctx context.Context) {
	s.mu.Lock()
	if s.batchRunning {
		s.mu.Unlock()
		s.logger.Println("Batch already running, skipping tick")
		return
	}
	s.batchRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.batchRunning = false
		s.mu.Unlock()
	}()

	report, err := s.batch(ctx)
	if err != nil {
		s.logger.Printf("Batch failed: %v", err)
		return
	}

	s.mu.Lock()
	s.lastBatchRun = report.FinishedAt
	s.lastReport = report
	s.batchRuns++
	s.mu.Unlock()
}

func (s *Server) batch(ctx context.Context) (*batch.Report, error) {
	if s.mint != "" {
		return s.runner.RunMint(ctx, s.mint)
	}
	return s.runner.RunBatch(ctx)
}

func (s *Server) httpServer(addr string) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Recent cycles of one token
	mux.HandleFunc("GET /tokens/{mint}/cycles", s.handleCycles)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string        `json:"status"`
	Uptime       string        `json:"uptime"`
	Started      time.Time     `json:"started"`
	LastBatchRun time.Time     `json:"last_batch_run,omitempty"`
	BatchRuns    int           `json:"batch_runs"`
	BatchRunning bool          `json:"batch_running"`
	Mint         string        `json:"mint,omitempty"`
	LastBatch    *BatchSummary `json:"last_batch,omitempty"`
}

// BatchSummary describes the most recent finished batch.
type BatchSummary struct {
	Status    string       `json:"status"`
	Duration  string       `json:"duration"`
	Tokens    int          `json:"tokens"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Aborted   int          `json:"aborted"`
	Skipped   []batch.Skip `json:"skipped,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Started:      s.started,
		LastBatchRun: s.lastBatchRun,
		BatchRuns:    s.batchRuns,
		BatchRunning: s.batchRunning,
		Mint:         s.mint,
	}
	if rep := s.lastReport; rep != nil {
		resp.LastBatch = &BatchSummary{
			Status:    rep.Status(),
			Duration:  rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond).String(),
			Tokens:    rep.Tokens,
			Succeeded: rep.Succeeded,
			Failed:    rep.Failed,
			Aborted:   rep.Aborted,
			Skipped:   rep.Skipped,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CyclesResponse is the JSON response for /tokens/{mint}/cycles.
type CyclesResponse struct {
	TokenID string                `json:"token_id"`
	Mint    string                `json:"mint"`
	Status  domain.TokenStatus    `json:"status"`
	Summary *domain.CycleSummary  `json:"summary,omitempty"`
	Cycles  []*domain.CycleResult `json:"cycles"`
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mint := r.PathValue("mint")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	token, err := s.stores.registry.GetByMint(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "unknown mint", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("GetByMint %s: %v", mint, err)
		http.Error(w, "registry unavailable", http.StatusInternalServerError)
		return
	}

	cycles, err := s.stores.history.ListByToken(ctx, token.ID, limit)
	if err != nil {
		s.logger.Printf("ListByToken %s: %v", token.ID, err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	resp := CyclesResponse{
		TokenID: token.ID,
		Mint:    token.Mint,
		Status:  token.Status,
		Cycles:  cycles,
	}
	if s.stores.metrics != nil {
		summary, err := s.stores.metrics.Summary(ctx, token.ID, 0, time.Now().UnixMilli())
		if err != nil {
			s.logger.Printf("Summary %s: %v", token.ID, err)
		} else {
			resp.Summary = summary
		}
	}
	if resp.Cycles == nil {
		resp.Cycles = []*domain.CycleResult{}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
