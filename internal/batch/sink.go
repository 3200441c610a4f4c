package batch

import (
	"context"
	"fmt"
	"log"

	"liquidify/internal/domain"
	"liquidify/internal/observability"
	"liquidify/internal/storage"
)

// Archiver stores a finished cycle outside the databases and returns its key.
type Archiver interface {
	Archive(ctx context.Context, r *domain.CycleResult) (string, error)
}

// SinkOptions configures a Sink. Only Registry and History are required.
type SinkOptions struct {
	Registry storage.TokenRegistry
	History  storage.CycleHistoryStore
	Metrics  storage.CycleMetricsStore // optional analytics store
	Archiver Archiver                  // optional
	Logger   *log.Logger

	DisableMetrics bool // skip Prometheus updates
}

// Sink persists finished cycles. Every step is best-effort: failures are
// logged and returned, never retried.
type Sink struct {
	registry storage.TokenRegistry
	history  storage.CycleHistoryStore
	metrics  storage.CycleMetricsStore
	archiver Archiver
	logger   *log.Logger
	prom     bool
}

// NewSink creates a Sink.
func NewSink(opts SinkOptions) *Sink {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{
		registry: opts.Registry,
		history:  opts.History,
		metrics:  opts.Metrics,
		archiver: opts.Archiver,
		logger:   logger,
		prom:     !opts.DisableMetrics,
	}
}

// Record writes one cycle to every configured destination:
//  1. cycle history with its ordered operations
//  2. token counters and last_cycle_at
//  3. graduated status on first observation
//  4. analytics row
//  5. JSON archive
//  6. Prometheus metrics
//
// Registry and history steps are skipped for results without a token ID.
func (s *Sink) Record(ctx context.Context, r *domain.CycleResult) []error {
	var errs []error
	fail := func(step string, err error) {
		err = fmt.Errorf("%s: %w", step, err)
		s.logger.Printf("%s: sink %v", r.Mint, err)
		errs = append(errs, err)
	}

	if r.TokenID != "" {
		if s.history != nil {
			if err := s.history.Insert(ctx, r); err != nil {
				fail("history", err)
			}
		}

		if s.registry != nil {
			totals := storage.CycleTotals{
				FeesClaimed:    r.FeesClaimed,
				BuybackSpent:   r.BuybackSpent,
				LiquiditySpent: r.LiquiditySpent,
				At:             r.FinishedAt,
			}
			if err := s.registry.AddCycleTotals(ctx, r.TokenID, totals); err != nil {
				fail("totals", err)
			}

			if r.Phase == domain.PhaseGraduated {
				changed, err := s.registry.MarkGraduated(ctx, r.TokenID, r.FinishedAt)
				if err != nil {
					fail("graduation", err)
				} else if changed {
					s.logger.Printf("%s: graduation observed, status set to graduated", r.Mint)
				}
			}
		}
	}

	if s.metrics != nil {
		if err := s.metrics.Insert(ctx, r); err != nil {
			fail("analytics", err)
		}
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, r)
		if err != nil {
			fail("archive", err)
		} else {
			s.logger.Printf("%s: archived cycle %s to %s", r.Mint, r.CycleID, key)
		}
	}

	if s.prom {
		observability.RecordCycle(sample(r))
	}
	return errs
}

func sample(r *domain.CycleResult) observability.CycleSample {
	kinds := make([]string, len(r.OperationLog))
	for i, op := range r.OperationLog {
		kinds[i] = string(op.Kind)
	}
	return observability.CycleSample{
		Phase:        string(r.Phase),
		Status:       r.Status(),
		Duration:     r.Duration(),
		FeesClaimed:  r.FeesClaimed,
		FeeSplitSent: r.FeeSplitSent,
		BuybackSpent: r.BuybackSpent,
		Deposited:    r.LiquiditySpent,
		SharesBurned: r.SharesBurned,
		Operations:   kinds,
	}
}
