// Package batch runs the cycle engine over registered tokens, one token at
// a time, and hands every result to a Sink.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"liquidify/internal/domain"
	"liquidify/internal/lock"
	"liquidify/internal/observability"
	"liquidify/internal/storage"
	"liquidify/internal/wallet"
)

// ErrNotEligible is returned by RunMint for tokens outside the scheduled statuses.
var ErrNotEligible = errors.New("token not eligible for cycles")

// Skip reasons, also used as metric labels.
const (
	SkipNoCredential         = "no_credential"
	SkipCredentialUnreadable = "credential_unreadable"
	SkipCredentialInvalid    = "credential_invalid"
	SkipLockHeld             = "lock_held"
	SkipLockError            = "lock_error"
)

// CycleRunner runs one cycle. Implemented by engine.Engine.
type CycleRunner interface {
	RunCycle(ctx context.Context, cfg domain.TokenCycleConfig) *domain.CycleResult
}

// SecretOpener decrypts a sealed wallet secret. Implemented by secrets.Keyring.
type SecretOpener interface {
	Open(sealed string) (string, error)
}

// Locker guards a key across processes. Implemented by lock.Manager.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Registry storage.TokenRegistry
	Engine   CycleRunner
	Secrets  SecretOpener
	Sink     *Sink         // optional
	Locker   Locker        // optional, per-token lock "cycle:<mint>"
	LockTTL  time.Duration // default 5m
	Logger   *log.Logger
	NewID    func() string    // cycle IDs, default uuid
	Now      func() time.Time // default time.Now
}

// Runner executes batches sequentially. A failure or panic in one token's
// cycle never stops the tokens after it.
type Runner struct {
	registry storage.TokenRegistry
	engine   CycleRunner
	secrets  SecretOpener
	sink     *Sink
	locker   Locker
	lockTTL  time.Duration
	logger   *log.Logger
	newID    func() string
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	lockTTL := opts.LockTTL
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		registry: opts.Registry,
		engine:   opts.Engine,
		secrets:  opts.Secrets,
		sink:     opts.Sink,
		locker:   opts.Locker,
		lockTTL:  lockTTL,
		logger:   logger,
		newID:    newID,
		now:      now,
	}
}

// Skip describes a token that was not processed.
type Skip struct {
	TokenID string
	Mint    string
	Reason  string
}

// Report contains results from one batch.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Tokens     int
	Succeeded  int
	Failed     int
	Aborted    int
	Skipped    []Skip
	Results    []*domain.CycleResult
	Canceled   bool
}

// Status returns "success" when every processed cycle succeeded, "canceled"
// when the context ended the batch early and "partial" otherwise.
func (r *Report) Status() string {
	switch {
	case r.Canceled:
		return "canceled"
	case r.Failed > 0 || r.Aborted > 0:
		return "partial"
	default:
		return "success"
	}
}

func (r *Report) add(res *domain.CycleResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.FinalState == domain.StateAborted:
		r.Aborted++
	case res.Succeeded:
		r.Succeeded++
	default:
		r.Failed++
	}
}

func (r *Report) skip(cfg domain.TokenCycleConfig, reason string) {
	r.Skipped = append(r.Skipped, Skip{TokenID: cfg.TokenID, Mint: cfg.TokenIdentifier, Reason: reason})
	observability.RecordTokenSkipped(reason)
}

// RunBatch runs one cycle for every eligible registered token, in registry order.
func (r *Runner) RunBatch(ctx context.Context) (*Report, error) {
	start := r.now()
	tokens, err := r.registry.ListEligible(ctx)
	if err != nil {
		observability.RecordBatch("error", r.now().Sub(start).Seconds())
		return nil, fmt.Errorf("list eligible tokens: %w", err)
	}

	r.logger.Printf("batch started: %d eligible tokens", len(tokens))
	report := r.runTokens(ctx, start, tokens)
	r.finish(report)
	return report, nil
}

// RunMint runs one cycle for a single registered token.
func (r *Runner) RunMint(ctx context.Context, mint string) (*Report, error) {
	start := r.now()
	token, err := r.registry.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", mint, err)
	}
	if !token.Status.IsEligible() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEligible, mint, token.Status)
	}

	report := r.runTokens(ctx, start, []*domain.TokenRecord{token})
	r.finish(report)
	return report, nil
}

// RunConfigs runs one cycle per supplied configuration. Entries without a
// usable wallet secret are skipped without invoking the engine.
func (r *Runner) RunConfigs(ctx context.Context, cfgs []domain.TokenCycleConfig) *Report {
	report := &Report{StartedAt: r.now(), Tokens: len(cfgs)}
	for _, cfg := range cfgs {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		r.process(ctx, cfg, report)
	}
	r.finish(report)
	return report
}

func (r *Runner) runTokens(ctx context.Context, start time.Time, tokens []*domain.TokenRecord) *Report {
	report := &Report{StartedAt: start, Tokens: len(tokens)}
	for _, token := range tokens {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		cfg := token.CycleConfig("")
		if token.SealedWalletSecret == "" {
			r.logger.Printf("%s: skipped, no wallet credential", cfg)
			report.skip(cfg, SkipNoCredential)
			continue
		}
		secret, err := r.secrets.Open(token.SealedWalletSecret)
		if err != nil {
			r.logger.Printf("%s: skipped, wallet credential unreadable: %v", cfg, err)
			report.skip(cfg, SkipCredentialUnreadable)
			continue
		}
		cfg.OperatingWalletSecret = secret

		r.process(ctx, cfg, report)
	}
	return report
}

// process validates the credential, takes the token lock and runs the cycle.
func (r *Runner) process(ctx context.Context, cfg domain.TokenCycleConfig, report *Report) {
	if cfg.OperatingWalletSecret == "" {
		r.logger.Printf("%s: skipped, no wallet credential", cfg)
		report.skip(cfg, SkipNoCredential)
		return
	}
	if _, err := wallet.FromSecret(cfg.OperatingWalletSecret); err != nil {
		r.logger.Printf("%s: skipped, %v", cfg, err)
		report.skip(cfg, SkipCredentialInvalid)
		return
	}

	if r.locker != nil {
		unlock, err := r.locker.Acquire(ctx, "cycle:"+cfg.TokenIdentifier, r.lockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLockHeld) {
				r.logger.Printf("%s: skipped, cycle running elsewhere", cfg)
				report.skip(cfg, SkipLockHeld)
			} else {
				r.logger.Printf("%s: skipped, acquire lock: %v", cfg, err)
				report.skip(cfg, SkipLockError)
			}
			return
		}
		defer unlock()
	}

	res := r.runCycle(ctx, cfg)
	if res.CycleID == "" {
		res.CycleID = r.newID()
	}
	r.logger.Printf("%s: cycle %s %s in %s (claimed %s, bought %s, deposited %s)",
		cfg, res.CycleID, res.Status(), res.Duration(),
		domain.Lamports(res.FeesClaimed), domain.Lamports(res.BuybackSpent), domain.Lamports(res.LiquiditySpent))
	for _, op := range res.OperationLog {
		r.logger.Printf("%s:   %s %s", cfg, op.Kind, op.ExplorerURL())
	}
	if res.FailureReason != "" {
		r.logger.Printf("%s:   reason: %s", cfg, res.FailureReason)
	}

	report.add(res)
	if r.sink != nil {
		r.sink.Record(ctx, res)
	}
}

// runCycle isolates the engine call so a panic becomes an aborted result.
func (r *Runner) runCycle(ctx context.Context, cfg domain.TokenCycleConfig) (res *domain.CycleResult) {
	started := r.now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Printf("%s: cycle panicked: %v", cfg, p)
			res = aborted(cfg, started, r.now(), fmt.Sprintf("panic: %v", p))
		}
	}()

	res = r.engine.RunCycle(ctx, cfg)
	if res == nil {
		res = aborted(cfg, started, r.now(), "engine returned no result")
	}
	return res
}

func aborted(cfg domain.TokenCycleConfig, started, finished time.Time, reason string) *domain.CycleResult {
	res := domain.NewCycleResult(cfg, started)
	res.FinalState = domain.StateAborted
	res.FailureReason = reason
	res.FinishedAt = finished.UnixMilli()
	return res
}

func (r *Runner) finish(report *Report) {
	report.FinishedAt = r.now()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	observability.RecordBatch(report.Status(), elapsed.Seconds())
	r.logger.Printf("batch %s in %s: %d tokens, %d succeeded, %d failed, %d aborted, %d skipped",
		report.Status(), elapsed.Round(time.Millisecond), report.Tokens,
		report.Succeeded, report.Failed, report.Aborted, len(report.Skipped))
}
