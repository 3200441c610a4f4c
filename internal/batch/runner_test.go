package batch

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"liquidify/internal/domain"
	"liquidify/internal/lock"
	"liquidify/internal/storage/memory"
	"liquidify/internal/wallet"
)

// fakeEngine returns a canned result per mint and records every call.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	secrets []string
	results map[string]func(cfg domain.TokenCycleConfig) *domain.CycleResult
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{results: make(map[string]func(domain.TokenCycleConfig) *domain.CycleResult)}
}

func (e *fakeEngine) RunCycle(_ context.Context, cfg domain.TokenCycleConfig) *domain.CycleResult {
	e.mu.Lock()
	e.calls = append(e.calls, cfg.TokenIdentifier)
	e.secrets = append(e.secrets, cfg.OperatingWalletSecret)
	fn := e.results[cfg.TokenIdentifier]
	e.mu.Unlock()

	if fn != nil {
		return fn(cfg)
	}
	res := domain.NewCycleResult(cfg, time.UnixMilli(1_000))
	res.Succeeded = true
	res.FinalState = domain.StateComplete
	res.FinishedAt = 2_000
	return res
}

// fakeOpener opens values of the form "sealed:<secret>".
type fakeOpener struct{}

func (fakeOpener) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, "sealed:") {
		return "", errors.New("authentication failed")
	}
	return strings.TrimPrefix(sealed, "sealed:"), nil
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, lock.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released = append(l.released, key) }, nil
}

func testSecret(t *testing.T) string {
	t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return w.Secret()
}

func insertToken(t *testing.T, reg *memory.TokenRegistry, id, mint, sealed string, status domain.TokenStatus, createdAt int64) {
	t.Helper()
	err := reg.Insert(context.Background(), &domain.TokenRecord{
		ID:                 id,
		Mint:               mint,
		Symbol:             strings.ToUpper(id),
		SealedWalletSecret: sealed,
		Status:             status,
		CreatedAt:          createdAt,
	})
	if err != nil {
		t.Fatalf("Insert %s failed: %v", id, err)
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "cycle-" + string(rune('0'+n))
	}
}

func TestRunner_RunBatch_IsolatesFailures(t *testing.T) {
	reg := memory.NewTokenRegistry()
	history := memory.NewCycleHistoryStore()
	secret := testSecret(t)

	insertToken(t, reg, "a", "MintA", "sealed:"+secret, domain.TokenStatusBonding, 1)
	insertToken(t, reg, "b", "MintB", "", domain.TokenStatusBonding, 2)
	insertToken(t, reg, "c", "MintC", "garbage", domain.TokenStatusBonding, 3)
	insertToken(t, reg, "d", "MintD", "sealed:"+secret, domain.TokenStatusBonding, 4)
	insertToken(t, reg, "e", "MintE", "sealed:"+secret, domain.TokenStatusGraduated, 5)
	insertToken(t, reg, "f", "MintF", "sealed:notakey", domain.TokenStatusPending, 6)
	insertToken(t, reg, "p", "MintP", "sealed:"+secret, domain.TokenStatusPaused, 7)

	eng := newFakeEngine()
	eng.results["MintD"] = func(domain.TokenCycleConfig) *domain.CycleResult {
		panic("venue exploded")
	}

	runner := NewRunner(RunnerOptions{
		Registry: reg,
		Engine:   eng,
		Secrets:  fakeOpener{},
		Sink:     NewSink(SinkOptions{Registry: reg, History: history, Logger: quietLogger(), DisableMetrics: true}),
		Logger:   quietLogger(),
		NewID:    sequentialIDs(),
	})

	report, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	// Engine is only invoked for tokens with a usable credential
	wantCalls := []string{"MintA", "MintD", "MintE"}
	if len(eng.calls) != len(wantCalls) {
		t.Fatalf("Expected engine calls %v, got %v", wantCalls, eng.calls)
	}
	for i, mint := range wantCalls {
		if eng.calls[i] != mint {
			t.Errorf("call %d: expected %s, got %s", i, mint, eng.calls[i])
		}
		if eng.secrets[i] != secret {
			t.Errorf("call %d: engine did not receive the opened secret", i)
		}
	}

	if report.Tokens != 6 {
		t.Errorf("Expected 6 eligible tokens, got %d", report.Tokens)
	}
	if report.Succeeded != 2 || report.Aborted != 1 || report.Failed != 0 {
		t.Errorf("Unexpected counts: succeeded=%d aborted=%d failed=%d",
			report.Succeeded, report.Aborted, report.Failed)
	}
	if report.Status() != "partial" {
		t.Errorf("Expected status partial, got %s", report.Status())
	}

	wantSkips := map[string]string{
		"MintB": SkipNoCredential,
		"MintC": SkipCredentialUnreadable,
		"MintF": SkipCredentialInvalid,
	}
	if len(report.Skipped) != len(wantSkips) {
		t.Fatalf("Expected %d skips, got %v", len(wantSkips), report.Skipped)
	}
	for _, s := range report.Skipped {
		if wantSkips[s.Mint] != s.Reason {
			t.Errorf("%s: expected skip reason %q, got %q", s.Mint, wantSkips[s.Mint], s.Reason)
		}
	}

	// The panicking token is recorded as aborted and persisted
	aborted := report.Results[1]
	if aborted.FinalState != domain.StateAborted {
		t.Errorf("Expected ABORTED, got %s", aborted.FinalState)
	}
	if !strings.Contains(aborted.FailureReason, "venue exploded") {
		t.Errorf("Expected panic reason, got %q", aborted.FailureReason)
	}
	if _, err := history.GetByID(context.Background(), aborted.CycleID); err != nil {
		t.Errorf("Aborted cycle not persisted: %v", err)
	}
}

func TestRunner_RunBatch_SinkUpdatesRegistry(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewTokenRegistry()
	history := memory.NewCycleHistoryStore()
	metrics := memory.NewCycleMetricsStore()
	secret := testSecret(t)

	insertToken(t, reg, "g", "MintG", "sealed:"+secret, domain.TokenStatusBonding, 1)

	eng := newFakeEngine()
	eng.results["MintG"] = func(cfg domain.TokenCycleConfig) *domain.CycleResult {
		res := domain.NewCycleResult(cfg, time.UnixMilli(10_000))
		res.Succeeded = true
		res.Phase = domain.PhaseGraduated
		res.PoolIdentifier = "Pool111"
		res.FinalState = domain.StateComplete
		res.FeesClaimed = 20_500_000
		res.BuybackSpent = 10_000_000
		res.LiquiditySpent = 10_000_000
		res.Record(domain.OperationClaimFees, "sig-claim")
		res.Record(domain.OperationBuyback, "sig-buy")
		res.Record(domain.OperationAddLiquidity, "sig-deposit")
		res.Record(domain.OperationBurnLP, "sig-burn")
		res.FinishedAt = 14_000
		return res
	}

	runner := NewRunner(RunnerOptions{
		Registry: reg,
		Engine:   eng,
		Secrets:  fakeOpener{},
		Sink: NewSink(SinkOptions{
			Registry: reg, History: history, Metrics: metrics,
			Logger: quietLogger(), DisableMetrics: true,
		}),
		Logger: quietLogger(),
		NewID:  func() string { return "cycle-g" },
	})

	report, err := runner.RunBatch(ctx)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if report.Status() != "success" {
		t.Errorf("Expected success, got %s", report.Status())
	}

	token, err := reg.GetByID(ctx, "g")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if token.Status != domain.TokenStatusGraduated {
		t.Errorf("Expected status graduated, got %s", token.Status)
	}
	if token.GraduatedAt == nil || *token.GraduatedAt != 14_000 {
		t.Errorf("Expected graduated_at 14000, got %v", token.GraduatedAt)
	}
	if token.TotalFeesClaimed != 20_500_000 || token.TotalBuybackSpent != 10_000_000 || token.TotalLiquiditySpent != 10_000_000 {
		t.Errorf("Unexpected totals: %d/%d/%d", token.TotalFeesClaimed, token.TotalBuybackSpent, token.TotalLiquiditySpent)
	}
	if token.CycleCount != 1 {
		t.Errorf("Expected cycle count 1, got %d", token.CycleCount)
	}

	cycle, err := history.GetByID(ctx, "cycle-g")
	if err != nil {
		t.Fatalf("history GetByID failed: %v", err)
	}
	if len(cycle.OperationLog) != 4 || cycle.OperationLog[3].Kind != domain.OperationBurnLP {
		t.Errorf("Operation log not persisted in order: %v", cycle.OperationLog)
	}

	summary, err := metrics.Summary(ctx, "g", 0, 100_000)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Cycles != 1 || summary.LiquiditySpent != 10_000_000 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestRunner_RunConfigs_SkipsWithoutCredential(t *testing.T) {
	secret := testSecret(t)
	eng := newFakeEngine()
	runner := NewRunner(RunnerOptions{Engine: eng, Logger: quietLogger()})

	report := runner.RunConfigs(context.Background(), []domain.TokenCycleConfig{
		{TokenIdentifier: "Mint1", OperatingWalletSecret: secret},
		{TokenIdentifier: "Mint2"},
		{TokenIdentifier: "Mint3", OperatingWalletSecret: secret},
	})

	if len(eng.calls) != 2 || eng.calls[0] != "Mint1" || eng.calls[1] != "Mint3" {
		t.Errorf("Expected engine calls [Mint1 Mint3], got %v", eng.calls)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipNoCredential {
		t.Errorf("Expected one no_credential skip, got %v", report.Skipped)
	}
	for _, res := range report.Results {
		if res.CycleID == "" {
			t.Error("Expected cycle ID to be assigned")
		}
	}
}

func TestRunner_RunConfigs_NilResult(t *testing.T) {
	secret := testSecret(t)
	eng := newFakeEngine()
	eng.results["Mint1"] = func(domain.TokenCycleConfig) *domain.CycleResult { return nil }
	runner := NewRunner(RunnerOptions{Engine: eng, Logger: quietLogger()})

	report := runner.RunConfigs(context.Background(), []domain.TokenCycleConfig{
		{TokenIdentifier: "Mint1", OperatingWalletSecret: secret},
		{TokenIdentifier: "Mint2", OperatingWalletSecret: secret},
	})

	if report.Aborted != 1 || report.Succeeded != 1 {
		t.Errorf("Expected 1 aborted and 1 succeeded, got %d/%d", report.Aborted, report.Succeeded)
	}
}

func TestRunner_Lock(t *testing.T) {
	secret := testSecret(t)
	eng := newFakeEngine()
	locker := &fakeLocker{held: map[string]bool{"cycle:Mint2": true}}
	runner := NewRunner(RunnerOptions{Engine: eng, Locker: locker, Logger: quietLogger()})

	report := runner.RunConfigs(context.Background(), []domain.TokenCycleConfig{
		{TokenIdentifier: "Mint1", OperatingWalletSecret: secret},
		{TokenIdentifier: "Mint2", OperatingWalletSecret: secret},
	})

	if len(eng.calls) != 1 || eng.calls[0] != "Mint1" {
		t.Errorf("Expected only Mint1 to run, got %v", eng.calls)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipLockHeld {
		t.Errorf("Expected lock_held skip, got %v", report.Skipped)
	}
	if len(locker.released) != 1 || locker.released[0] != "cycle:Mint1" {
		t.Errorf("Expected lock released after cycle, got %v", locker.released)
	}
}

func TestRunner_LockError(t *testing.T) {
	secret := testSecret(t)
	eng := newFakeEngine()
	locker := &fakeLocker{err: errors.New("connection refused")}
	runner := NewRunner(RunnerOptions{Engine: eng, Locker: locker, Logger: quietLogger()})

	report := runner.RunConfigs(context.Background(), []domain.TokenCycleConfig{
		{TokenIdentifier: "Mint1", OperatingWalletSecret: secret},
	})

	if len(eng.calls) != 0 {
		t.Errorf("Engine must not run without the lock, got %v", eng.calls)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipLockError {
		t.Errorf("Expected lock_error skip, got %v", report.Skipped)
	}
}

func TestRunner_RunMint(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewTokenRegistry()
	secret := testSecret(t)
	insertToken(t, reg, "a", "MintA", "sealed:"+secret, domain.TokenStatusBonding, 1)
	insertToken(t, reg, "b", "MintB", "sealed:"+secret, domain.TokenStatusBonding, 2)
	insertToken(t, reg, "p", "MintP", "sealed:"+secret, domain.TokenStatusPaused, 3)

	eng := newFakeEngine()
	runner := NewRunner(RunnerOptions{Registry: reg, Engine: eng, Secrets: fakeOpener{}, Logger: quietLogger()})

	report, err := runner.RunMint(ctx, "MintB")
	if err != nil {
		t.Fatalf("RunMint failed: %v", err)
	}
	if report.Tokens != 1 || len(eng.calls) != 1 || eng.calls[0] != "MintB" {
		t.Errorf("Expected a single MintB cycle, got %v", eng.calls)
	}

	if _, err := runner.RunMint(ctx, "MintP"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("Expected ErrNotEligible, got %v", err)
	}
	if _, err := runner.RunMint(ctx, "Unknown"); err == nil {
		t.Error("Expected error for unknown mint")
	}
}

func TestRunner_Canceled(t *testing.T) {
	secret := testSecret(t)
	ctx, cancel := context.WithCancel(context.Background())
	eng := newFakeEngine()
	eng.results["Mint1"] = func(cfg domain.TokenCycleConfig) *domain.CycleResult {
		cancel()
		res := domain.NewCycleResult(cfg, time.UnixMilli(1))
		res.Succeeded = true
		res.FinalState = domain.StateComplete
		return res
	}
	runner := NewRunner(RunnerOptions{Engine: eng, Logger: quietLogger()})

	report := runner.RunConfigs(ctx, []domain.TokenCycleConfig{
		{TokenIdentifier: "Mint1", OperatingWalletSecret: secret},
		{TokenIdentifier: "Mint2", OperatingWalletSecret: secret},
	})

	if len(eng.calls) != 1 {
		t.Errorf("Expected batch to stop after cancellation, got %v", eng.calls)
	}
	if report.Status() != "canceled" {
		t.Errorf("Expected canceled, got %s", report.Status())
	}
}
