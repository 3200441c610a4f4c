// Package engine runs the claim, buyback and liquidity cycle for one token.
//
// A cycle moves through START, FEES_CLAIMED, AMOUNT_DETERMINED, BUYBACK_DONE,
// optionally LIQUIDITY_DONE, and ends in COMPLETE. Malformed credentials and
// panics end it in ABORTED. Venue failures are recorded as notes and never
// stop the cycle; wallet balances read over RPC are the source of truth for
// every amount.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"liquidify/internal/domain"
	"liquidify/internal/feeclaim"
	"liquidify/internal/liquidity"
	"liquidify/internal/observability"
	"liquidify/internal/solana"
	"liquidify/internal/txn"
	"liquidify/internal/venue"
	"liquidify/internal/wallet"
)

// GraduationResolver reports the venue phase of a mint. It never fails.
type GraduationResolver interface {
	Resolve(ctx context.Context, mint string) domain.GraduationStatus
}

// ChainReader reads native and token balances.
type ChainReader interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// Executor signs, submits and confirms instructions.
type Executor interface {
	Execute(ctx context.Context, w *wallet.Wallet, instructions ...solanago.Instruction) (string, error)
}

// Venues are the buyers used per phase.
type Venues struct {
	BondingCurve venue.Buyer // not graduated
	OpenMarket   venue.Buyer // graduated with a known pool
	Aggregator   venue.Buyer // graduated, pool not yet indexed
}

// Options configures an Engine.
type Options struct {
	Claimer   feeclaim.Claimer
	Venues    Venues
	Liquidity liquidity.Provider
	Resolver  GraduationResolver
	Chain     ChainReader
	Executor  Executor // fee split transfers

	Thresholds         Thresholds
	DepositSlippagePct int           // default 10
	SettleTimeout      time.Duration // default 30s
	SettlePollInterval time.Duration // default 1s
	Logger             *log.Logger
	Now                func() time.Time
	DisableStepMetrics bool
}

// Engine executes cycles. It holds no per-token state and is safe for
// sequential reuse across tokens.
type Engine struct {
	claimer   feeclaim.Claimer
	venues    Venues
	liquidity liquidity.Provider
	resolver  GraduationResolver
	chain     ChainReader
	executor  Executor

	thresholds      Thresholds
	depositSlippage int
	settle          settler
	logger          *log.Logger
	now             func() time.Time
	stepMetrics     bool
}

// New creates an Engine.
func New(opts Options) *Engine {
	thresholds := opts.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	depositSlippage := opts.DepositSlippagePct
	if depositSlippage == 0 {
		depositSlippage = 10
	}

	settleTimeout := opts.SettleTimeout
	if settleTimeout == 0 {
		settleTimeout = 30 * time.Second
	}

	pollInterval := opts.SettlePollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		claimer:         opts.Claimer,
		venues:          opts.Venues,
		liquidity:       opts.Liquidity,
		resolver:        opts.Resolver,
		chain:           opts.Chain,
		executor:        opts.Executor,
		thresholds:      thresholds,
		depositSlippage: depositSlippage,
		settle:          settler{timeout: settleTimeout, interval: pollInterval},
		logger:          logger,
		now:             now,
		stepMetrics:     !opts.DisableStepMetrics,
	}
}

// cycle carries the mutable state of one RunCycle call.
type cycle struct {
	cfg    domain.TokenCycleConfig
	wallet *wallet.Wallet
	grad   domain.GraduationStatus
	result *domain.CycleResult
}

// RunCycle executes one cycle for cfg and always returns a result.
// Operations confirmed before a failure stay in the operation log.
func (e *Engine) RunCycle(ctx context.Context, cfg domain.TokenCycleConfig) (result *domain.CycleResult) {
	c := &cycle{cfg: cfg, result: domain.NewCycleResult(cfg, e.now())}
	result = c.result

	defer func() {
		if r := recover(); r != nil {
			e.logf(c, "aborted in %s: %v", c.result.FinalState, r)
			c.result.Succeeded = false
			c.result.FinalState = domain.StateAborted
			c.result.FailureReason = fmt.Sprintf("panic: %v", r)
		}
		c.result.FinishedAt = e.now().UnixMilli()
	}()

	w, err := wallet.FromSecret(cfg.OperatingWalletSecret)
	if err != nil {
		c.result.FinalState = domain.StateAborted
		c.result.FailureReason = err.Error()
		e.logf(c, "aborted: %v", err)
		return result
	}
	c.wallet = w

	if err := e.run(ctx, c); err != nil {
		c.result.Succeeded = false
		c.result.FailureReason = err.Error()
		e.logf(c, "failed in %s: %v", c.result.FinalState, err)
		return result
	}

	c.result.Succeeded = true
	c.result.FinalState = domain.StateComplete
	e.logf(c, "complete: fees=%s buyback=%s liquidity=%s burned=%d ops=%d",
		domain.Lamports(c.result.FeesClaimed), domain.Lamports(c.result.BuybackSpent),
		domain.Lamports(c.result.LiquiditySpent), c.result.SharesBurned, len(c.result.OperationLog))
	return result
}

func (e *Engine) run(ctx context.Context, c *cycle) error {
	r := c.result

	// START
	c.grad = e.resolver.Resolve(ctx, c.cfg.TokenIdentifier)
	r.Phase = c.grad.Phase()
	if c.grad.HasPool() {
		r.PoolIdentifier = c.grad.PoolIdentifier
	}
	e.logf(c, "wallet %s phase %s", c.wallet.Address(), r.Phase)

	before, err := e.chain.GetBalance(ctx, c.wallet.Address())
	if err != nil {
		return fmt.Errorf("read balance before claim: %w", err)
	}

	// FEES_CLAIMED
	claimed := e.claim(ctx, c)
	r.FinalState = domain.StateFeesClaimed

	after := before
	if claimed {
		after, err = e.settle.balanceChange(ctx, e.chain, c.wallet.Address(), before)
	} else {
		after, err = e.chain.GetBalance(ctx, c.wallet.Address())
	}
	if err != nil {
		return fmt.Errorf("read balance after claim: %w", err)
	}

	// AMOUNT_DETERMINED
	r.FeesClaimed = e.thresholds.ClaimedFees(before, after)
	if after > before && after-before > e.thresholds.ClaimCeiling {
		e.note(c, "fees", "clamped", fmt.Sprintf("balance delta %s clamped to %s",
			domain.Lamports(after-before), domain.Lamports(e.thresholds.ClaimCeiling)))
	}

	available := r.FeesClaimed
	if r.FeesClaimed > 0 {
		available -= e.splitFees(ctx, c)
	}

	spendable := e.thresholds.Spendable(available)
	r.FinalState = domain.StateAmountDetermined
	if spendable == 0 {
		e.note(c, "amount", "below_minimum", fmt.Sprintf("nothing to spend: fees %s", domain.Lamports(available)))
		return nil
	}

	switch {
	case !c.grad.IsGraduated:
		e.buy(ctx, c, e.venues.BondingCurve, spendable)
		r.FinalState = domain.StateBuybackDone
	case !c.grad.HasPool():
		e.buy(ctx, c, e.venues.Aggregator, spendable)
		r.FinalState = domain.StateBuybackDone
	default:
		buyHalf, lpHalf := SplitHalf(spendable)
		if err := e.buyThenDeposit(ctx, c, buyHalf, lpHalf); err != nil {
			return err
		}
	}
	return nil
}

// claim returns true when a claim transaction was confirmed.
func (e *Engine) claim(ctx context.Context, c *cycle) bool {
	receipt, err := e.claimer.Claim(ctx, c.wallet)
	switch {
	case errors.Is(err, feeclaim.ErrNoFeesAvailable):
		e.note(c, "claim", "no_fees", "no creator fees to claim")
		return false
	case err != nil:
		e.note(c, "claim", "error", fmt.Sprintf("claim failed: %v", err))
		return false
	}
	c.result.Record(domain.OperationClaimFees, receipt.Signature)
	e.logf(c, "claimed fees %s", domain.Operation{ExternalReference: receipt.Signature}.ExplorerURL())
	return true
}

// splitFees sends the fee split share and returns the lamports actually sent.
func (e *Engine) splitFees(ctx context.Context, c *cycle) uint64 {
	policy := c.cfg.FeeSplit
	if policy == nil {
		return 0
	}
	share := policy.Share(c.result.FeesClaimed)
	if share == 0 {
		return 0
	}
	if !policy.IsValid() {
		e.note(c, "fee_split", "invalid_policy", "fee split skipped: invalid policy")
		return 0
	}
	if e.executor == nil {
		e.note(c, "fee_split", "unavailable", "fee split skipped: no transaction executor")
		return 0
	}
	recipient, err := solanago.PublicKeyFromBase58(policy.Recipient)
	if err != nil {
		e.note(c, "fee_split", "invalid_policy", fmt.Sprintf("fee split skipped: recipient: %v", err))
		return 0
	}

	sig, err := e.executor.Execute(ctx, c.wallet, txn.Transfer(c.wallet.PublicKey(), recipient, share))
	if err != nil {
		e.note(c, "fee_split", "error", fmt.Sprintf("fee split of %s failed: %v", domain.Lamports(share), err))
		return 0
	}
	c.result.Record(domain.OperationFeeSplit, sig)
	c.result.FeeSplitSent = share
	e.logf(c, "fee split %s to %s", domain.Lamports(share), policy.Recipient)
	return share
}

// buy spends lamports on buyer. Failures leave the buyback fields at zero.
func (e *Engine) buy(ctx context.Context, c *cycle, buyer venue.Buyer, lamports uint64) bool {
	res, err := buyer.Buy(ctx, c.wallet, c.cfg.TokenIdentifier, lamports, c.grad.PoolIdentifier)
	if err != nil {
		e.note(c, "buyback", buyReason(err), fmt.Sprintf("buyback of %s failed: %v", domain.Lamports(lamports), err))
		return false
	}
	c.result.Record(domain.OperationBuyback, res.Signature)
	c.result.BuybackSpent = lamports
	c.result.BuybackReceived = res.TokensReceived
	e.logf(c, "bought %d tokens for %s via %s", res.TokensReceived, domain.Lamports(lamports), res.Venue)
	return true
}

func (e *Engine) buyThenDeposit(ctx context.Context, c *cycle, buyLamports, depositLamports uint64) error {
	r := c.result

	tokensBefore, err := solana.FindTokenHolding(ctx, e.chain, c.wallet.Address(), c.cfg.TokenIdentifier)
	if err != nil {
		return fmt.Errorf("read token balance before buyback: %w", err)
	}

	if e.buy(ctx, c, e.venues.OpenMarket, buyLamports) && r.BuybackReceived == 0 {
		settled, err := e.settle.tokenIncrease(ctx, e.chain, c.wallet.Address(), c.cfg.TokenIdentifier, tokensBefore.Total)
		if err != nil {
			e.note(c, "buyback", "settlement", fmt.Sprintf("token balance did not settle: %v", err))
		} else if settled > tokensBefore.Total {
			r.BuybackReceived = settled - tokensBefore.Total
		}
	}
	r.FinalState = domain.StateBuybackDone

	dep, err := e.liquidity.Deposit(ctx, c.wallet, c.grad.PoolIdentifier, depositLamports, e.depositSlippage)
	switch {
	case errors.Is(err, liquidity.ErrInsufficientToken):
		e.note(c, "liquidity", "insufficient_token", fmt.Sprintf("liquidity skipped: %v", err))
		return nil
	case err != nil:
		e.note(c, "liquidity", "error", fmt.Sprintf("deposit of %s failed: %v", domain.Lamports(depositLamports), err))
		return nil
	}

	r.Record(domain.OperationAddLiquidity, dep.Signature)
	r.LiquiditySpent = dep.QuoteSpent
	r.LiquidityShares = dep.SharesReceived
	r.FinalState = domain.StateLiquidityDone
	e.logf(c, "deposited %s and %d tokens for %d shares", domain.Lamports(dep.QuoteSpent), dep.BaseSpent, dep.SharesReceived)

	e.burn(ctx, c, dep.LPMint)
	return nil
}

// burn destroys the wallet's entire pool-share balance across both token
// programs. Failures are notes only.
func (e *Engine) burn(ctx context.Context, c *cycle, lpMint string) {
	holding, err := e.liquidity.ShareBalance(ctx, c.wallet, lpMint)
	if err != nil {
		e.note(c, "burn", "error", fmt.Sprintf("read pool shares: %v", err))
		return
	}
	if holding.Total == 0 {
		e.note(c, "burn", "nothing_to_burn", "no pool shares to burn")
		return
	}

	sig, err := e.liquidity.Burn(ctx, c.wallet, lpMint, holding.Total)
	if err != nil {
		e.note(c, "burn", "error", fmt.Sprintf("burn of %d shares failed, liquidity remains deposited: %v", holding.Total, err))
		return
	}
	c.result.Record(domain.OperationBurnLP, sig)
	c.result.SharesBurned = holding.Total
	e.logf(c, "burned %d pool shares %s", holding.Total, domain.Operation{ExternalReference: sig}.ExplorerURL())
}

// expectedOutcomes are note reasons that are not failures.
var expectedOutcomes = map[string]bool{
	"no_fees":            true,
	"below_minimum":      true,
	"insufficient_token": true,
	"nothing_to_burn":    true,
}

func buyReason(err error) string {
	switch {
	case errors.Is(err, venue.ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, venue.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, venue.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, txn.ErrBlockhashExpired):
		return "expired"
	default:
		return "venue_error"
	}
}

// note records a non-fatal outcome on the result, the log and the step metrics.
func (e *Engine) note(c *cycle, step, reason, msg string) {
	c.result.Note(msg)
	e.logf(c, "%s", msg)
	if e.stepMetrics && !expectedOutcomes[reason] {
		observability.RecordStepFailure(step, reason)
	}
}

func (e *Engine) logf(c *cycle, format string, args ...interface{}) {
	e.logger.Printf("%s: "+format, append([]interface{}{c.cfg}, args...)...)
}
