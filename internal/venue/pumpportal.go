package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"liquidify/internal/domain"
	"liquidify/internal/solana"
	"liquidify/internal/txn"
	"liquidify/internal/wallet"
)

// DefaultPumpPortalEndpoint is the PumpPortal local transaction API.
const DefaultPumpPortalEndpoint = "https://pumpportal.fun/api/trade-local"

// PumpPortal pool selectors.
const (
	PoolPump = "pump"
	PoolAuto = "auto"
)

// TradeRequest is the body of a trade-local request. Amount is in SOL when
// DenominatedInSol is "true".
type TradeRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"`
	Mint             string  `json:"mint,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	DenominatedInSol string  `json:"denominatedInSol,omitempty"`
	Slippage         int     `json:"slippage,omitempty"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool,omitempty"`
}

// APIError is a non-200 reply from PumpPortal.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pumpportal %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the classified failure.
func (e *APIError) Unwrap() error {
	return e.kind
}

// PumpPortalClient requests unsigned transactions from PumpPortal.
type PumpPortalClient struct {
	http     HTTPDoer
	endpoint string
}

// NewPumpPortalClient creates a client. An empty endpoint uses the default.
func NewPumpPortalClient(doer HTTPDoer, endpoint string) *PumpPortalClient {
	if endpoint == "" {
		endpoint = DefaultPumpPortalEndpoint
	}
	return &PumpPortalClient{http: doer, endpoint: endpoint}
}

// TradeTransaction returns the serialized unsigned transaction for req.
func (c *PumpPortalClient) TradeTransaction(ctx context.Context, req TradeRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrVenue, req.Action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrVenue, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, kind: classify(resp.StatusCode, msg)}
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("%w: empty transaction", ErrVenue)
	}
	return respBody, nil
}

func classify(status int, msg string) error {
	lower := strings.ToLower(msg)
	if status == http.StatusBadRequest {
		switch {
		case strings.Contains(lower, "not found"), strings.Contains(lower, "does not exist"):
			return ErrAssetNotFound
		case strings.Contains(lower, "insufficient"), strings.Contains(lower, "balance"):
			return ErrInsufficientBalance
		}
	}
	if strings.Contains(lower, "slippage") {
		return ErrSlippageExceeded
	}
	return ErrVenue
}

// PumpPortalConfig configures buys through PumpPortal.
type PumpPortalConfig struct {
	Pool           string  // "pump" for the bonding curve, "auto" after graduation
	SlippagePct    int     // default 25
	PriorityFeeSOL float64 // default 0.0005
}

// PumpPortalBuyer buys on the bonding curve or, after graduation, on the AMM.
type PumpPortalBuyer struct {
	client    *PumpPortalClient
	submitter *txn.Submitter
	rpc       solana.AccountReader
	cfg       PumpPortalConfig
	kind      Kind
}

// Compile-time interface check.
var _ Buyer = (*PumpPortalBuyer)(nil)

// NewPumpPortalBuyer creates a buyer for the configured pool.
func NewPumpPortalBuyer(client *PumpPortalClient, submitter *txn.Submitter, rpc solana.AccountReader, cfg PumpPortalConfig) *PumpPortalBuyer {
	if cfg.Pool == "" {
		cfg.Pool = PoolPump
	}
	if cfg.SlippagePct <= 0 {
		cfg.SlippagePct = 25
	}
	if cfg.PriorityFeeSOL <= 0 {
		cfg.PriorityFeeSOL = 0.0005
	}
	kind := KindOpenMarket
	if cfg.Pool == PoolPump {
		kind = KindBondingCurve
	}
	return &PumpPortalBuyer{client: client, submitter: submitter, rpc: rpc, cfg: cfg, kind: kind}
}

// Buy spends lamports on mint. poolHint is not used; PumpPortal routes by mint.
func (b *PumpPortalBuyer) Buy(ctx context.Context, w *wallet.Wallet, mint string, lamports uint64, _ string) (*BuyResult, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrInsufficientBalance)
	}

	fill, err := startFill(ctx, b.rpc, w.Address(), mint)
	if err != nil {
		return nil, err
	}

	raw, err := b.client.TradeTransaction(ctx, TradeRequest{
		PublicKey:        w.Address(),
		Action:           "buy",
		Mint:             mint,
		Amount:           domain.SOLFloat(lamports),
		DenominatedInSol: "true",
		Slippage:         b.cfg.SlippagePct,
		PriorityFee:      b.cfg.PriorityFeeSOL,
		Pool:             b.cfg.Pool,
	})
	if err != nil {
		return nil, err
	}

	sig, err := b.submitter.ExecuteSerialized(ctx, w, raw)
	if err != nil {
		return nil, submitError(sig, err)
	}

	received, err := fill.received(ctx)
	if err != nil {
		return &BuyResult{Signature: sig, Venue: b.kind}, nil
	}
	return &BuyResult{Signature: sig, TokensReceived: received, Venue: b.kind}, nil
}

// submitError classifies a failed submission. On-chain slippage failures of
// the pump and Jupiter programs carry custom error codes 6002/6001.
func submitError(sig string, err error) error {
	msg := err.Error()
	if errors.Is(err, txn.ErrTransactionFailed) &&
		(strings.Contains(msg, "Custom:6001]") || strings.Contains(msg, "Custom:6002]")) {
		return fmt.Errorf("%w: %s: %w", ErrSlippageExceeded, sig, err)
	}
	return fmt.Errorf("%w: %w", ErrVenue, err)
}
