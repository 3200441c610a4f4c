package venue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"liquidify/internal/solana"
	"liquidify/internal/txn"
	"liquidify/internal/wallet"
)

// DefaultJupiterEndpoint is the Jupiter swap API base URL.
const DefaultJupiterEndpoint = "https://lite-api.jup.ag/swap/v1"

// JupiterConfig configures aggregator buys.
type JupiterConfig struct {
	Endpoint    string
	SlippageBps int // default 300
}

// Jupiter buys through the Jupiter aggregator: quote, then swap.
type Jupiter struct {
	http      HTTPDoer
	submitter *txn.Submitter
	rpc       solana.AccountReader
	cfg       JupiterConfig
}

// Compile-time interface check.
var _ Buyer = (*Jupiter)(nil)

// NewJupiter creates an aggregator buyer.
func NewJupiter(doer HTTPDoer, submitter *txn.Submitter, rpc solana.AccountReader, cfg JupiterConfig) *Jupiter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultJupiterEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 300
	}
	return &Jupiter{http: doer, submitter: submitter, rpc: rpc, cfg: cfg}
}

// Buy swaps lamports of wrapped SOL into mint.
func (j *Jupiter) Buy(ctx context.Context, w *wallet.Wallet, mint string, lamports uint64, _ string) (*BuyResult, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrInsufficientBalance)
	}

	quote, err := j.quote(ctx, mint, lamports)
	if err != nil {
		return nil, err
	}

	fill, err := startFill(ctx, j.rpc, w.Address(), mint)
	if err != nil {
		return nil, err
	}

	raw, err := j.swapTransaction(ctx, quote, w.Address())
	if err != nil {
		return nil, err
	}

	sig, err := j.submitter.ExecuteSerialized(ctx, w, raw)
	if err != nil {
		return nil, submitError(sig, err)
	}

	received, err := fill.received(ctx)
	if err != nil {
		return &BuyResult{Signature: sig, Venue: KindAggregator}, nil
	}
	return &BuyResult{Signature: sig, TokensReceived: received, Venue: KindAggregator}, nil
}

// quote returns the raw quote document; it is passed back to /swap unchanged.
func (j *Jupiter) quote(ctx context.Context, mint string, lamports uint64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", solana.WrappedSOLMint)
	q.Set("outputMint", mint)
	q.Set("amount", strconv.FormatUint(lamports, 10))
	q.Set("slippageBps", strconv.Itoa(j.cfg.SlippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.Endpoint+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := j.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode quote: %w", ErrVenue, err)
	}
	if parsed.OutAmount == "" || parsed.OutAmount == "0" {
		return nil, fmt.Errorf("%w: no route for %s", ErrAssetNotFound, mint)
	}
	return json.RawMessage(body), nil
}

type jupiterSwapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

func (j *Jupiter) swapTransaction(ctx context.Context, quote json.RawMessage, user string) ([]byte, error) {
	payload, err := json.Marshal(jupiterSwapRequest{
		QuoteResponse:             quote,
		UserPublicKey:             user,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.cfg.Endpoint+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := j.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode swap response: %w", ErrVenue, err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: invalid swap transaction", ErrVenue)
	}
	return raw, nil
}

func (j *Jupiter) do(req *http.Request) ([]byte, error) {
	resp, err := j.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVenue, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrVenue, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		kind := ErrVenue
		if strings.Contains(msg, "TOKEN_NOT_TRADABLE") || strings.Contains(msg, "COULD_NOT_FIND_ANY_ROUTE") {
			kind = ErrAssetNotFound
		}
		return nil, fmt.Errorf("%w: jupiter %d: %s", kind, resp.StatusCode, msg)
	}
	return body, nil
}
