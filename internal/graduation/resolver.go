// Package graduation decides whether a pump.fun token has left its bonding
// curve and which PumpSwap pool it trades in.
package graduation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"liquidify/internal/domain"
	"liquidify/internal/solana"
	"liquidify/internal/venue"
)

// Default discovery endpoints.
const (
	DefaultPumpFunURL     = "https://frontend-api.pump.fun"
	DefaultDexScreenerURL = "https://api.dexscreener.com"
)

// DexScreener dex identifiers.
const (
	dexPumpSwap = "pumpswap"
	dexRaydium  = "raydium"
)

// Options configures a Resolver.
type Options struct {
	PumpFunURL     string
	DexScreenerURL string
	Logger         *log.Logger
}

// Resolver queries pump.fun and DexScreener. Results are never cached.
type Resolver struct {
	http           venue.HTTPDoer
	pumpFunURL     string
	dexScreenerURL string
	logger         *log.Logger
}

// NewResolver creates a resolver.
func NewResolver(doer venue.HTTPDoer, opts Options) *Resolver {
	if opts.PumpFunURL == "" {
		opts.PumpFunURL = DefaultPumpFunURL
	}
	if opts.DexScreenerURL == "" {
		opts.DexScreenerURL = DefaultDexScreenerURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		http:           doer,
		pumpFunURL:     strings.TrimRight(opts.PumpFunURL, "/"),
		dexScreenerURL: strings.TrimRight(opts.DexScreenerURL, "/"),
		logger:         logger,
	}
}

// Resolve returns the graduation status of mint. Unreachable sources or
// missing data resolve to not graduated.
//
//	pump.fun complete=false           -> bonding
//	pump.fun complete=true            -> graduated, pool from DexScreener (may be empty)
//	pump.fun unreachable, pool listed -> graduated
//	otherwise                         -> bonding
func (r *Resolver) Resolve(ctx context.Context, mint string) domain.GraduationStatus {
	coin, err := r.pumpFunCoin(ctx, mint)
	if err != nil {
		r.logger.Printf("[graduation] pump.fun lookup %s: %v", mint, err)
	}
	if coin != nil && !coin.Complete {
		return domain.GraduationStatus{}
	}

	pool, listed, err := r.dexScreenerPool(ctx, mint)
	if err != nil {
		r.logger.Printf("[graduation] dexscreener lookup %s: %v", mint, err)
	}

	if coin != nil {
		if pool == "" && solana.IsValidPubkey(coin.PumpSwapPool) {
			pool = coin.PumpSwapPool
		}
		return domain.GraduationStatus{IsGraduated: true, PoolIdentifier: pool}
	}

	if listed {
		return domain.GraduationStatus{IsGraduated: true, PoolIdentifier: pool}
	}
	return domain.GraduationStatus{}
}

type pumpFunCoin struct {
	Mint         string `json:"mint"`
	Complete     bool   `json:"complete"`
	RaydiumPool  string `json:"raydium_pool"`
	PumpSwapPool string `json:"pump_swap_pool"`
}

func (r *Resolver) pumpFunCoin(ctx context.Context, mint string) (*pumpFunCoin, error) {
	var coin pumpFunCoin
	found, err := r.getJSON(ctx, r.pumpFunURL+"/coins/"+mint, &coin)
	if err != nil || !found {
		return nil, err
	}
	return &coin, nil
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	QuoteToken  struct {
		Address string `json:"address"`
	} `json:"quoteToken"`
}

// dexScreenerPool returns the PumpSwap SOL pool of mint. listed reports
// whether any post-graduation venue (PumpSwap or Raydium) lists the token.
func (r *Resolver) dexScreenerPool(ctx context.Context, mint string) (pool string, listed bool, err error) {
	var resp dexScreenerResponse
	found, err := r.getJSON(ctx, r.dexScreenerURL+"/latest/dex/tokens/"+mint, &resp)
	if err != nil || !found {
		return "", false, err
	}

	for _, p := range resp.Pairs {
		if p.QuoteToken.Address != "" && p.QuoteToken.Address != solana.WrappedSOLMint {
			continue
		}
		switch p.DexID {
		case dexPumpSwap:
			if solana.IsValidPubkey(p.PairAddress) {
				return p.PairAddress, true, nil
			}
		case dexRaydium:
			listed = true
		}
	}
	return "", listed, nil
}

// getJSON decodes a 200 response into out. found is false for 404 and empty bodies.
func (r *Resolver) getJSON(ctx context.Context, url string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	if len(strings.TrimSpace(string(body))) == 0 || strings.TrimSpace(string(body)) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
