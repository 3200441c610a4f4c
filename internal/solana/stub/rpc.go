package stub

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"liquidify/internal/solana"
)

// ErrNotFound is returned when an account is not found.
var ErrNotFound = errors.New("not found")

// RPCClient is an in-memory ledger implementing solana.RPCClient for testing.
// Fakes of venue adapters mutate balances through the Set/Add helpers.
type RPCClient struct {
	mu sync.Mutex

	Balances      map[string]uint64
	Accounts      map[string]*solana.AccountInfo
	TokenBalances map[string]*solana.TokenAmount
	Statuses      map[string]*solana.SignatureStatus
	Sent          [][]byte

	// Blockhash is returned by GetLatestBlockhash.
	Blockhash string
	// ExpiredBlockhashes are reported invalid by IsBlockhashValid.
	ExpiredBlockhashes map[string]bool
	// BalanceErr, when set, fails every GetBalance call.
	BalanceErr error
	// OnSend assigns a signature to a submitted transaction. Defaults to a counter.
	OnSend func(raw []byte) (string, error)
	// NoAutoConfirm leaves submitted transactions without a status.
	NoAutoConfirm bool
	// StatusErr, when set, fails GetSignatureStatuses. StatusFailures limits
	// the failures to the first N calls; zero fails every call.
	StatusErr      error
	StatusFailures int

	sendCount   int
	statusCalls int
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances:           make(map[string]uint64),
		Accounts:           make(map[string]*solana.AccountInfo),
		TokenBalances:      make(map[string]*solana.TokenAmount),
		Statuses:           make(map[string]*solana.SignatureStatus),
		ExpiredBlockhashes: make(map[string]bool),
		Blockhash:          "11111111111111111111111111111111",
	}
}

// GetBalance returns the stub native balance (zero when unknown).
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[pubkey], nil
}

// GetAccountInfo returns the stub account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetTokenAccountBalance returns the stub token balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amt, ok := c.TokenBalances[account]; ok {
		cp := *amt
		return &cp, nil
	}
	if info, ok := c.Accounts[account]; ok {
		amount, err := solana.TokenAccountAmount(info.Data)
		if err != nil {
			return nil, err
		}
		return &solana.TokenAmount{Amount: amount}, nil
	}
	return nil, fmt.Errorf("token account %s: %w", account, ErrNotFound)
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 1000}, nil
}

// IsBlockhashValid reports false only for blockhashes marked expired.
func (c *RPCClient) IsBlockhashValid(_ context.Context, blockhash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.ExpiredBlockhashes[blockhash], nil
}

// SendTransaction records the transaction and marks it confirmed unless a
// status was preset for the returned signature or NoAutoConfirm is set.
func (c *RPCClient) SendTransaction(_ context.Context, rawTx []byte, _ solana.SendOptions) (string, error) {
	c.mu.Lock()
	onSend := c.OnSend
	c.sendCount++
	n := c.sendCount
	c.Sent = append(c.Sent, append([]byte(nil), rawTx...))
	c.mu.Unlock()

	sig := fmt.Sprintf("stubsig%d", n)
	if onSend != nil {
		var err error
		sig, err = onSend(rawTx)
		if err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	if _, ok := c.Statuses[sig]; !ok && !c.NoAutoConfirm {
		c.Statuses[sig] = &solana.SignatureStatus{Slot: uint64(n), ConfirmationStatus: solana.CommitmentConfirmed}
	}
	c.mu.Unlock()
	return sig, nil
}

// GetSignatureStatuses returns the recorded statuses.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if c.StatusErr != nil && (c.StatusFailures == 0 || c.statusCalls <= c.StatusFailures) {
		return nil, c.StatusErr
	}
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.Statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

// SetBalance sets a native balance.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}

// AddBalance adjusts a native balance by delta, flooring at zero.
func (c *RPCClient) AddBalance(pubkey string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := int64(c.Balances[pubkey])
	cur += delta
	if cur < 0 {
		cur = 0
	}
	c.Balances[pubkey] = uint64(cur)
}

// Balance returns the current native balance.
func (c *RPCClient) Balance(pubkey string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[pubkey]
}

// SetTokenAccount creates or replaces a token account with the given amount.
func (c *RPCClient) SetTokenAccount(account, mint, owner, program string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[account] = &solana.AccountInfo{
		Owner: program,
		Data:  EncodeTokenAccount(mint, owner, amount),
	}
}

// TokenAccountAmount returns the amount held in a stub token account.
func (c *RPCClient) TokenAccountAmount(account string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[account]
	if !ok {
		return 0
	}
	amount, _ := solana.TokenAccountAmount(info.Data)
	return amount
}

// SetAccount stores raw account data.
func (c *RPCClient) SetAccount(pubkey, owner string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &solana.AccountInfo{
		Owner: owner,
		Data:  base64.StdEncoding.EncodeToString(data),
	}
}

// SetStatus presets the status returned for a signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// SetStatusErr replaces StatusErr while lookups may be in flight.
func (c *RPCClient) SetStatusErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusErr = err
}

// StatusCalls returns the number of GetSignatureStatuses calls.
func (c *RPCClient) StatusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCalls
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// EncodeTokenAccount builds base64 token account data: mint | owner | amount | padding.
// Mint and owner are stored as raw bytes only when they decode as base58.
func EncodeTokenAccount(mint, owner string, amount uint64) string {
	data := make([]byte, 165)
	copy(data[0:32], decodeOrZero(mint))
	copy(data[32:64], decodeOrZero(owner))
	binary.LittleEndian.PutUint64(data[64:72], amount)
	return base64.StdEncoding.EncodeToString(data)
}

// ExpireBlockhash marks a blockhash as no longer valid.
func (c *RPCClient) ExpireBlockhash(blockhash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExpiredBlockhashes[blockhash] = true
}
