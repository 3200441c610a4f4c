// Package txn builds, signs, submits and confirms Solana transactions for the
// operating wallet.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"liquidify/internal/solana"
	"liquidify/internal/wallet"
)

var (
	// ErrTransactionFailed is returned when a transaction landed with an error.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrBlockhashExpired is returned when a transaction never landed and its
	// blockhash is no longer valid.
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")
)

// Default submitter settings.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollInterval = 30 * time.Second
	DefaultSendRetries     = 3
)

// Options configures a Submitter.
type Options struct {
	// Commitment a transaction must reach before it counts as confirmed.
	Commitment string
	// PollInterval between signature status checks.
	PollInterval time.Duration
	// SendRetries is forwarded to sendTransaction as maxRetries.
	SendRetries uint
	// MaxPollInterval caps the backoff applied while status lookups fail.
	MaxPollInterval time.Duration
	Logger          *log.Logger
}

// Submitter sends signed transactions and waits for a terminal status.
// Once a transaction is broadcast, confirmation is not cut short by the
// caller's context: it ends only when the transaction is confirmed, failed
// on-chain, or its blockhash has provably expired.
type Submitter struct {
	rpc    solana.RPCClient
	ws     solana.WSClient
	opts   Options
	logger *log.Logger
}

// NewSubmitter creates a submitter. ws may be nil, in which case confirmation
// relies on status polling only.
func NewSubmitter(rpc solana.RPCClient, ws solana.WSClient, opts Options) *Submitter {
	if opts.Commitment == "" {
		opts.Commitment = solana.CommitmentConfirmed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SendRetries == 0 {
		opts.SendRetries = DefaultSendRetries
	}
	if opts.MaxPollInterval < opts.PollInterval {
		opts.MaxPollInterval = max(DefaultMaxPollInterval, opts.PollInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Submitter{rpc: rpc, ws: ws, opts: opts, logger: logger}
}

// Build assembles a legacy transaction paid by w with a fresh blockhash.
func (s *Submitter) Build(ctx context.Context, w *wallet.Wallet, instructions ...solanago.Instruction) (*solanago.Transaction, error) {
	bh, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	hash, err := solanago.HashFromBase58(bh.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash %q: %w", bh.Blockhash, err)
	}

	tx, err := solanago.NewTransaction(instructions, hash, solanago.TransactionPayer(w.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// Execute builds, signs, sends and confirms a transaction from instructions.
func (s *Submitter) Execute(ctx context.Context, w *wallet.Wallet, instructions ...solanago.Instruction) (string, error) {
	tx, err := s.Build(ctx, w, instructions...)
	if err != nil {
		return "", err
	}
	if err := w.Sign(tx); err != nil {
		return "", err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return s.send(ctx, raw, tx.Message.RecentBlockhash.String())
}

// ExecuteSerialized signs a transaction built by a venue and submits it.
func (s *Submitter) ExecuteSerialized(ctx context.Context, w *wallet.Wallet, unsigned []byte) (string, error) {
	tx, raw, err := w.SignSerialized(unsigned)
	if err != nil {
		return "", err
	}
	return s.send(ctx, raw, tx.Message.RecentBlockhash.String())
}

func (s *Submitter) send(ctx context.Context, raw []byte, blockhash string) (string, error) {
	retries := s.opts.SendRetries
	sig, err := s.rpc.SendTransaction(ctx, raw, solana.SendOptions{
		SkipPreflight:       true,
		PreflightCommitment: s.opts.Commitment,
		MaxRetries:          &retries,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := s.Confirm(ctx, sig, blockhash); err != nil {
		return sig, err
	}
	return sig, nil
}

// Confirm waits until signature reaches the configured commitment. Failed
// status or blockhash lookups are retried with backoff for as long as it takes;
// only a confirmed or failed status, or an expired blockhash followed by a
// final status miss, ends the wait.
func (s *Submitter) Confirm(ctx context.Context, signature, blockhash string) error {
	ctx = context.WithoutCancel(ctx)

	var notify <-chan solana.SignatureNotification
	if s.ws != nil {
		ch, err := s.ws.SubscribeSignature(ctx, signature)
		if err != nil {
			s.logger.Printf("[txn] subscribe %s failed, polling instead: %v", signature, err)
		} else {
			notify = ch
			defer func() {
				if notify == nil {
					return
				}
				if err := s.ws.UnsubscribeSignature(ctx, signature); err != nil {
					s.logger.Printf("[txn] unsubscribe %s: %v", signature, err)
				}
			}()
		}
	}

	delay := s.opts.PollInterval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	lookupErrors := 0
	for {
		done, err := s.checkStatus(ctx, signature, blockhash)
		switch {
		case done:
			return err
		case err != nil:
			lookupErrors++
			if lookupErrors == 1 || lookupErrors%10 == 0 {
				s.logger.Printf("[txn] %s still unconfirmed after %d failed lookups: %v", signature, lookupErrors, err)
			}
			delay = min(delay*2, s.opts.MaxPollInterval)
		default:
			lookupErrors = 0
			delay = s.opts.PollInterval
		}
		timer.Reset(delay)

		select {
		case n, ok := <-notify:
			notify = nil
			if !ok {
				continue
			}
			if n.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, n.Err)
			}
			return nil
		case <-timer.C:
		}
	}
}

// checkStatus reports done=true once the outcome of signature is final.
func (s *Submitter) checkStatus(ctx context.Context, signature, blockhash string) (bool, error) {
	status, err := s.status(ctx, signature)
	if err != nil {
		return false, err
	}
	if status != nil {
		return s.resolve(signature, status)
	}

	valid, err := s.rpc.IsBlockhashValid(ctx, blockhash)
	if err != nil {
		return false, fmt.Errorf("check blockhash: %w", err)
	}
	if valid {
		return false, nil
	}

	// It may have landed in the last valid block.
	status, err = s.status(ctx, signature)
	if err != nil {
		return false, err
	}
	if status != nil {
		return s.resolve(signature, status)
	}
	return true, fmt.Errorf("%w: %s", ErrBlockhashExpired, signature)
}

func (s *Submitter) resolve(signature string, status *solana.SignatureStatus) (bool, error) {
	if status.Failed() {
		return true, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err)
	}
	if status.Reached(s.opts.Commitment) {
		return true, nil
	}
	return false, nil
}

func (s *Submitter) status(ctx context.Context, signature string) (*solana.SignatureStatus, error) {
	statuses, err := s.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return nil, fmt.Errorf("get signature status: %w", err)
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}
