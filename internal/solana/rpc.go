package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the cycle engine.
type RPCClient interface {
	// GetBalance returns the native balance of an account in lamports.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetAccountInfo retrieves account info. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance returns the balance of an existing token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)

	// GetLatestBlockhash returns a recent blockhash for building transactions.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// IsBlockhashValid reports whether a blockhash can still land transactions.
	IsBlockhashValid(ctx context.Context, blockhash string) (bool, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, rawTx []byte, opts SendOptions) (string, error)

	// GetSignatureStatuses returns the status of each signature, nil when unknown.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
