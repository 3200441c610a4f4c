package solana

// Commitment levels.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAmount is a raw token balance.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SendOptions configures sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *uint
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64 // nil once finalized
	Err                interface{}
	ConfirmationStatus string // processed | confirmed | finalized
}

// Failed reports whether the transaction landed with an error.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}

// Reached reports whether the status is at or beyond the commitment.
func (s *SignatureStatus) Reached(commitment string) bool {
	if s == nil {
		return false
	}
	return commitmentRank(s.ConfirmationStatus) >= commitmentRank(commitment)
}

func commitmentRank(c string) int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}
