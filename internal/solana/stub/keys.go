package stub

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Pubkey returns a deterministic base58 public key for a test label.
func Pubkey(label string) string {
	h := sha256.Sum256([]byte(label))
	return base58.Encode(h[:])
}

func decodeOrZero(s string) []byte {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return make([]byte, 32)
	}
	return b
}
