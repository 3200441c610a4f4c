// Package wallet holds the operating wallet keypair and signs transactions with it.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

// ErrMalformedSecret is returned when a wallet secret cannot be decoded into a keypair.
var ErrMalformedSecret = errors.New("malformed wallet secret")

// Wallet is an ed25519 keypair used as fee payer and signer.
type Wallet struct {
	key solanago.PrivateKey
	pub solanago.PublicKey
}

// FromSecret decodes a 64-byte secret key given either as base58 or as a JSON
// byte array (the solana-keygen file format).
func FromSecret(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedSecret)
	}

	var raw []byte
	if strings.HasPrefix(secret, "[") {
		var arr []int
		if err := json.Unmarshal([]byte(secret), &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
		}
		raw = make([]byte, len(arr))
		for i, v := range arr {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrMalformedSecret, i)
			}
			raw[i] = byte(v)
		}
	} else {
		key, err := solanago.PrivateKeyFromBase58(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
		}
		raw = key
	}

	return fromBytes(raw)
}

// Generate creates a new random wallet.
func Generate() (*Wallet, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromBytes(key)
}

func fromBytes(raw []byte) (*Wallet, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedSecret, len(raw))
	}

	// The trailing 32 bytes must be the public key of the seed.
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !ed25519.PublicKey(derived[ed25519.SeedSize:]).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("%w: public key mismatch", ErrMalformedSecret)
	}

	key := solanago.PrivateKey(append([]byte(nil), raw...))
	return &Wallet{key: key, pub: key.PublicKey()}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.pub.String()
}

// PublicKey returns the public key.
func (w *Wallet) PublicKey() solanago.PublicKey {
	return w.pub
}

// Secret returns the base58 encoded secret key.
func (w *Wallet) Secret() string {
	return w.key.String()
}

// String returns the address only.
func (w *Wallet) String() string {
	return w.Address()
}

// Sign signs every signature slot belonging to this wallet.
func (w *Wallet) Sign(tx *solanago.Transaction) error {
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(w.pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

// SignSerialized decodes a transaction built by a third party, signs it and
// returns the wire bytes together with the decoded transaction.
func (w *Wallet) SignSerialized(raw []byte) (*solanago.Transaction, []byte, error) {
	tx, err := solanago.TransactionFromBytes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decode transaction: %w", err)
	}
	if err := w.Sign(tx); err != nil {
		return nil, nil, err
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("encode transaction: %w", err)
	}
	return tx, signed, nil
}
