// Package keys loads, generates and stores signing keypairs.
// Keypairs are owned by the caller; the engine never persists them.
package keys

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/edwards25519"
	sol "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidKeypair is returned for malformed secret key material.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an address plus its private signing material.
type Keypair struct {
	key sol.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (Keypair, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{key: key}, nil
}

// FromBytes builds a keypair from the 64-byte solana-keygen layout
// (32-byte seed followed by the 32-byte public key).
func FromBytes(secret []byte) (Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(secret))
	}

	pub := secret[32:]
	derived := ed25519.NewKeyFromSeed(secret[:32])
	if string(derived[32:]) != string(pub) {
		return Keypair{}, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}

	key := make([]byte, len(secret))
	copy(key, secret)
	return Keypair{key: sol.PrivateKey(key)}, nil
}

// FromBase58 parses a base58-encoded 64-byte secret key, as exported by most wallets.
func FromBase58(encoded string) (Keypair, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return Keypair{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return FromBytes(raw)
}

// Parse accepts either a JSON byte array (solana-keygen file content) or a base58 string.
func Parse(text string) (Keypair, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
			return Keypair{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return Keypair{}, fmt.Errorf("%w: byte out of range: %d", ErrInvalidKeypair, v)
			}
			raw = append(raw, byte(v))
		}
		return FromBytes(raw)
	}
	return FromBase58(trimmed)
}

// LoadKeypairFile reads a solana-keygen JSON keypair file.
func LoadKeypairFile(path string) (Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("read keypair file: %w", err)
	}
	return Parse(string(data))
}

// WriteKeypairFile stores the keypair in solana-keygen JSON form with 0600 permissions.
func WriteKeypairFile(path string, k Keypair) error {
	if k.IsZero() {
		return fmt.Errorf("%w: empty keypair", ErrInvalidKeypair)
	}
	ints := make([]int, len(k.key))
	for i, b := range k.key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keypair dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}

// PublicKey returns the keypair address.
func (k Keypair) PublicKey() sol.PublicKey {
	return k.key.PublicKey()
}

// PrivateKey returns the signing key.
func (k Keypair) PrivateKey() *sol.PrivateKey {
	return &k.key
}

// IsZero reports whether the keypair holds no key material.
func (k Keypair) IsZero() bool {
	return len(k.key) == 0
}

// Base58 returns the secret key in base58 form.
func (k Keypair) Base58() string {
	return base58.Encode(k.key)
}

// OnCurve reports whether address decodes to an ed25519 point, meaning a
// private key can exist for it. Program derived addresses are off the curve.
func OnCurve(address sol.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(address[:])
	return err == nil
}

// Signers indexes keypairs by address for transaction signing.
type Signers map[sol.PublicKey]Keypair

// NewSigners indexes the given keypairs. Zero keypairs are skipped.
func NewSigners(kps ...Keypair) Signers {
	s := make(Signers, len(kps))
	for _, kp := range kps {
		if kp.IsZero() {
			continue
		}
		s[kp.PublicKey()] = kp
	}
	return s
}

// Get returns the private key for an address, or nil if absent.
func (s Signers) Get(key sol.PublicKey) *sol.PrivateKey {
	kp, ok := s[key]
	if !ok {
		return nil
	}
	return kp.PrivateKey()
}
