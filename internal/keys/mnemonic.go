package keys

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic is returned for a malformed phrase or unsupported length.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// NewMnemonic generates an English BIP-39 phrase of 12, 15, 18, 21 or 24 words.
func NewMnemonic(words int) (string, error) {
	if words < 12 || words > 24 || words%3 != 0 {
		return "", fmt.Errorf("%w: unsupported word count %d", ErrInvalidMnemonic, words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("mnemonic entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return mnemonic, nil
}

// FromMnemonic derives the keypair solana-keygen produces for a phrase with no
// derivation path: the first 32 bytes of the BIP-39 seed are the ed25519 seed.
func FromMnemonic(mnemonic, passphrase string) (Keypair, error) {
	phrase := strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return Keypair{}, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return Keypair{key: sol.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize]))}, nil
}
