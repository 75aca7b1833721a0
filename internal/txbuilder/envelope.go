package txbuilder

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"

	"solana-wallet-engine/internal/domain"
)

// Envelope serialization versions accepted from external builders.
const (
	EnvelopeLegacy = "legacy"
	EnvelopeV0     = "v0"
)

// FromEnvelope decodes a base64 wire transaction produced by an external
// builder. The declared version is checked before any decoding. Signatures are
// dropped and the blockhash cleared so the result is a fresh unsigned
// transaction.
func FromEnvelope(serialized, version string) (*sol.Transaction, error) {
	switch version {
	case EnvelopeLegacy, EnvelopeV0:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSwapEnvelope, version)
	}

	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "decode envelope", Err: err}
	}

	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, &domain.ProtocolError{Op: "decode envelope", Err: err}
	}

	if tx.Message.IsVersioned() != (version == EnvelopeV0) {
		return nil, fmt.Errorf("%w: declared %q does not match payload", domain.ErrUnsupportedSwapEnvelope, version)
	}

	tx.Signatures = nil
	tx.Message.RecentBlockhash = sol.Hash{}
	return tx, nil
}
