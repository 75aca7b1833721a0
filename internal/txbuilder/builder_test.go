package txbuilder

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/solana/stub"
)

func TestTransfer_Unsigned(t *testing.T) {
	from := sol.NewWallet().PublicKey()
	to := sol.NewWallet().PublicKey()

	b := New(stub.NewLedgerClient())
	tx, err := b.Transfer(from, to, 1_000_000)
	require.NoError(t, err)

	assert.Empty(t, tx.Signatures)
	assert.True(t, tx.Message.RecentBlockhash.IsZero())
	require.Len(t, tx.Message.Instructions, 1)
	assert.Equal(t, from, tx.Message.AccountKeys[0], "fee payer first")
	assert.Equal(t, uint8(1), tx.Message.Header.NumRequiredSignatures)

	assert.Equal(t, sol.SystemProgramID, programOf(tx, 0))
}

func TestTransfer_ZeroAddress(t *testing.T) {
	b := New(stub.NewLedgerClient())
	_, err := b.Transfer(sol.PublicKey{}, sol.NewWallet().PublicKey(), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestCreateAccount_UsesRentMinimum(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.RentExemptions[TokenAccountSize] = 2_039_280

	funder := sol.NewWallet().PublicKey()
	account := sol.NewWallet().PublicKey()

	tx, err := New(ledger).CreateAccount(context.Background(), funder, account, sol.TokenProgramID, TokenAccountSize)
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.CallCount("getMinimumBalanceForRentExemption"))
	assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures, "funder and new account sign")
	assert.Empty(t, tx.Signatures)
}

func TestCreateAccount_RentQueryFails(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.Errors["getMinimumBalanceForRentExemption"] = &domain.TransportError{Op: "rent", Err: errors.New("down")}

	_, err := New(ledger).CreateAccount(context.Background(),
		sol.NewWallet().PublicKey(), sol.NewWallet().PublicKey(), sol.SystemProgramID, 0)
	assert.ErrorIs(t, err, domain.ErrRentExemptionQuery)
	assert.True(t, domain.IsRetryable(err))
}

func TestTokenTransfer_CreatesMissingAccount(t *testing.T) {
	ledger := stub.NewLedgerClient()
	owner := sol.NewWallet().PublicKey()
	recipient := sol.NewWallet().PublicKey()
	mint := sol.NewWallet().PublicKey()

	tx, err := New(ledger).TokenTransfer(context.Background(), owner, recipient, mint, 500, 6)
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 2)

	assert.Equal(t, sol.SPLAssociatedTokenAccountProgramID, programOf(tx, 0))
	assert.Equal(t, sol.TokenProgramID, programOf(tx, 1))
}

func TestTokenTransfer_ExistingAccount(t *testing.T) {
	ledger := stub.NewLedgerClient()
	owner := sol.NewWallet().PublicKey()
	recipient := sol.NewWallet().PublicKey()
	mint := sol.NewWallet().PublicKey()

	destination, _, err := sol.FindAssociatedTokenAddress(recipient, mint)
	require.NoError(t, err)
	ledger.Accounts[destination] = &solana.AccountInfo{Lamports: 2_039_280, Owner: sol.TokenProgramID.String()}

	tx, err := New(ledger).TokenTransfer(context.Background(), owner, recipient, mint, 500, 6)
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 1)
}

func TestTokenTransfer_OffCurveRecipient(t *testing.T) {
	ledger := stub.NewLedgerClient()
	owner := sol.NewWallet().PublicKey()
	mint := sol.NewWallet().PublicKey()
	vault, _, err := sol.FindProgramAddress([][]byte{[]byte("vault")}, sol.TokenProgramID)
	require.NoError(t, err)

	_, err = New(ledger).TokenTransfer(context.Background(), owner, vault, mint, 500, 6)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	assert.Equal(t, 0, ledger.CallCount("getAccountInfo"))

	tx, err := New(ledger).TokenTransfer(context.Background(), owner, vault, mint, 500, 6, AllowOwnerOffCurve())
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 2)
}

func TestFromEnvelope_Legacy(t *testing.T) {
	payer := sol.NewWallet()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), sol.NewWallet().PublicKey()).Build()},
		sol.Hash{9, 9, 9},
		sol.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	decoded, err := FromEnvelope(base64.StdEncoding.EncodeToString(raw), EnvelopeLegacy)
	require.NoError(t, err)
	assert.Empty(t, decoded.Signatures)
	assert.True(t, decoded.Message.RecentBlockhash.IsZero())
	assert.Equal(t, payer.PublicKey(), decoded.Message.AccountKeys[0])
}

func TestFromEnvelope_RejectsUnknownVersion(t *testing.T) {
	_, err := FromEnvelope("not even base64!", "v1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedSwapEnvelope)
	assert.True(t, domain.IsPermanent(err))
}

func TestFromEnvelope_MalformedPayload(t *testing.T) {
	_, err := FromEnvelope("%%%", EnvelopeV0)
	var pe *domain.ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("not-an-address")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = ParseAddress("11111111111111111111111111111111")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	key := sol.NewWallet().PublicKey()
	parsed, err := ParseAddress(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func programOf(tx *sol.Transaction, i int) sol.PublicKey {
	return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
}
