package domain

import (
	"errors"
	"fmt"
)

// Engine errors that need caller action before a retry can succeed.
var (
	// ErrInsufficientFunds is returned when a balance change would drive a
	// wallet record below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSigning is returned when a required signer is absent or a signature
	// cannot be produced.
	ErrSigning = errors.New("signing error")

	// ErrUnsupportedSwapEnvelope is returned when a quote carries a
	// transaction envelope with an unknown serialization version.
	ErrUnsupportedSwapEnvelope = errors.New("unsupported swap envelope")

	// ErrInvalidAmount is returned for negative or zero amounts where a
	// positive amount is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress is returned for malformed or zero addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrWalletNotFound is returned when a deposit targets a wallet record
	// that does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletDisabled is returned when a balance change targets a disabled wallet.
	ErrWalletDisabled = errors.New("wallet disabled")
)

// Engine errors that may succeed with a fresh attempt.
var (
	// ErrRentExemptionQuery is returned when the rent-exemption minimum
	// cannot be fetched before building a create-account instruction.
	ErrRentExemptionQuery = errors.New("rent exemption query failed")

	// ErrExpired is returned when the confirmation budget is exhausted
	// before the node reports the transaction as confirmed.
	ErrExpired = errors.New("transaction expired")
)

// TransportError wraps a network-level failure talking to a remote endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps a malformed or unexpected response body.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// FailedError is a node-reported rejection of a transaction.
type FailedError struct {
	Signature string
	Reason    string
}

func (e *FailedError) Error() string {
	if e.Signature == "" {
		return fmt.Sprintf("transaction failed: %s", e.Reason)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Reason)
}

// IsRetryable reports whether a fresh attempt (new reference hash, new
// transaction) may succeed without caller action.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrExpired) || errors.Is(err, ErrRentExemptionQuery)
}

// IsPermanent reports whether the operation will never succeed without
// caller action.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSigning) ||
		errors.Is(err, ErrUnsupportedSwapEnvelope) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrWalletDisabled)
}
