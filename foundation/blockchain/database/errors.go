package database

import "errors"

// Validation failures. These reject the offending input and leave the
// existing state untouched.
var (
	// ErrInvalidAmount is returned when a transaction value is zero,
	// negative, or below the configured minimum.
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrInvalidTransaction is returned when a transaction's signature
	// does not verify or its sender does not match the signer.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidProof is returned when a block hash does not satisfy the
	// difficulty target or does not match its recomputed value.
	ErrInvalidProof = errors.New("invalid proof of work")

	// ErrInvalidLinkage is returned when a block does not reference the
	// hash of its parent.
	ErrInvalidLinkage = errors.New("invalid block linkage")

	// ErrDoubleSpend is returned when a transaction spends funds that are
	// not available at that point of the chain, or appears twice.
	ErrDoubleSpend = errors.New("double spend")

	// ErrDuplicateTransaction is returned when a transaction hash repeats
	// inside a block or pool.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrInsufficientFunds is returned when the sender's balance can't
	// cover the transaction value.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWrongChain is returned when a transaction was signed for a
	// different chain id.
	ErrWrongChain = errors.New("transaction signed for a different chain")
)
