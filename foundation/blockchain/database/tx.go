package database

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/blockylab/blocky/foundation/blockchain/signature"
)

// =============================================================================

// Tx is the transactional information between two parties. These are the
// canonical fields covered by the signature; the transaction's identity
// is the hash of this value.
type Tx struct {
	ChainID   uint16    `json:"chain_id"`  // Chain the transaction was signed for.
	FromID    AccountID `json:"from"`      // Account sending the funds.
	ToID      AccountID `json:"to"`        // Account receiving the funds.
	Value     float64   `json:"value"`     // Monetary value transferred.
	TimeStamp uint64    `json:"timestamp"` // Time the transaction was created.
}

// NewTx constructs a new transaction.
func NewTx(chainID uint16, fromID AccountID, toID AccountID, value float64) (Tx, error) {
	if !fromID.IsAccountID() {
		return Tx{}, fmt.Errorf("from account is not properly formatted")
	}
	if !toID.IsAccountID() {
		return Tx{}, fmt.Errorf("to account is not properly formatted")
	}
	if value <= 0 {
		return Tx{}, fmt.Errorf("%w: value [%f] must be greater than zero", ErrInvalidAmount, value)
	}

	tx := Tx{
		ChainID:   chainID,
		FromID:    fromID,
		ToID:      toID,
		Value:     value,
		TimeStamp: uint64(time.Now().UTC().Unix()),
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// The signature must be produced by the account claiming to send the
	// funds or verification will fail on every node.
	if PublicKeyToAccountID(privateKey.PublicKey) != tx.FromID {
		return SignedTx{}, fmt.Errorf("signing key does not own the from account %s", tx.FromID)
	}

	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients
// like a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	V *big.Int `json:"v"` // Recovery identifier.
	R *big.Int `json:"r"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Second coordinate of the ECDSA signature.
}

// Validate verifies the transaction has a proper signature that conforms
// to our standards, that the claimed sender produced it, and that the
// core fields are well formed. It does NOT check balances; that requires
// chain context and belongs to the database and mempool.
func (tx SignedTx) Validate(chainID uint16) error {
	if tx.ChainID != chainID {
		return fmt.Errorf("%w: got %d, exp %d", ErrWrongChain, tx.ChainID, chainID)
	}

	if !tx.FromID.IsAccountID() {
		return fmt.Errorf("%w: invalid from account", ErrInvalidTransaction)
	}
	if !tx.ToID.IsAccountID() {
		return fmt.Errorf("%w: invalid to account", ErrInvalidTransaction)
	}
	if tx.FromID == tx.ToID {
		return fmt.Errorf("%w: sending funds to yourself", ErrInvalidTransaction)
	}

	if tx.Value <= 0 {
		return fmt.Errorf("%w: value [%f] must be greater than zero", ErrInvalidAmount, tx.Value)
	}

	if err := signature.VerifySignature(tx.V, tx.R, tx.S); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	// Recover the address that produced this signature and make sure it
	// matches the claimed sender.
	address, err := signature.FromAddress(tx.Tx, tx.V, tx.R, tx.S)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}
	if AccountID(address) != tx.FromID {
		return fmt.Errorf("%w: signature does not belong to the from account", ErrInvalidTransaction)
	}

	return nil
}

// Hash returns the unique identity of the transaction: the hash of its
// canonical fields, excluding the signature.
func (tx SignedTx) Hash() string {
	return signature.Hash(tx.Tx)
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%.6f->%s", tx.FromID, tx.Value, tx.ToID)
}

// =============================================================================

// BlockTx represents the transaction as it's recorded inside a block or
// the mempool. Fee and ReceivedAt are bookkeeping for transaction
// selection and are not covered by the signature or the transaction's
// identity.
type BlockTx struct {
	SignedTx
	Fee        float64 `json:"fee"`         // Fee the transaction offers for inclusion.
	ReceivedAt uint64  `json:"received_at"` // Time this node first saw the transaction.
}

// NewBlockTx constructs a new block transaction.
func NewBlockTx(signedTx SignedTx, fee float64) BlockTx {
	return BlockTx{
		SignedTx:   signedTx,
		Fee:        fee,
		ReceivedAt: uint64(time.Now().UTC().Unix()),
	}
}

// Fee computes the fee a transaction of the specified value offers under
// the chain's fee schedule. The fee is proportional to the value with a
// floor at the minimum fee.
func Fee(value float64, feeRate float64, minFee float64) float64 {
	fee := value * feeRate
	if fee < minFee {
		fee = minFee
	}

	return fee
}
