// Package txvalidator implements the four-step transaction validation
// pipeline and the farmer vote aggregation protocol (C5), grounded on
// `validator/src/txn_validator.rs::TxnValidator` and
// `quorum/src/quorum.rs`'s pointer/threshold combination shape.
package txvalidator

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// Sentinel errors enumerated per spec §4.5 and grounded on
// `TxnValidatorError`.
var (
	ErrInvalidSender           = errors.New("txvalidator: invalid sender")
	ErrPayloadInvalid          = errors.New("txvalidator: payload invalid")
	ErrTxnSignatureIncorrect   = errors.New("txvalidator: signature incorrect")
	ErrOutOfBoundsTimestamp    = errors.New("txvalidator: timestamp out of bounds")
	ErrTxnAmountIncorrect      = errors.New("txvalidator: amount incorrect")
	ErrAccountNotFound         = errors.New("txvalidator: account not found")
	ErrSenderPublicKeyIncorrect = errors.New("txvalidator: sender public key incorrect")
)

// AccountLookup resolves the sender's account for the balance check,
// satisfied by `state.AccountReadHandle` without this package importing state
// directly (keeps the validator decoupled from the trie implementation).
type AccountLookup interface {
	Balance(addr primitives.Address) (uint64, bool)
}

// Validator runs the fixed validation pipeline over a single
// transaction: non-empty pubkey, sufficient balance, signature, and
// timestamp bounds, matching spec §4.5's four-step list exactly.
type Validator struct {
	accounts AccountLookup
}

// New returns a Validator reading balances from accounts.
func New(accounts AccountLookup) *Validator {
	return &Validator{accounts: accounts}
}

// Validate runs all four checks in order, short-circuiting on the first
// failure.
func (v *Validator) Validate(txn mempool.Transaction) error {
	if len(txn.SenderPubkey) == 0 {
		return ErrSenderPublicKeyIncorrect
	}

	if v.accounts != nil {
		balance, ok := v.accounts.Balance(txn.SenderAddress)
		if !ok {
			return ErrAccountNotFound
		}
		if txn.Amount == 0 || txn.Amount+txn.Fee > balance {
			return ErrTxnAmountIncorrect
		}
	}

	payload := canonicalPayload(txn)
	ok, err := cryptoutil.VerifySignature(txn.SenderPubkey, payload, txn.Signature)
	if err != nil || !ok {
		return fmt.Errorf("%w: %v", ErrTxnSignatureIncorrect, err)
	}

	now := time.Now().Unix()
	if txn.Timestamp <= 0 || txn.Timestamp > now {
		return fmt.Errorf("%w: %d outside (0, %d]", ErrOutOfBoundsTimestamp, txn.Timestamp, now)
	}

	return nil
}

// canonicalPayload is the SHA-256 digest of a deterministic string
// encoding of the transaction; this digest is what the signature covers
// (VerifySignature hashes it once more before checking), matching `TransactionKind::build_payload`'s intent
// without depending on the original's exact serialization.
func canonicalPayload(txn mempool.Transaction) []byte {
	buf := fmt.Sprintf("%s:%d:%s:%s:%s:%d:%d:%d",
		txn.ID, txn.Timestamp, txn.SenderAddress, txn.ReceiverAddress,
		txn.Token, txn.Amount, txn.Nonce, txn.Fee)
	sum := sha256.Sum256([]byte(buf))
	return sum[:]
}
