package mempool

import "errors"

var (
	// ErrDuplicateTxn is returned by Insert when the transaction id is
	// already present in the mempool.
	ErrDuplicateTxn = errors.New("mempool: duplicate transaction")
	// ErrTxnNotFound is returned when an operation references a
	// transaction id the mempool does not hold.
	ErrTxnNotFound = errors.New("mempool: transaction not found")
)
