package txvalidator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vrrb-chain/consensus-core/mempool"
)

// Result pairs a transaction with its validation outcome (nil on
// success), matching `process_transactions`'s `HashSet<(TransactionKind,
// Result<()>)>` return shape in `validator_core.rs::Core`.
type Result struct {
	Txn mempool.Transaction
	Err error
}

// Core is a fixed pool of validation workers, replacing `rayon`'s
// data-parallel iterator with a bounded `errgroup`, grounded on
// `validator/src/validator_core.rs::Core::process_transactions`.
type Core struct {
	id        uint8
	validator *Validator
	workers   int
}

// NewCore returns a Core with id identifying it among its siblings and
// workers bounding validation concurrency.
func NewCore(id uint8, validator *Validator, workers int) *Core {
	if workers < 1 {
		workers = 1
	}
	return &Core{id: id, validator: validator, workers: workers}
}

// ID returns the core's identifier.
func (c *Core) ID() uint8 {
	return c.id
}

// ProcessBatch validates every transaction in batch concurrently,
// bounded by c.workers, and returns one Result per input transaction.
func (c *Core) ProcessBatch(ctx context.Context, batch []mempool.Transaction) []Result {
	results := make([]Result, len(batch))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, txn := range batch {
		i, txn := i, txn
		g.Go(func() error {
			results[i] = Result{Txn: txn, Err: c.validator.Validate(txn)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
