// Package txpool is the Transaction Pool collaborator of spec §6: it
// buffers unconfirmed transactions and exposes the apply/undo lifecycle
// the Chain Mutator drives during block apply and delete. Grounded on
// the teacher's custodian struct's use of sync.Cond to coordinate
// concurrent goroutines reading and writing shared in-memory state
// (custodian.go's imports/exports condition variables); the pool here
// needs no wait/signal, just mutual exclusion over its pending-set map,
// so it uses a plain sync.Mutex.
package txpool

import (
	"context"
	"sync"

	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/txexec"
)

// Pool is the concrete, in-memory Transaction Pool.
type Pool struct {
	executor *txexec.Executor
	ledger   *ledger.Store

	mu          sync.Mutex
	unconfirmed map[string]*model.Transaction
}

// New constructs a Pool backed by the given executor and ledger — the
// same two collaborators the Chain Mutator uses, so the pool's notion
// of "unconfirmed" stays consistent with the mutator's.
func New(executor *txexec.Executor, ledger *ledger.Store) *Pool {
	return &Pool{
		executor:    executor,
		ledger:      ledger,
		unconfirmed: make(map[string]*model.Transaction),
	}
}

// ReceiveTransactions validates and applies each transaction's
// unconfirmed effect, then adds it to the pending set. Used both for
// transactions arriving from peers and for transactions a deleted block
// returns to the pool (spec §4.1 deleteLastBlock step 5).
func (p *Pool) ReceiveTransactions(ctx context.Context, txs []*model.Transaction) error {
	for _, tx := range txs {
		sender, err := p.ledger.SetAccountAndGetUnconfirmed(tx.SenderPublicKey)
		if err != nil {
			return err
		}
		if err := p.executor.ApplyUnconfirmed(ctx, tx, sender); err != nil {
			return err
		}
		p.mu.Lock()
		p.unconfirmed[tx.ID] = tx
		p.mu.Unlock()
	}
	return nil
}

// RemoveUnconfirmedTransaction drops id from the pending set without
// touching its unconfirmed balance effect — used when a transaction has
// just been confirmed inside a block and its unconfirmed effect is
// superseded by the confirmed one.
func (p *Pool) RemoveUnconfirmedTransaction(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.unconfirmed, id)
}

// UndoUnconfirmedList reverses the unconfirmed effect of every pending
// transaction and empties the pending set. This is spec §4.1 step 1,
// run outside the persistence transaction since unconfirmed balances
// are purely in-memory (ledger.Store.ResetUnconfirmedAll). A failure
// here is fatal (chainerr.KindUnconfirmedUndoFatal) because the memory
// tables are now considered inconsistent; this implementation's own
// undo loop cannot itself fail (in-memory map mutation only), so the
// fatal path exists for callers layering additional collaborators atop
// this Pool, not for this Pool's own logic.
func (p *Pool) UndoUnconfirmedList(ctx context.Context) ([]*model.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	undone := make([]*model.Transaction, 0, len(p.unconfirmed))
	for _, tx := range p.unconfirmed {
		undone = append(undone, tx)
	}
	p.ledger.ResetUnconfirmedAll()
	p.unconfirmed = make(map[string]*model.Transaction)
	return undone, nil
}

// Pending returns a snapshot of the transactions currently held, in no
// particular order.
func (p *Pool) Pending() []*model.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Transaction, 0, len(p.unconfirmed))
	for _, tx := range p.unconfirmed {
		out = append(out, tx)
	}
	return out
}
