package chain

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// DeleteLastBlock is spec §4.1's deleteLastBlock: undo every transaction
// of the current tip in reverse order, tick the round controller
// backward, drop the block row, and return the tip's transactions to
// the pool so they are reconsidered for inclusion in a future block.
func (m *Mutator) DeleteLastBlock(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.IsActive() {
		return chainerr.Validation("delete last block", errors.New("chain mutator already active"))
	}

	oldBlock := m.Last.Get()
	if oldBlock == nil {
		return chainerr.Validation("delete last block", errors.New("no last block"))
	}
	if oldBlock.Height <= 1 {
		return chainerr.Validation("delete last block", chainerr.CannotDeleteGenesis)
	}

	m.enter()
	defer m.exit()

	var parent *model.Block
	err := m.DB.WithTx(ctx, "delete-last-block", func(tx *storage.Tx) error {
		var err error
		parent, err = loadBlock(ctx, tx, oldBlock.PreviousBlockID)
		if err != nil {
			return chainerr.ConsistencyFatal("delete last block: loading parent", errors.Wrap(chainerr.ParentMissing, err.Error()))
		}

		for i := len(oldBlock.Transactions) - 1; i >= 0; i-- {
			t := oldBlock.Transactions[i]
			sender, err := m.Ledger.GetAccount(ctx, tx, t.SenderPublicKey)
			if err != nil {
				return chainerr.ConsistencyFatal("delete last block: resolving sender for undo", err)
			}
			if err := m.Executor.Undo(ctx, t, oldBlock, sender, tx); err != nil {
				return chainerr.ConsistencyFatal("delete last block: undoing confirmed effect", err)
			}
			if err := m.Executor.UndoUnconfirmed(ctx, t, sender); err != nil {
				return chainerr.ConsistencyFatal("delete last block: undoing unconfirmed effect", err)
			}
		}

		if err := m.Round.BackwardTick(ctx, oldBlock, parent, tx); err != nil {
			return chainerr.ConsistencyFatal("delete last block: backward round tick", err)
		}

		// SQLite leaves the schema's ON DELETE CASCADE unenforced unless
		// foreign keys are enabled on the connection, so the block's
		// transaction rows are deleted explicitly.
		const txQ = `DELETE FROM transactions WHERE block_id = $1`
		if _, err := tx.Exec(ctx, txQ, oldBlock.ID); err != nil {
			return chainerr.Storage("delete last block: deleting transaction rows", err)
		}

		const q = `DELETE FROM blocks WHERE id = $1`
		if _, err := tx.Exec(ctx, q, oldBlock.ID); err != nil {
			return chainerr.Storage("delete last block: deleting block row", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.Last.Set(parent)

	// The tip's transactions go back to the pool outside the persistence
	// transaction, mirroring spec §4.1 step 1's rule that unconfirmed-pool
	// effects never share atomicity with a block write. Reinserted in
	// their original block order, not the reverse undo order above.
	if err := m.Pool.ReceiveTransactions(ctx, oldBlock.Transactions); err != nil {
		return chainerr.UnconfirmedUndoFatal("delete last block: returning transactions to pool", err)
	}

	logger("delete_last_block").WithField("height", oldBlock.Height).Info("block deleted")
	return nil
}

// loadBlock reads a block header and its transactions by id.
func loadBlock(ctx context.Context, tx *storage.Tx, id string) (*model.Block, error) {
	const blockQ = `SELECT payload FROM blocks WHERE id = $1`
	var payload []byte
	if err := tx.QueryRow(ctx, blockQ, id).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Errorf("block %s not found", id)
		}
		return nil, err
	}
	block, err := model.UnmarshalBlock(payload)
	if err != nil {
		return nil, err
	}

	const txQ = `SELECT id, seq, type, sender_public_key, payload FROM transactions WHERE block_id = $1 ORDER BY seq`
	rows, err := tx.Query(ctx, txQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txID    string
			seq     int
			typ     int
			sender  []byte
			txPload []byte
		)
		if err := rows.Scan(&txID, &seq, &typ, &sender, &txPload); err != nil {
			return nil, err
		}
		t := &model.Transaction{ID: txID, BlockID: id, Seq: seq, SenderPublicKey: sender}
		if err := model.UnmarshalTransactionPayload(t, txPload); err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return block, nil
}
