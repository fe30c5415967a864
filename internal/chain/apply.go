package chain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/bus"
	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// ApplyBlock is the central pipeline of spec §4.1: preconditions,
// undo-unconfirmed-pool step, apply-unconfirmed pass, apply-confirmed
// pass, save-block step, and commit/rollback bookkeeping, all inside one
// persistence transaction except the undo-unconfirmed-pool step. When the
// round controller reports chainerr.ErrSnapshotComplete, the block still
// commits and ApplyBlock returns that sentinel (check it with
// chainerr.IsSnapshotComplete) as the signal to stop.
func (m *Mutator) ApplyBlock(ctx context.Context, block *model.Block, persistBlock bool) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.IsActive() {
		return chainerr.Validation("apply block", errors.New("chain mutator already active"))
	}

	last := m.Last.Get()
	if last == nil {
		return chainerr.Validation("apply block", errors.New("no last block; genesis not applied"))
	}
	if block.Height != last.Height+1 {
		return chainerr.Validation("apply block", errors.Errorf(
			"block height %d does not follow last block height %d", block.Height, last.Height))
	}
	if block.PreviousBlockID != last.ID {
		return chainerr.Validation("apply block", errors.Errorf(
			"block previous id %q does not match last block id %q", block.PreviousBlockID, last.ID))
	}

	undone, err := m.Pool.UndoUnconfirmedList(ctx)
	if err != nil {
		return chainerr.UnconfirmedUndoFatal("apply block: undoing unconfirmed pool", err)
	}
	_ = undone // the pool's own pending set is gone; nothing further to do with it here.

	m.enter()
	defer m.exit()

	// snapshotComplete captures chainerr.ErrSnapshotComplete without letting
	// it escape the WithTx body as the body's return value: WithTx rolls
	// back on any non-nil error (storage.go's WithTx), and a rollback here
	// would discard the block/transaction rows and every account-balance
	// write this pass just made. The sentinel means "stop after this
	// block," not "this block failed," so the body must return nil to let
	// the transaction commit; once the tip and pool bookkeeping below are
	// done, ApplyBlock returns the sentinel to its caller.
	var snapshotComplete bool

	err = m.DB.WithTx(ctx, "apply-block", func(tx *storage.Tx) error {
		for _, t := range block.Transactions {
			sender, err := m.Ledger.SetAccountAndGet(ctx, tx, t.SenderPublicKey)
			if err != nil {
				return chainerr.TransactionApply("apply block: resolving sender", err)
			}
			if err := m.Executor.ApplyUnconfirmed(ctx, t, sender); err != nil {
				return chainerr.TransactionApply("apply block: applying unconfirmed", err)
			}
		}

		for _, t := range block.Transactions {
			sender, err := m.Ledger.SetAccountAndGet(ctx, tx, t.SenderPublicKey)
			if err != nil {
				return chainerr.TransactionApply("apply block: resolving sender", err)
			}
			if err := m.Executor.Apply(ctx, t, block, sender, tx); err != nil {
				return chainerr.TransactionApply("apply block: applying confirmed", err)
			}
		}

		if persistBlock {
			if err := saveBlock(ctx, tx, block); err != nil {
				return chainerr.Storage("apply block: saving block", err)
			}
		} else if !blockRowPresent(ctx, tx, block.ID) {
			return chainerr.Validation("apply block: resync mode requires a pre-persisted block row",
				errors.Errorf("block %s row missing for persistBlock=false", block.ID))
		}

		if err := m.Round.ForwardTick(ctx, block, tx); err != nil {
			if chainerr.IsSnapshotComplete(err) {
				snapshotComplete = true
				return nil
			}
			return chainerr.ConsistencyFatal("apply block: forward round tick", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, t := range block.Transactions {
		m.Pool.RemoveUnconfirmedTransaction(t.ID)
	}
	m.Last.Set(block)
	m.Bus.Emit(bus.TopicNewBlock, block)
	if snapshotComplete {
		logger("apply_block").WithField("height", block.Height).Info("snapshot complete, orderly termination")
		return chainerr.ErrSnapshotComplete
	}
	logger("apply_block").WithField("height", block.Height).Info("block applied")
	return nil
}

func saveBlock(ctx context.Context, tx *storage.Tx, block *model.Block) error {
	payload, err := block.Marshal()
	if err != nil {
		return err
	}
	writes := []storage.Write{{
		Query: `INSERT INTO blocks (id, height, previous_block_id, height_previous, height_prevoted, timestamp, generator_public_key, payload)
		        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		Args: []interface{}{block.ID, block.Height, nullableString(block.PreviousBlockID),
			block.HeightPrevious, block.HeightPrevoted, block.Timestamp, block.GeneratorPublicKey, payload},
	}}
	for i, t := range block.Transactions {
		tp, err := t.Marshal()
		if err != nil {
			return err
		}
		writes = append(writes, storage.Write{
			Query: `INSERT INTO transactions (id, block_id, seq, type, sender_public_key, payload) VALUES ($1, $2, $3, $4, $5, $6)`,
			Args:  []interface{}{t.ID, block.ID, i, int(t.Type), t.SenderPublicKey, tp},
		})
	}
	return tx.Batch(ctx, writes)
}

func blockRowPresent(ctx context.Context, tx *storage.Tx, id string) bool {
	present, err := blockExists(ctx, tx, id)
	return err == nil && present
}
