package chain

import (
	"context"
	"database/sql"
	"sort"

	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// SortGenesisTransactions returns a new slice with every VOTE
// transaction moved after every non-VOTE transaction, preserving
// relative order within each group. This is the stable partition spec
// §4.1 and §9(c) require, specified explicitly with sort.SliceStable
// rather than inherited from an engine's sort-stability guarantee.
func SortGenesisTransactions(txs []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].IsVote() && out[j].IsVote()
	})
	return out
}

// SaveGenesisBlock is spec §4.1's idempotent bootstrap: if a block with
// genesis.ID already exists, this is a no-op; otherwise the genesis
// header and its transactions are persisted in one persistence
// transaction. Must not be called concurrently with any other Mutator
// operation (callers are expected to serialize process startup before
// any apply/undo traffic begins).
func (m *Mutator) SaveGenesisBlock(ctx context.Context, genesis *model.Block) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return m.DB.WithTx(ctx, "save-genesis-block", func(tx *storage.Tx) error {
		exists, err := blockExists(ctx, tx, genesis.ID)
		if err != nil {
			return chainerr.Storage("save genesis block: checking existence", err)
		}
		if exists {
			logger("save_genesis_block").Debug("genesis block already present, no-op")
			return nil
		}

		payload, err := genesis.Marshal()
		if err != nil {
			return chainerr.Storage("save genesis block: marshaling", err)
		}
		const q = `INSERT INTO blocks (id, height, previous_block_id, height_previous, height_prevoted, timestamp, generator_public_key, payload)
		           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.Exec(ctx, q, genesis.ID, genesis.Height, nullableString(genesis.PreviousBlockID),
			genesis.HeightPrevious, genesis.HeightPrevoted, genesis.Timestamp, genesis.GeneratorPublicKey, payload); err != nil {
			return chainerr.Storage("save genesis block: inserting block row", err)
		}

		writes := make([]storage.Write, 0, len(genesis.Transactions))
		for i, t := range genesis.Transactions {
			tp, err := t.Marshal()
			if err != nil {
				return chainerr.Storage("save genesis block: marshaling transaction", err)
			}
			writes = append(writes, storage.Write{
				Query: `INSERT INTO transactions (id, block_id, seq, type, sender_public_key, payload) VALUES ($1, $2, $3, $4, $5, $6)`,
				Args:  []interface{}{t.ID, genesis.ID, i, int(t.Type), t.SenderPublicKey, tp},
			})
		}
		if err := tx.Batch(ctx, writes); err != nil {
			return chainerr.Storage("save genesis block: inserting transactions", err)
		}
		return nil
	})
}

// ApplyGenesisBlock replays the genesis transactions against a clean
// account store, per spec §4.1. Genesis TRANSFERs allocate new funds:
// each one credits its recipient with Amount without drawing on the
// sender's prior balance. On any transaction failure this is
// unrecoverable: the caller (cmd/chaind) must treat the returned
// chainerr.KindConsistencyFatal error as a signal to halt the process,
// never retry.
func (m *Mutator) ApplyGenesisBlock(ctx context.Context, genesis *model.Block) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	sorted := SortGenesisTransactions(genesis.Transactions)

	err := m.DB.WithTx(ctx, "apply-genesis-block", func(tx *storage.Tx) error {
		for _, t := range sorted {
			sender, err := m.Ledger.SetAccountAndGet(ctx, tx, t.SenderPublicKey)
			if err != nil {
				return errors.Wrapf(err, "resolving sender for genesis tx %s", t.ID)
			}
			if t.Type == model.TRANSFER && t.Transfer != nil {
				// Fund the sender with the amount it is about to move, so
				// the executor's balance checks pass on a clean store.
				sender.Balance += t.Transfer.Amount
				sender.UnconfirmedBalance += t.Transfer.Amount
			}
			if err := m.Executor.ApplyUnconfirmed(ctx, t, sender); err != nil {
				return errors.Wrapf(err, "applying unconfirmed genesis tx %s", t.ID)
			}
			if err := m.Executor.Apply(ctx, t, genesis, sender, tx); err != nil {
				return errors.Wrapf(err, "applying genesis tx %s", t.ID)
			}
		}
		return m.Round.ForwardTick(ctx, genesis, tx)
	})
	if err != nil {
		return chainerr.ConsistencyFatal("apply genesis block", err)
	}

	m.Last.Set(genesis)
	return nil
}

func blockExists(ctx context.Context, tx *storage.Tx, id string) (bool, error) {
	const q = `SELECT 1 FROM blocks WHERE id = $1`
	var one int
	err := tx.QueryRow(ctx, q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
