// Package round is the Round Controller Interface of spec §4.3: forward
// and backward tick semantics at round boundaries, opaque to the Chain
// Mutator beyond "run inside the triggering persistence transaction, a
// tick failure is fatal." Grounded on the teacher's pin.go, which keyed
// a monotonic per-subsystem cursor ("pin") by name in a tiny table; the
// rounds table here generalizes that single-cursor idea to a
// per-round row carrying the round's registered delegate set.
package round

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// Length is the number of blocks per round. 101 mirrors the delegate
// count used by comparable DPoS chains (e.g. Lisk).
const Length = 101

// Controller is the interface the Chain Mutator consumes. A tick
// failure (any non-nil error other than chainerr.ErrSnapshotComplete)
// is fatal per spec §4.3.
type Controller interface {
	ForwardTick(ctx context.Context, block *model.Block, tx *storage.Tx) error
	BackwardTick(ctx context.Context, oldBlock, newTip *model.Block, tx *storage.Tx) error
}

// RoundOf returns the 1-based round number containing height.
func RoundOf(height uint64) uint64 {
	return (height-1)/Length + 1
}

// StartHeightOf returns the height at which RoundOf(height)'s round began.
func StartHeightOf(height uint64) uint64 {
	return (RoundOf(height)-1)*Length + 1
}

// InMemoryController is the concrete implementation wired by cmd/chaind
// and used in tests. It tracks, per round, the ordered set of delegate
// public keys registered via DELEGATE_REGISTER transactions observed in
// that round's blocks, persisting the round row through the same
// persistence transaction as the triggering block write/delete.
type InMemoryController struct {
	// ReplayUntilHeight, if nonzero, causes ForwardTick to return
	// chainerr.ErrSnapshotComplete once block.Height reaches it — the
	// typed replacement for the reference implementation's "Snapshot
	// finished" sentinel (spec §9(b)), exercised by resync-mode callers
	// that want the mutator to stop cleanly at a known height.
	ReplayUntilHeight uint64
}

// NewInMemoryController constructs a controller with no replay bound.
func NewInMemoryController() *InMemoryController {
	return &InMemoryController{}
}

func (c *InMemoryController) ForwardTick(ctx context.Context, block *model.Block, tx *storage.Tx) error {
	round := RoundOf(block.Height)
	delegates, err := c.loadDelegates(ctx, tx, round)
	if err != nil {
		return chainerr.ConsistencyFatal("round forward tick: loading delegates", err)
	}

	for _, t := range block.Transactions {
		if t.Type == model.DELEGATE_REGISTER {
			delegates = appendDelegate(delegates, t.SenderPublicKey)
		}
	}

	if err := c.saveRound(ctx, tx, round, StartHeightOf(block.Height), delegates); err != nil {
		return chainerr.ConsistencyFatal("round forward tick: saving round", err)
	}

	if c.ReplayUntilHeight != 0 && block.Height >= c.ReplayUntilHeight {
		return chainerr.ErrSnapshotComplete
	}
	return nil
}

func (c *InMemoryController) BackwardTick(ctx context.Context, oldBlock, newTip *model.Block, tx *storage.Tx) error {
	oldRound := RoundOf(oldBlock.Height)
	newRound := RoundOf(newTip.Height)

	if oldRound == newRound {
		// Still inside the same round: drop just the delegates this
		// block's own transactions registered.
		delegates, err := c.loadDelegates(ctx, tx, oldRound)
		if err != nil {
			return chainerr.ConsistencyFatal("round backward tick: loading delegates", err)
		}
		for _, t := range oldBlock.Transactions {
			if t.Type == model.DELEGATE_REGISTER {
				delegates = removeDelegate(delegates, t.SenderPublicKey)
			}
		}
		return errors.Wrap(c.saveRound(ctx, tx, oldRound, StartHeightOf(oldBlock.Height), delegates), "round backward tick: saving round")
	}

	// Crossed back over a round boundary: the round oldBlock started no
	// longer has any blocks in it, so its row is removed entirely.
	if err := c.deleteRound(ctx, tx, oldRound); err != nil {
		return chainerr.ConsistencyFatal("round backward tick: deleting round", err)
	}
	return nil
}

func appendDelegate(delegates [][]byte, pubKey []byte) [][]byte {
	for _, d := range delegates {
		if string(d) == string(pubKey) {
			return delegates
		}
	}
	return append(delegates, pubKey)
}

func removeDelegate(delegates [][]byte, pubKey []byte) [][]byte {
	out := delegates[:0]
	for _, d := range delegates {
		if string(d) != string(pubKey) {
			out = append(out, d)
		}
	}
	return out
}

func (c *InMemoryController) loadDelegates(ctx context.Context, tx *storage.Tx, round uint64) ([][]byte, error) {
	const q = `SELECT delegates FROM rounds WHERE round_number = $1`
	row := tx.QueryRow(ctx, q, round)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return decodeDelegates(blob), nil
}

func (c *InMemoryController) saveRound(ctx context.Context, tx *storage.Tx, round, startHeight uint64, delegates [][]byte) error {
	const q = `INSERT INTO rounds (round_number, start_height, delegates)
	           VALUES ($1, $2, $3)
	           ON CONFLICT(round_number) DO UPDATE SET start_height = $2, delegates = $3`
	_, err := tx.Exec(ctx, q, round, startHeight, encodeDelegates(delegates))
	return err
}

func (c *InMemoryController) deleteRound(ctx context.Context, tx *storage.Tx, round uint64) error {
	const q = `DELETE FROM rounds WHERE round_number = $1`
	_, err := tx.Exec(ctx, q, round)
	return err
}

// encodeDelegates/decodeDelegates store the delegate list as
// length-prefixed public keys; kept deliberately simple since the
// delegates blob is opaque outside this package. An empty list encodes
// as a zero-length (non-nil) blob, since the delegates column is NOT NULL.
func encodeDelegates(delegates [][]byte) []byte {
	out := []byte{}
	for _, d := range delegates {
		out = append(out, byte(len(d)))
		out = append(out, d...)
	}
	return out
}

func decodeDelegates(blob []byte) [][]byte {
	var out [][]byte
	for len(blob) > 0 {
		n := int(blob[0])
		blob = blob[1:]
		if n > len(blob) {
			break
		}
		out = append(out, blob[:n])
		blob = blob[n:]
	}
	return out
}
