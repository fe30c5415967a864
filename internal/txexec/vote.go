package txexec

import (
	"context"

	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// Votes carry no balance effect, so the unconfirmed pass is a no-op;
// only the confirmed pass mutates durable state (sender.VotedDelegate).
func (e *Executor) voteApplyUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) voteUndoUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) voteApply(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	p := tx.Vote
	if p.Unvote {
		sender.VotedDelegate = nil
	} else {
		sender.VotedDelegate = append([]byte(nil), p.DelegatePublicKey...)
	}
	return e.Ledger.Save(ctx, ptx, sender)
}

func (e *Executor) voteUndo(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	p := tx.Vote
	if p.Unvote {
		sender.VotedDelegate = append([]byte(nil), p.DelegatePublicKey...)
	} else {
		sender.VotedDelegate = nil
	}
	return e.Ledger.Save(ctx, ptx, sender)
}
