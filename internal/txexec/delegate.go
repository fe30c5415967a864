package txexec

import (
	"context"

	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// DELEGATE_REGISTER carries no balance effect; the round controller
// (internal/round) is what reacts to it, scanning the block's
// transactions during ForwardTick. The executor changes no account
// field for it; delegateApply and delegateUndo only re-save the sender
// as it is.

func (e *Executor) delegateApplyUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) delegateUndoUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) delegateApply(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	return e.Ledger.Save(ctx, ptx, sender)
}

func (e *Executor) delegateUndo(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	return e.Ledger.Save(ctx, ptx, sender)
}
