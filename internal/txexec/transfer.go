package txexec

import (
	"bytes"
	"context"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// transferApplyUnconfirmed debits the sender's unconfirmed balance and
// credits the recipient's, so that a later transaction in the same
// block's unconfirmed pass can spend funds this transaction just
// delivered (spec §8's ordering property).
func (e *Executor) transferApplyUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	p := tx.Transfer
	if sender.UnconfirmedBalance < p.Amount {
		return chainerr.TransactionApply("transfer apply unconfirmed",
			insufficientFundsError{tx: tx.ID, have: sender.UnconfirmedBalance, want: p.Amount})
	}
	e.Ledger.AdjustUnconfirmed(sender.PublicKey, -p.Amount)
	e.Ledger.AdjustUnconfirmed(p.RecipientPublicKey, p.Amount)
	return nil
}

func (e *Executor) transferUndoUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	p := tx.Transfer
	e.Ledger.AdjustUnconfirmed(sender.PublicKey, p.Amount)
	e.Ledger.AdjustUnconfirmed(p.RecipientPublicKey, -p.Amount)
	return nil
}

func (e *Executor) transferApply(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	p := tx.Transfer
	if sender.Balance < p.Amount {
		return chainerr.TransactionApply("transfer apply",
			insufficientFundsError{tx: tx.ID, have: sender.Balance, want: p.Amount})
	}
	recipient, err := e.Ledger.SetAccountAndGet(ctx, ptx, p.RecipientPublicKey)
	if err != nil {
		return chainerr.TransactionApply("transfer apply: resolving recipient", err)
	}
	if bytes.Equal(p.RecipientPublicKey, sender.PublicKey) {
		recipient = sender
	}

	sender.Balance -= p.Amount
	recipient.Balance += p.Amount

	if err := e.Ledger.Save(ctx, ptx, sender); err != nil {
		return chainerr.TransactionApply("transfer apply: saving sender", err)
	}
	if err := e.Ledger.Save(ctx, ptx, recipient); err != nil {
		return chainerr.TransactionApply("transfer apply: saving recipient", err)
	}
	// The confirmed balances now carry this transfer, so offset the
	// unconfirmed delta the unconfirmed pass recorded for it.
	e.Ledger.AdjustUnconfirmed(sender.PublicKey, p.Amount)
	e.Ledger.AdjustUnconfirmed(p.RecipientPublicKey, -p.Amount)
	return nil
}

func (e *Executor) transferUndo(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	p := tx.Transfer
	recipient, err := e.Ledger.GetAccount(ctx, ptx, p.RecipientPublicKey)
	if err != nil {
		return chainerr.ConsistencyFatal("transfer undo: resolving recipient", err)
	}
	if bytes.Equal(p.RecipientPublicKey, sender.PublicKey) {
		recipient = sender
	}

	sender.Balance += p.Amount
	recipient.Balance -= p.Amount

	if err := e.Ledger.Save(ctx, ptx, sender); err != nil {
		return chainerr.ConsistencyFatal("transfer undo: saving sender", err)
	}
	if err := e.Ledger.Save(ctx, ptx, recipient); err != nil {
		return chainerr.ConsistencyFatal("transfer undo: saving recipient", err)
	}
	e.Ledger.AdjustUnconfirmed(sender.PublicKey, -p.Amount)
	e.Ledger.AdjustUnconfirmed(p.RecipientPublicKey, p.Amount)
	return nil
}

type insufficientFundsError struct {
	tx   string
	have int64
	want int64
}

func (e insufficientFundsError) Error() string {
	return "insufficient funds for tx " + e.tx
}
