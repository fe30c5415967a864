package txexec

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// MULTISIGNATURE sets the sender account's required-signature set; like
// votes, it carries no balance effect. An account may register at most
// one MULTISIGNATURE transaction: multisigApply rejects a sender whose
// account already carries a signature set, which is what lets
// multisigUndo restore the prior nil state without needing a separate
// history of past registrations.

func (e *Executor) multisigApplyUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) multisigUndoUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	return nil
}

func (e *Executor) multisigApply(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	if sender.MultisigPublicKeys != nil {
		return chainerr.TransactionApply("multisig apply",
			errors.Errorf("account %x already has a registered signature set", sender.PublicKey))
	}
	p := tx.Multisig
	sender.MultisigPublicKeys = append([]byte(nil), p.PublicKeys...)
	sender.MultisigMin = p.Min
	return e.Ledger.Save(ctx, ptx, sender)
}

func (e *Executor) multisigUndo(ctx context.Context, tx *model.Transaction, sender *model.Account, ptx *storage.Tx) error {
	sender.MultisigPublicKeys = nil
	sender.MultisigMin = 0
	return e.Ledger.Save(ctx, ptx, sender)
}
