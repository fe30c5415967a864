// Package txexec is the Transaction Executor of spec §4.2: it applies
// and undoes a single transaction against an account snapshot, in both
// unconfirmed and confirmed modes. Grounded on the teacher's
// per-transaction-kind file split (pegin.go, postpegout.go,
// postexport.go, retire.go, issue.go each handling one transaction
// shape against the same *sql.DB/*sql.Tx handle), generalized here into
// one file per transaction kind operating against the same persistence
// transaction handle.
package txexec

import (
	"context"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// Executor dispatches apply/undo calls to the per-type handlers below.
type Executor struct {
	Ledger *ledger.Store
}

// New constructs an Executor over the given Account Store.
func New(l *ledger.Store) *Executor {
	return &Executor{Ledger: l}
}

// ApplyUnconfirmed deducts (or otherwise applies) tx's unconfirmed-
// balance effect. It never touches durable storage.
func (e *Executor) ApplyUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	switch tx.Type {
	case model.TRANSFER:
		return e.transferApplyUnconfirmed(ctx, tx, sender)
	case model.VOTE:
		return e.voteApplyUnconfirmed(ctx, tx, sender)
	case model.DELEGATE_REGISTER:
		return e.delegateApplyUnconfirmed(ctx, tx, sender)
	case model.MULTISIGNATURE:
		return e.multisigApplyUnconfirmed(ctx, tx, sender)
	default:
		return chainerr.TransactionApply("apply unconfirmed", errUnknownType(tx))
	}
}

// Apply commits tx's confirmed-balance effect and writes type-specific
// state through ptx, the active persistence transaction.
func (e *Executor) Apply(ctx context.Context, tx *model.Transaction, block *model.Block, sender *model.Account, ptx *storage.Tx) error {
	switch tx.Type {
	case model.TRANSFER:
		return e.transferApply(ctx, tx, sender, ptx)
	case model.VOTE:
		return e.voteApply(ctx, tx, sender, ptx)
	case model.DELEGATE_REGISTER:
		return e.delegateApply(ctx, tx, sender, ptx)
	case model.MULTISIGNATURE:
		return e.multisigApply(ctx, tx, sender, ptx)
	default:
		return chainerr.TransactionApply("apply", errUnknownType(tx))
	}
}

// UndoUnconfirmed reverses ApplyUnconfirmed.
func (e *Executor) UndoUnconfirmed(ctx context.Context, tx *model.Transaction, sender *model.Account) error {
	switch tx.Type {
	case model.TRANSFER:
		return e.transferUndoUnconfirmed(ctx, tx, sender)
	case model.VOTE:
		return e.voteUndoUnconfirmed(ctx, tx, sender)
	case model.DELEGATE_REGISTER:
		return e.delegateUndoUnconfirmed(ctx, tx, sender)
	case model.MULTISIGNATURE:
		return e.multisigUndoUnconfirmed(ctx, tx, sender)
	default:
		return chainerr.TransactionApply("undo unconfirmed", errUnknownType(tx))
	}
}

// Undo reverses Apply.
func (e *Executor) Undo(ctx context.Context, tx *model.Transaction, block *model.Block, sender *model.Account, ptx *storage.Tx) error {
	switch tx.Type {
	case model.TRANSFER:
		return e.transferUndo(ctx, tx, sender, ptx)
	case model.VOTE:
		return e.voteUndo(ctx, tx, sender, ptx)
	case model.DELEGATE_REGISTER:
		return e.delegateUndo(ctx, tx, sender, ptx)
	case model.MULTISIGNATURE:
		return e.multisigUndo(ctx, tx, sender, ptx)
	default:
		return chainerr.TransactionApply("undo", errUnknownType(tx))
	}
}

func errUnknownType(tx *model.Transaction) error {
	return &unknownTypeError{tx: tx}
}

type unknownTypeError struct {
	tx *model.Transaction
}

func (e *unknownTypeError) Error() string {
	return "unknown transaction type " + e.tx.Type.String() + " for tx " + e.tx.ID
}
