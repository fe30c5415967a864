// Package chainerr defines the error taxonomy the chain-apply core uses
// to tell its caller how to react: retry, reject, or shut down. Kinds,
// not concrete error values, are what callers switch on — see Kind.
package chainerr

import (
	"github.com/pkg/errors"
)

// Kind classifies an error produced by the core.
type Kind int

const (
	// KindValidation means a precondition was violated (wrong height,
	// wrong parent, genesis delete attempt). Recoverable: the caller may
	// retry with a different block or simply drop the request.
	KindValidation Kind = iota

	// KindTransactionApply means a transaction's effect could not be
	// committed. The persistence transaction is aborted; the caller may
	// re-request a different block.
	KindTransactionApply

	// KindStorage means the persistence layer failed on I/O grounds. The
	// caller may retry.
	KindStorage

	// KindConsistencyFatal means an undo step, a parent load, or a round
	// tick failed after a partial write. Memory tables and storage have
	// diverged; the node cannot continue and the embedding process must
	// terminate. Never recovered in-process.
	KindConsistencyFatal

	// KindUnconfirmedUndoFatal means the transaction pool could not roll
	// back its unconfirmed-balance effects before an apply began. Memory
	// tables are now considered inconsistent.
	KindUnconfirmedUndoFatal
)

// Error wraps a cause with the Kind the core assigns it.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.err.Error()
	}
	return e.Op + ": " + e.err.Error()
}

func (e *Error) Cause() error { return e.err }
func (e *Error) Unwrap() error { return e.err }

// New constructs an *Error of the given kind, wrapping err with op.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.Wrap(err, op)}
}

// Newf is New with a formatted op string.
func Newf(kind Kind, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, err: errors.Wrapf(err, format, args...)}
}

// Is reports whether the first *Error in err's cause chain (err itself,
// then each Cause() in turn) has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce.Kind == kind
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}

// Validation, TransactionApply, Storage, ConsistencyFatal, and
// UnconfirmedUndoFatal are convenience constructors for the five kinds
// above, mirroring how often each is raised directly inside chain,
// txexec, and round.
func Validation(op string, err error) *Error {
	return New(KindValidation, op, err)
}

func TransactionApply(op string, err error) *Error {
	return New(KindTransactionApply, op, err)
}

func Storage(op string, err error) *Error {
	return New(KindStorage, op, err)
}

func ConsistencyFatal(op string, err error) *Error {
	return New(KindConsistencyFatal, op, err)
}

func UnconfirmedUndoFatal(op string, err error) *Error {
	return New(KindUnconfirmedUndoFatal, op, err)
}

// ErrSnapshotComplete is the typed replacement for the reference
// implementation's "Snapshot finished" string sentinel (spec §9(b)). A
// Round Controller returns this to signal an orderly termination rather
// than a failure; the Chain Mutator checks for it with IsSnapshotComplete.
var ErrSnapshotComplete = errors.New("snapshot complete")

// IsSnapshotComplete reports whether err, or its wrapped cause, is
// ErrSnapshotComplete.
func IsSnapshotComplete(err error) bool {
	return errors.Cause(err) == ErrSnapshotComplete
}

// CannotDeleteGenesis is returned by deleteLastBlock when the last block
// register holds the genesis block.
var CannotDeleteGenesis = errors.New("cannot delete genesis block")

// ParentMissing is returned when deleteLastBlock cannot load the parent
// of the current tip.
var ParentMissing = errors.New("parent block missing from storage")
