// Package model holds the value types shared by every component of the
// chain-apply core: blocks, transactions, and the account view the core
// consumes from the ledger collaborator.
package model

// Type enumerates the kinds of state mutation a Transaction can carry.
// VOTE is singled out by applyGenesisBlock's stable partition (see
// chain.SortGenesisTransactions); the rest are opaque to the core beyond
// dispatch in txexec.
type Type uint8

const (
	TRANSFER Type = iota
	VOTE
	DELEGATE_REGISTER
	MULTISIGNATURE
)

func (t Type) String() string {
	switch t {
	case TRANSFER:
		return "TRANSFER"
	case VOTE:
		return "VOTE"
	case DELEGATE_REGISTER:
		return "DELEGATE_REGISTER"
	case MULTISIGNATURE:
		return "MULTISIGNATURE"
	default:
		return "UNKNOWN"
	}
}

// Transaction is a single state-mutation request. Transactions are
// immutable once constructed; BlockID and Seq are filled in when a
// transaction is loaded from storage with its containing block, and
// are left unset on transactions the Chain Mutator applies.
type Transaction struct {
	ID              string
	Type            Type
	SenderPublicKey []byte
	BlockID         string

	// Seq preserves the transaction's position within its containing
	// block's sequence, independent of any storage-layer row order.
	Seq int

	// Payload carries type-specific fields. Only one of these is set,
	// selected by Type.
	Transfer  *TransferPayload
	Vote      *VotePayload
	Delegate  *DelegatePayload
	Multisig  *MultisigPayload
}

// TransferPayload moves Amount units from the sender to Recipient.
type TransferPayload struct {
	RecipientPublicKey []byte
	Amount             int64
}

// VotePayload adds or removes a vote for a delegate public key.
type VotePayload struct {
	DelegatePublicKey []byte
	Unvote            bool
}

// DelegatePayload registers the sender as a round candidate under Name.
type DelegatePayload struct {
	Name string
}

// MultisigPayload sets the sender account's required-signature set.
type MultisigPayload struct {
	PublicKeys []byte
	Min        uint32
}

// IsVote reports whether tx belongs to the VOTE bucket for the purposes
// of the genesis stable partition (spec §4.1, §9(c)).
func (tx *Transaction) IsVote() bool {
	return tx.Type == VOTE
}
