package model

// Account is the core's read/write view of a ledger entry, as returned
// by the Account Store collaborator. The core never mutates fields
// directly except through the Account Store's save path; it treats the
// struct as a value it reads, modifies in memory, and hands back.
type Account struct {
	PublicKey []byte

	// Balance is the confirmed, durably-committed balance.
	Balance int64

	// UnconfirmedBalance is Balance minus the pending effect of every
	// transaction the pool currently holds for this account.
	UnconfirmedBalance int64

	// VotedDelegate is the public key of the delegate this account has
	// voted for, or nil if none.
	VotedDelegate []byte

	// MultisigPublicKeys and MultisigMin are set by a MULTISIGNATURE
	// transaction; MultisigMin is the minimum signer count required.
	MultisigPublicKeys []byte
	MultisigMin        uint32
}

// Clone returns a deep-enough copy for snapshot/restore use in tests and
// in undo paths that need a pre-mutation value to diff against.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.VotedDelegate != nil {
		cp.VotedDelegate = append([]byte(nil), a.VotedDelegate...)
	}
	if a.MultisigPublicKeys != nil {
		cp.MultisigPublicKeys = append([]byte(nil), a.MultisigPublicKeys...)
	}
	return &cp
}
