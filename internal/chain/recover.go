package chain

import "context"

// RecoverChain is spec §4.1's recoverChain: when an apply or resync run
// is aborted partway and leaves the tip in a state the caller no longer
// trusts, roll the tip back one block so the next apply attempt starts
// from a block known to have been fully processed.
func (m *Mutator) RecoverChain(ctx context.Context) error {
	logger("recover_chain").WithField("height", m.Last.Get().Height).Warn("recovering chain by deleting last block")
	return m.DeleteLastBlock(ctx)
}
