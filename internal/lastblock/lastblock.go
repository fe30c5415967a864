// Package lastblock is the Last-Block Register of spec §4.4: a
// process-wide single slot holding the current tip, last-writer-wins
// under the Chain Mutator's exclusion, read-only to everyone else.
// Grounded on the teacher's custodian struct fields, which were
// implicitly single-writer under the custodian goroutine; here that is
// made explicit with a sync.RWMutex rather than condition-variable
// coordination, since the register has no producer/consumer wait, only
// "latest value, many readers."
package lastblock

import (
	"sync"

	"github.com/dpos-chain/chaincore/internal/model"
)

// Register holds the current chain tip.
type Register struct {
	mu    sync.RWMutex
	block *model.Block
}

// New constructs an empty Register; the tip is filled in with Set once
// the genesis block has been applied or loaded.
func New() *Register {
	return &Register{}
}

// Get returns the current tip. Callers outside internal/chain must
// treat the result as read-only.
func (r *Register) Get() *model.Block {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.block
}

// Set updates the tip. Only internal/chain's Mutator, already holding
// its single-writer lock, may call this.
func (r *Register) Set(b *model.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.block = b
}
