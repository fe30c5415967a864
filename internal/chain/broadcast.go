package chain

import (
	"github.com/dpos-chain/chaincore/internal/bus"
	"github.com/dpos-chain/chaincore/internal/model"
)

// BroadcastReducedBlock announces block to peer-network subscribers on
// the bus, independent of the newBlock event ApplyBlock already emits.
// broadcast gates whether the announcement happens at all, letting a
// resync run apply blocks without rebroadcasting them to peers.
func (m *Mutator) BroadcastReducedBlock(block *model.Block, broadcast bool) {
	if !broadcast {
		return
	}
	m.Bus.Emit(bus.TopicBroadcastBlock, block)
}
