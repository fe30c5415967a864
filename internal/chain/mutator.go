// Package chain is the Chain Mutator of spec §4.1: the sole orchestrator
// of block apply/undo sequences, and the only component that sequences
// persistent writes. Grounded on the teacher's custodian/chain wiring in
// slidechain.go (a single struct owning the db, the bus writer, and the
// collaborators it drives), generalized from "one well-known custodian"
// to an explicit dependency record built at construction time (spec
// §9's replacement for the reference implementation's mutable
// module-level `library`/`modules`/`self` references).
package chain

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/dpos-chain/chaincore/internal/bus"
	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/round"
	"github.com/dpos-chain/chaincore/internal/storage"
	"github.com/dpos-chain/chaincore/internal/txexec"
	"github.com/dpos-chain/chaincore/internal/txpool"

	"github.com/dpos-chain/chaincore/internal/lastblock"
)

// Mutator is the Chain Mutator. Its five public operations
// (SaveGenesisBlock, ApplyGenesisBlock, ApplyBlock, DeleteLastBlock,
// RecoverChain) are mutually exclusive: writeMu enforces the
// single-writer discipline spec §5 requires, and isActive is the
// externally-observable assertion of that discipline, not a substitute
// for it (spec §9's design note).
type Mutator struct {
	DB       *storage.DB
	Ledger   *ledger.Store
	Executor *txexec.Executor
	Pool     *txpool.Pool
	Round    round.Controller
	Last     *lastblock.Register
	Bus      *bus.Bus

	writeMu  sync.Mutex
	isActive atomic.Bool
}

// New constructs a Mutator from its fully-resolved dependency record.
func New(db *storage.DB, l *ledger.Store, exec *txexec.Executor, pool *txpool.Pool, rc round.Controller, last *lastblock.Register, b *bus.Bus) *Mutator {
	return &Mutator{
		DB:       db,
		Ledger:   l,
		Executor: exec,
		Pool:     pool,
		Round:    rc,
		Last:     last,
		Bus:      b,
	}
}

// IsActive reports whether an apply or undo sequence is currently in
// flight. Readers outside the Chain Mutator use this to refuse work
// that would race (spec §3's Is-Active flag).
func (m *Mutator) IsActive() bool {
	return m.isActive.Load()
}

func (m *Mutator) enter() {
	m.isActive.Store(true)
}

func (m *Mutator) exit() {
	m.isActive.Store(false)
}

func logger(op string) *log.Entry {
	return log.WithField("op", op)
}
