package chain

import (
	"context"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
)

func seedGenesis(t *testing.T, ctx context.Context, m *Mutator, founder []byte, amount int64) *model.Block {
	t.Helper()
	genesis := &model.Block{
		ID:                 "genesis",
		Height:             1,
		GeneratorPublicKey: founder,
		Transactions: []*model.Transaction{
			{ID: "g0", Type: model.TRANSFER, SenderPublicKey: founder,
				Transfer: &model.TransferPayload{RecipientPublicKey: founder, Amount: amount}},
		},
	}
	if err := m.SaveGenesisBlock(ctx, genesis); err != nil {
		t.Fatalf("SaveGenesisBlock: %v", err)
	}
	if err := m.ApplyGenesisBlock(ctx, genesis); err != nil {
		t.Fatalf("ApplyGenesisBlock: %v", err)
	}
	return genesis
}

func transferBlock(id string, height uint64, prev string, from, to []byte, amount int64) *model.Block {
	return &model.Block{
		ID:                 id,
		Height:             height,
		PreviousBlockID:    prev,
		GeneratorPublicKey: from,
		Transactions: []*model.Transaction{
			{ID: id + "-tx0", Type: model.TRANSFER, SenderPublicKey: from,
				Transfer: &model.TransferPayload{RecipientPublicKey: to, Amount: amount}},
		},
	}
}

func TestApplyBlockMovesConfirmedBalance(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder, recipient := pubKey(1), pubKey(2)
		genesis := seedGenesis(t, ctx, m, founder, 1000)

		block2 := transferBlock("b2", 2, genesis.ID, founder, recipient, 100)
		if err := m.ApplyBlock(ctx, block2, true); err != nil {
			t.Fatalf("ApplyBlock: %v", err)
		}

		founderAcct, err := m.Ledger.SetAccountAndGetUnconfirmed(founder)
		if err != nil {
			t.Fatal(err)
		}
		if founderAcct.Balance != 900 {
			t.Errorf("founder balance = %d, want 900", founderAcct.Balance)
		}
		recipAcct, err := m.Ledger.SetAccountAndGetUnconfirmed(recipient)
		if err != nil {
			t.Fatal(err)
		}
		if recipAcct.Balance != 100 {
			t.Errorf("recipient balance = %d, want 100", recipAcct.Balance)
		}

		if tip := m.Last.Get(); tip.ID != "b2" {
			t.Errorf("last block = %s, want b2", tip.ID)
		}
		if m.IsActive() {
			t.Error("mutator left active after a successful apply")
		}
	})
}

func TestApplyBlockRejectsWrongHeight(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder, recipient := pubKey(1), pubKey(2)
		genesis := seedGenesis(t, ctx, m, founder, 1000)

		bad := transferBlock("bad", 3, genesis.ID, founder, recipient, 10)
		err := m.ApplyBlock(ctx, bad, true)
		if err == nil {
			t.Fatal("expected an error for a block that skips a height")
		}
		if !chainerr.Is(err, chainerr.KindValidation) {
			t.Errorf("got error kind for %v, want KindValidation", err)
		}
	})
}

func TestApplyBlockRejectsInsufficientFunds(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder, recipient := pubKey(1), pubKey(2)
		genesis := seedGenesis(t, ctx, m, founder, 50)

		block2 := transferBlock("b2", 2, genesis.ID, founder, recipient, 1000)
		err := m.ApplyBlock(ctx, block2, true)
		if err == nil {
			t.Fatal("expected an error for a transfer that overdraws the sender")
		}
		if !chainerr.Is(err, chainerr.KindTransactionApply) {
			t.Logf("full error value:\n%s", spew.Sdump(err))
			t.Errorf("got error kind for %v, want KindTransactionApply", err)
		}
		if m.IsActive() {
			t.Error("mutator left active after a failed apply")
		}

		founderAcct, err := m.Ledger.SetAccountAndGetUnconfirmed(founder)
		if err != nil {
			t.Fatal(err)
		}
		if founderAcct.Balance != 50 {
			t.Errorf("founder balance = %d after failed apply, want unchanged 50", founderAcct.Balance)
		}
	})
}

// TestApplyThenDeleteIsARoundTrip exercises the law implied by spec §4.1:
// applying a block and then deleting it must restore the account state
// exactly, and must leave the block's transactions back in the pool.
func TestApplyThenDeleteIsARoundTrip(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder, recipient := pubKey(1), pubKey(2)
		genesis := seedGenesis(t, ctx, m, founder, 1000)

		block2 := transferBlock("b2", 2, genesis.ID, founder, recipient, 250)
		if err := m.ApplyBlock(ctx, block2, true); err != nil {
			t.Fatalf("ApplyBlock: %v", err)
		}

		if err := m.DeleteLastBlock(ctx); err != nil {
			t.Fatalf("DeleteLastBlock: %v", err)
		}

		if tip := m.Last.Get(); tip.ID != genesis.ID {
			t.Errorf("last block = %s, want genesis after delete", tip.ID)
		}

		founderAcct, err := m.Ledger.SetAccountAndGetUnconfirmed(founder)
		if err != nil {
			t.Fatal(err)
		}
		if founderAcct.Balance != 1000 {
			t.Errorf("founder balance after round trip = %d, want 1000", founderAcct.Balance)
		}

		pending := m.Pool.Pending()
		if len(pending) != 1 || pending[0].ID != "b2-tx0" {
			t.Errorf("pool after delete = %+v, want the deleted block's single transaction", pending)
		}
	})
}

func TestDeleteLastBlockRejectsGenesis(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder := pubKey(1)
		seedGenesis(t, ctx, m, founder, 1000)

		err := m.DeleteLastBlock(ctx)
		if err == nil {
			t.Fatal("expected an error deleting the genesis block")
		}
		if !chainerr.Is(err, chainerr.KindValidation) {
			t.Errorf("got error kind for %v, want KindValidation", err)
		}
	})
}

func TestApplyBlockRejectsConcurrentEntry(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder := pubKey(1)
		seedGenesis(t, ctx, m, founder, 1000)

		m.isActive.Store(true)
		defer m.isActive.Store(false)

		block2 := transferBlock("b2", 2, "genesis", founder, pubKey(2), 1)
		err := m.ApplyBlock(context.Background(), block2, true)
		if err == nil {
			t.Fatal("expected an error applying while already active")
		}
		if !chainerr.Is(err, chainerr.KindValidation) {
			t.Errorf("got error kind for %v, want KindValidation", err)
		}
	})
}
