package chain

import (
	"context"
	"testing"

	"github.com/dpos-chain/chaincore/internal/model"
)

func TestSortGenesisTransactionsStablePartition(t *testing.T) {
	founder := pubKey(1)
	delegate := pubKey(2)

	transfer1 := &model.Transaction{ID: "t1", Type: model.TRANSFER, SenderPublicKey: founder,
		Transfer: &model.TransferPayload{RecipientPublicKey: delegate, Amount: 1}}
	vote1 := &model.Transaction{ID: "v1", Type: model.VOTE, SenderPublicKey: founder,
		Vote: &model.VotePayload{DelegatePublicKey: delegate}}
	transfer2 := &model.Transaction{ID: "t2", Type: model.TRANSFER, SenderPublicKey: founder,
		Transfer: &model.TransferPayload{RecipientPublicKey: delegate, Amount: 2}}
	vote2 := &model.Transaction{ID: "v2", Type: model.VOTE, SenderPublicKey: delegate,
		Vote: &model.VotePayload{DelegatePublicKey: founder}}

	in := []*model.Transaction{vote1, transfer1, vote2, transfer2}
	out := SortGenesisTransactions(in)

	wantOrder := []string{"t1", "t2", "v1", "v2"}
	if len(out) != len(wantOrder) {
		t.Fatalf("got %d transactions, want %d", len(out), len(wantOrder))
	}
	for i, id := range wantOrder {
		if out[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, out[i].ID, id)
		}
	}

	// The input slice must be untouched.
	if in[0].ID != "v1" {
		t.Errorf("SortGenesisTransactions mutated its input")
	}
}

func TestApplyGenesisBlockIsIdempotentOnSave(t *testing.T) {
	withTestMutator(t, func(ctx context.Context, m *Mutator) {
		founder := pubKey(1)
		genesis := &model.Block{
			ID:                 "genesis",
			Height:             1,
			GeneratorPublicKey: founder,
			Transactions: []*model.Transaction{
				{ID: "g0", Type: model.TRANSFER, SenderPublicKey: founder,
					Transfer: &model.TransferPayload{RecipientPublicKey: founder, Amount: 1000}},
			},
		}

		if err := m.SaveGenesisBlock(ctx, genesis); err != nil {
			t.Fatalf("first SaveGenesisBlock: %v", err)
		}
		if err := m.SaveGenesisBlock(ctx, genesis); err != nil {
			t.Fatalf("second SaveGenesisBlock should be a no-op, got: %v", err)
		}

		if err := m.ApplyGenesisBlock(ctx, genesis); err != nil {
			t.Fatalf("ApplyGenesisBlock: %v", err)
		}

		tip := m.Last.Get()
		if tip == nil || tip.ID != "genesis" {
			t.Fatalf("last block register not set to genesis: %+v", tip)
		}

		acct, err := m.Ledger.SetAccountAndGetUnconfirmed(founder)
		if err != nil {
			t.Fatalf("SetAccountAndGetUnconfirmed: %v", err)
		}
		if acct.Balance != 1000 {
			t.Errorf("founder balance = %d, want 1000", acct.Balance)
		}
	})
}
