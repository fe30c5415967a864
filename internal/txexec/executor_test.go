package txexec

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

func withTestLedger(t *testing.T, fn func(ctx context.Context, l *ledger.Store)) {
	t.Helper()
	f, err := ioutil.TempFile("", "txexec-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	defer os.Remove(f.Name())

	db, err := storage.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fn(context.Background(), ledger.New(db))
}

func applyUnconfirmed(t *testing.T, ctx context.Context, e *Executor, l *ledger.Store, tx *model.Transaction) error {
	t.Helper()
	sender, err := l.SetAccountAndGetUnconfirmed(tx.SenderPublicKey)
	if err != nil {
		t.Fatalf("resolving sender: %v", err)
	}
	return e.ApplyUnconfirmed(ctx, tx, sender)
}

// TestApplyUnconfirmedOrderingProperty is spec §8's ordering property:
// a chain of transfers where t2 spends funds t1 delivers succeeds when
// processed in delivery order, and fails with a TransactionApply error
// at the first transaction whose sender does not yet have the funds
// when processed out of order.
func TestApplyUnconfirmedOrderingProperty(t *testing.T) {
	alice, bob, carol := pubKey(1), pubKey(2), pubKey(3)

	t1 := &model.Transaction{ID: "t1", Type: model.TRANSFER, SenderPublicKey: alice,
		Transfer: &model.TransferPayload{RecipientPublicKey: bob, Amount: 100}}
	t2 := &model.Transaction{ID: "t2", Type: model.TRANSFER, SenderPublicKey: bob,
		Transfer: &model.TransferPayload{RecipientPublicKey: carol, Amount: 100}}
	t3 := &model.Transaction{ID: "t3", Type: model.TRANSFER, SenderPublicKey: carol,
		Transfer: &model.TransferPayload{RecipientPublicKey: alice, Amount: 50}}

	t.Run("in delivery order succeeds", func(t *testing.T) {
		withTestLedger(t, func(ctx context.Context, l *ledger.Store) {
			seedBalance(t, ctx, l, alice, 100)
			e := New(l)

			for _, tx := range []*model.Transaction{t1, t2, t3} {
				if err := applyUnconfirmed(t, ctx, e, l, tx); err != nil {
					t.Fatalf("applying %s in order: %v", tx.ID, err)
				}
			}
		})
	})

	t.Run("out of order fails at the dependent transaction", func(t *testing.T) {
		withTestLedger(t, func(ctx context.Context, l *ledger.Store) {
			seedBalance(t, ctx, l, alice, 100)
			e := New(l)

			if err := applyUnconfirmed(t, ctx, e, l, t2); err == nil {
				t.Fatal("expected t2 to fail before t1 has funded bob")
			} else if !chainerr.Is(err, chainerr.KindTransactionApply) {
				t.Errorf("got error kind for %v, want KindTransactionApply", err)
			}
		})
	})
}

func seedBalance(t *testing.T, ctx context.Context, l *ledger.Store, publicKey []byte, amount int64) {
	t.Helper()
	acct, err := l.SetAccountAndGetUnconfirmed(publicKey)
	if err != nil {
		t.Fatal(err)
	}
	_ = acct
	l.AdjustUnconfirmed(publicKey, amount)
}

func pubKey(label byte) []byte {
	k := make([]byte, 32)
	k[0] = label
	return k
}
