package round

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/dpos-chain/chaincore/internal/chainerr"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

func TestRoundOfAndStartHeightOf(t *testing.T) {
	cases := []struct {
		height        uint64
		wantRound     uint64
		wantStartAt   uint64
	}{
		{1, 1, 1},
		{Length, 1, 1},
		{Length + 1, 2, Length + 1},
		{2 * Length, 2, Length + 1},
	}
	for _, c := range cases {
		if got := RoundOf(c.height); got != c.wantRound {
			t.Errorf("RoundOf(%d) = %d, want %d", c.height, got, c.wantRound)
		}
		if got := StartHeightOf(c.height); got != c.wantStartAt {
			t.Errorf("StartHeightOf(%d) = %d, want %d", c.height, got, c.wantStartAt)
		}
	}
}

func withTestDB(t *testing.T, fn func(db *storage.DB)) {
	t.Helper()
	f, err := ioutil.TempFile("", "round-test-*.db")
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
	fn(db)
}

func TestForwardThenBackwardTickRestoresDelegateSet(t *testing.T) {
	withTestDB(t, func(db *storage.DB) {
		ctx := context.Background()
		c := NewInMemoryController()
		delegate := []byte("delegate-public-key-000000000000")

		block := &model.Block{ID: "b1", Height: 1, Transactions: []*model.Transaction{
			{ID: "tx0", Type: model.DELEGATE_REGISTER, SenderPublicKey: delegate,
				Delegate: &model.DelegatePayload{Name: "d1"}},
		}}

		err := db.WithTx(ctx, "forward", func(tx *storage.Tx) error {
			return c.ForwardTick(ctx, block, tx)
		})
		if err != nil {
			t.Fatalf("ForwardTick: %v", err)
		}

		var delegates [][]byte
		err = db.WithTx(ctx, "check", func(tx *storage.Tx) error {
			var loadErr error
			delegates, loadErr = c.loadDelegates(ctx, tx, RoundOf(block.Height))
			return loadErr
		})
		if err != nil {
			t.Fatalf("loadDelegates: %v", err)
		}
		if len(delegates) != 1 || string(delegates[0]) != string(delegate) {
			t.Fatalf("delegates after forward tick = %+v, want [%x]", delegates, delegate)
		}

		parent := &model.Block{ID: "b0", Height: 1}
		err = db.WithTx(ctx, "backward", func(tx *storage.Tx) error {
			return c.BackwardTick(ctx, block, parent, tx)
		})
		if err != nil {
			t.Fatalf("BackwardTick: %v", err)
		}

		err = db.WithTx(ctx, "check2", func(tx *storage.Tx) error {
			var loadErr error
			delegates, loadErr = c.loadDelegates(ctx, tx, RoundOf(block.Height))
			return loadErr
		})
		if err != nil {
			t.Fatalf("loadDelegates after backward tick: %v", err)
		}
		if len(delegates) != 0 {
			t.Errorf("delegates after backward tick = %+v, want empty", delegates)
		}
	})
}

func TestForwardTickSnapshotComplete(t *testing.T) {
	withTestDB(t, func(db *storage.DB) {
		ctx := context.Background()
		c := &InMemoryController{ReplayUntilHeight: 5}
		block := &model.Block{ID: "b5", Height: 5}

		err := db.WithTx(ctx, "forward", func(tx *storage.Tx) error {
			return c.ForwardTick(ctx, block, tx)
		})
		if !chainerr.IsSnapshotComplete(err) {
			t.Fatalf("got %v, expected ErrSnapshotComplete at the replay bound", err)
		}
	})
}
