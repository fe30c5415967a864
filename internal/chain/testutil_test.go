package chain

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/dpos-chain/chaincore/internal/bus"
	"github.com/dpos-chain/chaincore/internal/lastblock"
	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/round"
	"github.com/dpos-chain/chaincore/internal/storage"
	"github.com/dpos-chain/chaincore/internal/txexec"
	"github.com/dpos-chain/chaincore/internal/txpool"
)

// withTestMutator opens a scratch sqlite3 file, wires a full Chain
// Mutator over it, and hands it to fn, cleaning up afterward. Grounded
// on the teacher's withTestServer in slidechain_test.go, which did the
// same open-db/build-collaborators/defer-cleanup dance around each test
// body instead of a shared package-level fixture.
func withTestMutator(t *testing.T, fn func(ctx context.Context, m *Mutator)) {
	t.Helper()

	f, err := ioutil.TempFile("", "chaincore-test-*.db")
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

	l := ledger.New(db)
	exec := txexec.New(l)
	pool := txpool.New(exec, l)
	rc := round.NewInMemoryController()
	last := lastblock.New()
	b := bus.New()
	m := New(db, l, exec, pool, rc, last, b)

	fn(context.Background(), m)
}

func pubKey(label byte) []byte {
	k := make([]byte, 32)
	k[0] = label
	return k
}
