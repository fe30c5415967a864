// Package ledger is the Account Store collaborator of spec §6: it
// resolves public keys to balances, tracks the unconfirmed view the
// pool needs to pre-validate pending transactions, and writes updates
// back through the active persistence transaction. Grounded on the
// teacher's custodian account bootstrap (custodianAccount /
// makeNewCustodianAccount in custodian.go), generalized from "one
// well-known custodian row" to "any number of accounts keyed by public
// key."
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"sync"

	"github.com/bobg/sqlutil"
	"github.com/pkg/errors"

	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/storage"
)

// Store is the concrete Account Store. Confirmed balances live in
// sqlite, written only inside a caller-supplied persistence
// transaction; unconfirmed balances are an in-memory delta over the
// confirmed value, since the pool's pending effects are never durable
// on their own (spec §3: "Account... unconfirmed balance: confirmed
// minus pending effects of transactions currently in the pool").
type Store struct {
	db *storage.DB

	mu               sync.Mutex
	unconfirmedDelta map[string]int64
}

// New constructs a Store over db.
func New(db *storage.DB) *Store {
	return &Store{
		db:               db,
		unconfirmedDelta: make(map[string]int64),
	}
}

func key(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}

// GetAccount performs the strict lookup spec §6 calls getAccount:
// failure if the account does not already exist.
func (s *Store) GetAccount(ctx context.Context, tx *storage.Tx, publicKey []byte) (*model.Account, error) {
	acct, err := s.queryAccount(ctx, tx, publicKey)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errors.Errorf("account %x not found", publicKey)
	}
	return s.withUnconfirmed(acct), nil
}

// SetAccountAndGet is the get-or-create lookup of spec §6.
func (s *Store) SetAccountAndGet(ctx context.Context, tx *storage.Tx, publicKey []byte) (*model.Account, error) {
	acct, err := s.queryAccount(ctx, tx, publicKey)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return s.withUnconfirmed(acct), nil
	}
	acct = &model.Account{PublicKey: publicKey}
	if err := s.insert(ctx, tx, acct); err != nil {
		return nil, err
	}
	return s.withUnconfirmed(acct), nil
}

func (s *Store) queryAccount(ctx context.Context, tx *storage.Tx, publicKey []byte) (*model.Account, error) {
	const q = `SELECT balance, voted_delegate, multisig_public_keys, multisig_min
	           FROM accounts WHERE public_key = $1`
	row := tx.QueryRow(ctx, q, publicKey)

	var (
		balance     int64
		voted       []byte
		multisigPub []byte
		multisigMin uint32
	)
	err := row.Scan(&balance, &voted, &multisigPub, &multisigMin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "querying account %x", publicKey)
	}
	return &model.Account{
		PublicKey:          publicKey,
		Balance:            balance,
		VotedDelegate:      voted,
		MultisigPublicKeys: multisigPub,
		MultisigMin:        multisigMin,
	}, nil
}

func (s *Store) insert(ctx context.Context, tx *storage.Tx, acct *model.Account) error {
	const q = `INSERT INTO accounts (public_key, balance, voted_delegate, multisig_public_keys, multisig_min)
	           VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.Exec(ctx, q, acct.PublicKey, acct.Balance, acct.VotedDelegate, acct.MultisigPublicKeys, acct.MultisigMin)
	return errors.Wrapf(err, "inserting account %x", acct.PublicKey)
}

// Save writes acct's confirmed fields back to storage. It never touches
// the in-memory unconfirmed delta; callers adjust that separately with
// AdjustUnconfirmed.
func (s *Store) Save(ctx context.Context, tx *storage.Tx, acct *model.Account) error {
	const q = `UPDATE accounts SET balance = $1, voted_delegate = $2,
	           multisig_public_keys = $3, multisig_min = $4 WHERE public_key = $5`
	_, err := tx.Exec(ctx, q, acct.Balance, acct.VotedDelegate, acct.MultisigPublicKeys, acct.MultisigMin, acct.PublicKey)
	return errors.Wrapf(err, "saving account %x", acct.PublicKey)
}

// SetAccountAndGetUnconfirmed is SetAccountAndGet for callers that have
// no open persistence transaction — the transaction pool, resolving a
// sender for a transaction that has not yet been attached to any block.
// It runs its read/insert autocommit against the raw connection, which
// is safe because it never needs to share atomicity with a block write:
// unconfirmed-only effects live in memory, never in the accounts table.
func (s *Store) SetAccountAndGetUnconfirmed(publicKey []byte) (*model.Account, error) {
	ctx := context.Background()
	conn := s.db.Conn()

	const q = `SELECT balance, voted_delegate, multisig_public_keys, multisig_min
	           FROM accounts WHERE public_key = $1`
	row := conn.QueryRowContext(ctx, q, publicKey)

	var (
		balance     int64
		voted       []byte
		multisigPub []byte
		multisigMin uint32
	)
	err := row.Scan(&balance, &voted, &multisigPub, &multisigMin)
	if err == nil {
		return s.withUnconfirmed(&model.Account{
			PublicKey:          publicKey,
			Balance:            balance,
			VotedDelegate:      voted,
			MultisigPublicKeys: multisigPub,
			MultisigMin:        multisigMin,
		}), nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrapf(err, "querying account %x", publicKey)
	}

	const insertQ = `INSERT INTO accounts (public_key, balance) VALUES ($1, 0)`
	if _, err := conn.ExecContext(ctx, insertQ, publicKey); err != nil {
		return nil, errors.Wrapf(err, "inserting account %x", publicKey)
	}
	return s.withUnconfirmed(&model.Account{PublicKey: publicKey}), nil
}

// ListAccounts returns every account currently in storage, with its
// confirmed balance and its unconfirmed view. Used by cmd/chaind's
// debug status endpoint. Grounded
// on the teacher's use of sqlutil.ForQueryRows to walk multi-row result
// sets without hand-written rows.Next loops (migrate.go's appliedQ scan
// in the vendored sqlutil package the teacher depended on).
func (s *Store) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	var out []*model.Account
	const q = `SELECT public_key, balance, voted_delegate, multisig_public_keys, multisig_min FROM accounts ORDER BY public_key`
	err := sqlutil.ForQueryRows(ctx, s.db.Conn(), q, func(publicKey []byte, balance int64, voted, multisigPub []byte, multisigMin uint32) {
		out = append(out, s.withUnconfirmed(&model.Account{
			PublicKey:          publicKey,
			Balance:            balance,
			VotedDelegate:      voted,
			MultisigPublicKeys: multisigPub,
			MultisigMin:        multisigMin,
		}))
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing accounts")
	}
	return out, nil
}

// AdjustUnconfirmed applies delta to the in-memory unconfirmed view for
// publicKey. Positive deltas credit, negative deltas debit.
func (s *Store) AdjustUnconfirmed(publicKey []byte, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unconfirmedDelta[key(publicKey)] += delta
}

// ResetUnconfirmedAll clears every account's unconfirmed delta. This is
// the memory-side effect behind the pool's undoUnconfirmedList (spec
// §4.1 step 1): after it runs, every account's unconfirmed balance
// equals its confirmed balance.
func (s *Store) ResetUnconfirmedAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unconfirmedDelta = make(map[string]int64)
}

func (s *Store) unconfirmedOf(publicKey []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unconfirmedDelta[key(publicKey)]
}

func (s *Store) withUnconfirmed(acct *model.Account) *model.Account {
	acct.UnconfirmedBalance = acct.Balance + s.unconfirmedOf(acct.PublicKey)
	return acct
}
