// Command chaind runs the chain-apply core as a standalone process: it
// opens the sqlite3-backed store, wires the Chain Mutator and its
// collaborators, bootstraps the genesis block if the store is empty,
// and serves a small HTTP status surface. Grounded on the teacher's
// slidechain.go main(), which performed the same
// flag-parse/open-db/bootstrap/serve sequence for the custodian.
package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dpos-chain/chaincore/internal/bus"
	"github.com/dpos-chain/chaincore/internal/chain"
	"github.com/dpos-chain/chaincore/internal/lastblock"
	"github.com/dpos-chain/chaincore/internal/ledger"
	"github.com/dpos-chain/chaincore/internal/model"
	"github.com/dpos-chain/chaincore/internal/round"
	"github.com/dpos-chain/chaincore/internal/storage"
	"github.com/dpos-chain/chaincore/internal/txexec"
	"github.com/dpos-chain/chaincore/internal/txpool"
)

func main() {
	var (
		dbFile   = flag.String("db", "chaind.db", "path to the sqlite3 database file")
		addr     = flag.String("addr", ":2423", "HTTP status listen address")
		logLevel = flag.String("loglevel", "info", "logrus level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.WithField("err", err).Fatal("parsing -loglevel")
	}
	log.SetLevel(level)

	db, err := storage.Open(*dbFile)
	if err != nil {
		log.WithField("err", err).Fatal("opening database")
	}
	defer db.Close()

	l := ledger.New(db)
	exec := txexec.New(l)
	pool := txpool.New(exec, l)
	rc := round.NewInMemoryController()
	last := lastblock.New()
	b := bus.New()
	mutator := chain.New(db, l, exec, pool, rc, last, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bootstrap(ctx, db, mutator, last); err != nil {
		log.WithField("err", err).Fatal("bootstrapping chain")
	}

	srv := &http.Server{Addr: *addr, Handler: statusHandler(mutator, last, l)}

	// The status server and the newBlock log subscriber run under one
	// errgroup so that either one exiting unexpectedly brings the process
	// down instead of leaving a half-functioning node running. Grounded
	// on the teacher's pattern of starting RunPin as an independent
	// goroutine per subscriber (pin.go), generalized here to a group that
	// also owns shutdown.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", *addr).Info("serving status endpoint")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		bus.Subscribe(gctx, b, bus.TopicNewBlock, func(ev *bus.Event) {
			blk, _ := ev.Block.(*model.Block)
			if blk == nil {
				return
			}
			log.WithFields(log.Fields{"height": blk.Height, "id": blk.ID}).Info("new block applied")
		})
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	select {
	case <-sigCh:
		log.Info("shutting down")
	case <-gctx.Done():
		log.WithField("err", gctx.Err()).Warn("service goroutine exited early")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		log.WithField("err", err).Error("service group exited with error")
	}
}

// bootstrap loads the last block from storage if the chain already has
// one, or applies the hardcoded genesis block if this is a fresh store.
// Grounded on the teacher's custodian startup sequence (slidechain.go),
// which distinguished a fresh custodian row from a resumed one the same
// way: query first, fall back to an initializing write.
func bootstrap(ctx context.Context, db *storage.DB, mutator *chain.Mutator, last *lastblock.Register) error {
	const q = `SELECT id FROM blocks ORDER BY height DESC LIMIT 1`
	var tipID string
	err := db.Conn().QueryRowContext(ctx, q).Scan(&tipID)
	if err == nil {
		log.WithField("tip", tipID).Info("resuming chain from existing tip")
		return resumeFromStorage(ctx, db, last)
	}
	if err != sql.ErrNoRows {
		return err
	}

	log.Info("no existing chain found, applying genesis block")
	genesis := genesisBlock()
	if err := mutator.SaveGenesisBlock(ctx, genesis); err != nil {
		return err
	}
	return mutator.ApplyGenesisBlock(ctx, genesis)
}

// resumeFromStorage re-derives the in-memory last-block register from
// the durable tip row; everything else the Chain Mutator needs is
// either durable (accounts, rounds) or safely reconstructed (the
// transaction pool starts empty, matching the reference semantics that
// a restart drops unconfirmed, unpersisted pool state).
func resumeFromStorage(ctx context.Context, db *storage.DB, last *lastblock.Register) error {
	const q = `SELECT payload FROM blocks ORDER BY height DESC LIMIT 1`
	var payload []byte
	if err := db.Conn().QueryRowContext(ctx, q).Scan(&payload); err != nil {
		return err
	}
	block, err := model.UnmarshalBlock(payload)
	if err != nil {
		return err
	}
	last.Set(block)
	return nil
}

// genesisBlock is the chain's hardcoded first block. A production
// deployment would load this from a signed genesis file; this
// standalone command hardcodes a single-account allocation so the
// process can boot without external configuration.
func genesisBlock() *model.Block {
	founder := []byte("genesis-founder-public-key-0000")
	return &model.Block{
		ID:                 "genesis",
		Height:             1,
		PreviousBlockID:    "",
		Timestamp:          0,
		GeneratorPublicKey: founder,
		Transactions: []*model.Transaction{
			{
				ID:              "genesis-tx-0",
				Type:            model.TRANSFER,
				SenderPublicKey: founder,
				Transfer: &model.TransferPayload{
					RecipientPublicKey: founder,
					Amount:             100000000,
				},
			},
		},
	}
}

// statusHandler serves the current tip height and id, the minimal
// status surface grounded on the teacher's get.go (an http.HandlerFunc
// reading chain state and writing a plain response, using the same
// httpErrf-style wrapping for error responses).
func statusHandler(mutator *chain.Mutator, last *lastblock.Register, l *ledger.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		b := last.Get()
		if b == nil {
			httpErrf(w, http.StatusServiceUnavailable, "chain not yet bootstrapped")
			return
		}
		fmt.Fprintf(w, "height=%d id=%s generator=%s active=%t\n",
			b.Height, b.ID, hex.EncodeToString(b.GeneratorPublicKey), mutator.IsActive())
	})
	mux.HandleFunc("/height", func(w http.ResponseWriter, req *http.Request) {
		b := last.Get()
		if b == nil {
			httpErrf(w, http.StatusServiceUnavailable, "chain not yet bootstrapped")
			return
		}
		fmt.Fprint(w, strconv.FormatUint(b.Height, 10))
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, req *http.Request) {
		accts, err := l.ListAccounts(req.Context())
		if err != nil {
			httpErrf(w, http.StatusInternalServerError, "listing accounts: %s", err)
			return
		}
		for _, a := range accts {
			fmt.Fprintf(w, "%s balance=%d unconfirmed=%d\n",
				hex.EncodeToString(a.PublicKey), a.Balance, a.UnconfirmedBalance)
		}
	})
	return mux
}

// httpErrf writes a plain-text error response, logging server-side
// (5xx) failures at error level the way the teacher's net/error.go did
// for the custodian's HTTP surface.
func httpErrf(w http.ResponseWriter, code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if code >= 500 {
		log.WithField("err", msg).Error("http handler error")
	}
	http.Error(w, msg, code)
}
