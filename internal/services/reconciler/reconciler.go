// Package reconciler brings a piggy bank's encrypted balance up to date with
// its transaction log.
//
// The cached balance is a fold of every transaction at or below the
// watermark. SyncBalance folds the transactions above it, re-encrypts the
// total and moves the watermark forward in one row update.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/cryptox"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/repositories/piggybanks"
	"github.com/dmitrijs2005/piggysync/internal/repositories/transactions"
	"github.com/shopspring/decimal"
)

// Mode selects how concurrent reconciliations of one piggy bank interact.
type Mode string

const (
	// LastWriteWins writes unconditionally. Two overlapping syncs may both
	// fold the same transactions; the later write wins.
	LastWriteWins Mode = "last-write-wins"
	// Optimistic writes only if the watermark read at the start is still
	// current and re-runs the fold on conflict.
	Optimistic Mode = "optimistic"
)

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", LastWriteWins:
		return LastWriteWins, nil
	case Optimistic:
		return Optimistic, nil
	}
	return "", fmt.Errorf("unknown concurrency mode %q", s)
}

type Reconciler struct {
	piggyBanks piggybanks.Repository
	txlog      transactions.Repository
	cipher     cryptox.Cipher
	log        logging.Logger

	mode    Mode
	retries int
	now     func() time.Time
}

type Option func(*Reconciler)

// WithMode sets the concurrency mode. retries bounds the extra attempts made
// in Optimistic mode.
func WithMode(mode Mode, retries int) Option {
	return func(r *Reconciler) {
		r.mode = mode
		if retries >= 0 {
			r.retries = retries
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(pb piggybanks.Repository, txlog transactions.Repository, cipher cryptox.Cipher, log logging.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		piggyBanks: pb,
		txlog:      txlog,
		cipher:     cipher,
		log:        log,
		mode:       LastWriteWins,
		retries:    3,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SyncBalance returns the up-to-date plaintext balance.
//
// Errors:
//   - common.ErrorNotFound: the piggy bank does not exist.
//   - common.ErrDecryption: the stored balance is unreadable; nothing is written.
//   - common.ErrRetrieval: the row or the log could not be read.
//   - common.ErrPersistFailed: the total is correct for display but was not
//     saved. It is returned together with the error.
func (r *Reconciler) SyncBalance(ctx context.Context, piggyBankID string) (decimal.Decimal, error) {
	log := r.log.With("piggy_bank_id", piggyBankID)

	for attempt := 0; ; attempt++ {
		total, err := r.syncOnce(ctx, log, piggyBankID)
		if !errors.Is(err, common.ErrVersionConflict) {
			return total, err
		}
		if attempt >= r.retries {
			log.Warn(ctx, "balance write kept conflicting, giving up", "attempts", attempt+1)
			return total, fmt.Errorf("%w: %w", common.ErrPersistFailed, err)
		}
		log.Debug(ctx, "watermark moved under us, refolding", "attempt", attempt+1)
	}
}

func (r *Reconciler) syncOnce(ctx context.Context, log logging.Logger, piggyBankID string) (decimal.Decimal, error) {
	state, err := r.piggyBanks.GetBalanceState(ctx, piggyBankID)
	if err != nil {
		return decimal.Zero, err
	}

	pending, err := r.txlog.ListSince(ctx, piggyBankID, state.Watermark)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := r.cipher.Decrypt(state.Balance)
	if err != nil {
		log.Error(ctx, "stored balance is unreadable", "error", err)
		return decimal.Zero, err
	}
	if len(pending) == 0 {
		return total, nil
	}

	total, last := Fold(total, pending)

	blob, err := r.cipher.Encrypt(total)
	if err != nil {
		return total, fmt.Errorf("%w: encrypt: %v", common.ErrPersistFailed, err)
	}

	// The watermark never lands below a folded row; a store clock running
	// ahead of ours would otherwise make the next sync fold it twice.
	watermark := r.now().UTC().Truncate(time.Microsecond)
	if watermark.Before(last) {
		watermark = last
	}

	if r.mode == Optimistic {
		err = r.piggyBanks.UpdateBalanceIfWatermark(ctx, piggyBankID, blob, watermark, state.Watermark)
	} else {
		err = r.piggyBanks.UpdateBalance(ctx, piggyBankID, blob, watermark)
	}
	switch {
	case err == nil:
		log.Info(ctx, "balance synced", "folded", len(pending))
		return total, nil
	case errors.Is(err, common.ErrVersionConflict), errors.Is(err, common.ErrorNotFound):
		return total, err
	default:
		log.Error(ctx, "failed to persist synced balance", "error", err)
		return total, fmt.Errorf("%w: %v", common.ErrPersistFailed, err)
	}
}

// Fold adds the signed amount of every transaction to start and returns the
// total together with the newest CreatedAt seen.
func Fold(start decimal.Decimal, txs []models.Transaction) (decimal.Decimal, time.Time) {
	total := start
	var last time.Time
	for _, tx := range txs {
		total = total.Add(tx.SignedAmount())
		if tx.CreatedAt.After(last) {
			last = tx.CreatedAt
		}
	}
	return total, last
}
