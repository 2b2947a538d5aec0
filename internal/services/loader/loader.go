// Package loader assembles piggy bank view-models: balance, transactions,
// running-balance history and goals.
package loader

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/cryptox"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/piggysync/internal/repositories/viewcache"
	"github.com/shopspring/decimal"
)

// Syncer reconciles a balance against the log.
type Syncer interface {
	SyncBalance(ctx context.Context, piggyBankID string) (decimal.Decimal, error)
}

const (
	balanceUnreadable  = "balance unreadable"
	balanceUnavailable = "balance unavailable"
	goalUnreadable     = "goal unreadable"
)

type Loader struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	syncer      Syncer
	cipher      cryptox.Cipher
	cache       viewcache.Store
	log         logging.Logger

	loc *time.Location
	now func() time.Time
}

type Option func(*Loader)

// WithCache enables the stale-view fallback.
func WithCache(c viewcache.Store) Option { return func(l *Loader) { l.cache = c } }

// WithLocation sets the time zone history days are bucketed in.
func WithLocation(loc *time.Location) Option { return func(l *Loader) { l.loc = loc } }

func WithClock(now func() time.Time) Option { return func(l *Loader) { l.now = now } }

func New(db dbx.DBTX, rm repomanager.RepositoryManager, syncer Syncer, cipher cryptox.Cipher, log logging.Logger, opts ...Option) *Loader {
	l := &Loader{
		db:          db,
		repomanager: rm,
		syncer:      syncer,
		cipher:      cipher,
		log:         log,
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LoadPiggyBank builds the view of record as seen through role.
//
// A balance that cannot be decrypted or synced does not fail the load: the
// view carries a zero balance, no history and BalanceError. Errors are
// returned only when transactions or goals cannot be read, or when the
// piggy bank disappeared during a sync.
func (l *Loader) LoadPiggyBank(ctx context.Context, record *models.PiggyBank, role models.Role, mode models.LoadMode) (*models.PiggyBankView, error) {
	log := l.log.With("piggy_bank_id", record.ID, "mode", mode.String())

	view := &models.PiggyBankView{
		ID:          record.ID,
		Name:        record.Name,
		Color:       record.Color,
		Role:        role,
		LockState:   record.LockState,
		Features:    record.Features,
		ConnectedAt: record.CreatedAt,
	}

	balance, err := l.balance(ctx, record, mode)
	switch {
	case err == nil:
		view.Balance = balance
	case errors.Is(err, common.ErrPersistFailed):
		// The total is right, it just was not saved; the next sync redoes it.
		log.Warn(ctx, "showing unsaved balance", "error", err)
		view.Balance = balance
	case errors.Is(err, common.ErrorNotFound):
		return nil, err
	case errors.Is(err, common.ErrDecryption):
		log.Error(ctx, "balance unreadable", "error", err)
		view.Balance = decimal.Zero
		view.BalanceError = balanceUnreadable
	default:
		log.Error(ctx, "balance unavailable", "error", err)
		view.Balance = decimal.Zero
		view.BalanceError = balanceUnavailable
	}

	txs, err := l.repomanager.Transactions(l.db).ListAll(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })

	view.Transactions = make([]models.TransactionView, 0, len(txs))
	for _, tx := range txs {
		view.Transactions = append(view.Transactions, models.TransactionView{
			ID:        tx.ID,
			Title:     tx.Title,
			Amount:    tx.SignedAmount(),
			Type:      tx.Type,
			CreatedAt: tx.CreatedAt,
		})
	}
	if !view.Broken() {
		view.History = BuildHistory(view.Balance, record.CreatedAt, txs, l.loc)
	}

	goals, err := l.repomanager.Goals(l.db).ListByPiggyBank(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	view.Goals = make([]models.GoalView, 0, len(goals))
	for _, g := range goals {
		view.Goals = append(view.Goals, l.goalView(ctx, log, g))
	}

	return view, nil
}

func (l *Loader) balance(ctx context.Context, record *models.PiggyBank, mode models.LoadMode) (decimal.Decimal, error) {
	if mode == models.LoadSync {
		return l.syncer.SyncBalance(ctx, record.ID)
	}
	return l.cipher.Decrypt(record.Balance)
}

func (l *Loader) goalView(ctx context.Context, log logging.Logger, g models.Goal) models.GoalView {
	v := models.GoalView{ID: g.ID, Title: g.Title, AllocationPercent: g.AllocationPercent}

	target, errT := l.cipher.Decrypt(g.TargetAmount)
	saved, errS := l.cipher.Decrypt(g.SavedAmount)
	if err := errors.Join(errT, errS); err != nil {
		log.Warn(ctx, "goal unreadable", "goal_id", g.ID, "error", err)
		v.Error = goalUnreadable
	}
	if errT == nil {
		v.TargetAmount = target
	}
	if errS == nil {
		v.SavedAmount = saved
	}
	return v
}

// LoadForUser loads every piggy bank the user owns or was invited to.
//
// On a retrieval failure the last cached collection is served with Stale
// set, if there is one.
func (l *Loader) LoadForUser(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error) {
	c, err := l.loadForUser(ctx, userID, mode)
	if err == nil {
		if l.cache != nil {
			if cerr := l.cache.Save(ctx, *c); cerr != nil {
				l.log.Warn(ctx, "failed to cache collection", "user_id", userID, "error", cerr)
			}
		}
		return c, nil
	}

	if !errors.Is(err, common.ErrRetrieval) || l.cache == nil {
		return nil, err
	}
	cached, cerr := l.cache.Load(ctx, userID)
	if cerr != nil {
		if !errors.Is(cerr, common.ErrorNotFound) {
			l.log.Warn(ctx, "failed to read cached collection", "user_id", userID, "error", cerr)
		}
		return nil, err
	}
	l.log.Warn(ctx, "serving stale collection", "user_id", userID, "loaded_at", cached.LoadedAt, "error", err)
	cached.Stale = true
	return cached, nil
}

func (l *Loader) loadForUser(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error) {
	pbRepo := l.repomanager.PiggyBanks(l.db)

	owned, err := pbRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	guestIDs, err := l.repomanager.Guests(l.db).ListPiggyBankIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	var shared []*models.PiggyBank
	if len(guestIDs) > 0 {
		if shared, err = pbRepo.ListByIDs(ctx, guestIDs); err != nil {
			return nil, err
		}
	}

	c := &models.Collection{
		UserID:     userID,
		PiggyBanks: make([]models.PiggyBankView, 0, len(owned)+len(shared)),
	}
	add := func(records []*models.PiggyBank, role models.Role) error {
		for _, record := range records {
			if role == models.RoleGuest && record.OwnedBy(userID) {
				continue
			}
			v, err := l.LoadPiggyBank(ctx, record, role, mode)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			c.PiggyBanks = append(c.PiggyBanks, *v)
		}
		return nil
	}
	if err := add(owned, models.RoleOwner); err != nil {
		return nil, err
	}
	if err := add(shared, models.RoleGuest); err != nil {
		return nil, err
	}
	c.LoadedAt = l.now().UTC()
	return c, nil
}

// TotalBalance sums the user's readable balances, counting broken ones apart.
func (l *Loader) TotalBalance(ctx context.Context, userID string) (models.Total, bool, error) {
	c, err := l.LoadForUser(ctx, userID, models.LoadFast)
	if err != nil {
		return models.Total{}, false, err
	}
	return models.TotalOf(c.PiggyBanks), c.Stale, nil
}
