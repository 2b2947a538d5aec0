package loader

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/cryptox"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/repositories/viewcache"
	"github.com/dmitrijs2005/piggysync/internal/services/reconciler"
	"github.com/dmitrijs2005/piggysync/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cipherOnce sync.Once
	testCipher *cryptox.AmountCipher
)

func newCipher() *cryptox.AmountCipher {
	cipherOnce.Do(func() {
		c, err := cryptox.NewAmountCipher([]byte("test-key"), []byte("test-salt"))
		if err != nil {
			panic(err)
		}
		testCipher = c
	})
	return testCipher
}

type fixture struct {
	clock  *memstore.Clock
	store  *memstore.Store
	cipher *cryptox.AmountCipher
	cache  *viewcache.SQLiteStore
	logs   *bytes.Buffer
	loader *Loader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:  memstore.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		cipher: newCipher(),
		logs:   &bytes.Buffer{},
	}
	f.store = memstore.New(f.clock)

	db, cache, err := viewcache.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f.cache = cache

	log := logging.NewJSONLogger(f.logs, "debug")
	rec := reconciler.New(f.store, f.store, f.cipher, log, reconciler.WithClock(f.clock.Now))
	f.loader = New(nil, memstore.Manager{Store: f.store}, rec, f.cipher, log,
		WithCache(cache), WithClock(f.clock.Now))
	return f
}

func (f *fixture) encrypt(t *testing.T, amount string) models.EncryptedAmount {
	t.Helper()
	blob, err := f.cipher.Encrypt(dec(amount))
	require.NoError(t, err)
	return blob
}

func (f *fixture) addBank(t *testing.T, id, owner, balance string) {
	t.Helper()
	var uid *string
	if owner != "" {
		uid = &owner
	}
	f.store.AddPiggyBank(models.PiggyBank{ID: id, UserID: uid, Name: "Pig " + id, Balance: f.encrypt(t, balance)})
}

func (f *fixture) deposit(t *testing.T, id, amount string) {
	t.Helper()
	f.clock.Advance(time.Hour)
	require.NoError(t, f.store.Append(context.Background(), id, []models.TransactionEntry{
		{Title: "Deposit", Amount: dec(amount), Type: models.TransactionDeposit},
	}))
}

func (f *fixture) record(t *testing.T, id string) *models.PiggyBank {
	t.Helper()
	pb, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return pb
}

func TestLoadPiggyBank_FastUsesStoredBalance(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "5")
	f.deposit(t, "pb1", "2")

	v, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, models.LoadFast)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(dec("5")), "fast path must not fold, got %s", v.Balance)
	assert.Len(t, v.Transactions, 1)
	assert.Zero(t, f.store.Calls("ListSince"))
}

func TestLoadPiggyBank_SyncFoldsLog(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "5")
	f.deposit(t, "pb1", "2")
	f.clock.Advance(time.Hour)
	require.NoError(t, f.store.Append(context.Background(), "pb1", []models.TransactionEntry{
		{Title: "Candy", Amount: dec("1.25"), Type: models.TransactionWithdrawal},
	}))

	v, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, models.LoadSync)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(dec("5.75")), "got %s", v.Balance)
	require.Len(t, v.Transactions, 2)
	assert.Equal(t, "Candy", v.Transactions[0].Title, "newest first")
	assert.True(t, v.Transactions[0].Amount.Equal(dec("-1.25")))
	require.NotEmpty(t, v.History)
	assert.True(t, v.History[len(v.History)-1].Balance.Equal(dec("5.75")))
}

func TestLoadPiggyBank_UnreadableBalanceKeepsRest(t *testing.T) {
	f := newFixture(t)
	owner := "u1"
	f.store.AddPiggyBank(models.PiggyBank{ID: "pb1", UserID: &owner, Balance: "v1:broken"})
	f.deposit(t, "pb1", "2")
	require.NoError(t, f.store.Create(context.Background(), &models.Goal{
		PiggyBankID: "pb1", Title: "Bike", TargetAmount: f.encrypt(t, "100"), SavedAmount: f.encrypt(t, "20"), AllocationPercent: 50,
	}))

	for _, mode := range []models.LoadMode{models.LoadFast, models.LoadSync} {
		v, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, mode)
		require.NoError(t, err)
		assert.True(t, v.Broken())
		assert.Equal(t, balanceUnreadable, v.BalanceError)
		assert.True(t, v.Balance.IsZero())
		assert.Nil(t, v.History)
		assert.Len(t, v.Transactions, 1)
		require.Len(t, v.Goals, 1)
		assert.True(t, v.Goals[0].TargetAmount.Equal(dec("100")))
	}
}

func TestLoadPiggyBank_GoalDecryptedPerField(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "0")
	require.NoError(t, f.store.Create(context.Background(), &models.Goal{
		PiggyBankID: "pb1", Title: "Bike", TargetAmount: f.encrypt(t, "100"), SavedAmount: "junk", AllocationPercent: 10,
	}))

	v, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, models.LoadFast)
	require.NoError(t, err)
	require.Len(t, v.Goals, 1)
	g := v.Goals[0]
	assert.True(t, g.TargetAmount.Equal(dec("100")))
	assert.True(t, g.SavedAmount.IsZero())
	assert.Equal(t, goalUnreadable, g.Error)
	assert.False(t, v.Broken())
}

func TestLoadPiggyBank_PersistFailedShowsTotal(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "1")
	f.deposit(t, "pb1", "2")
	f.store.FailOn("UpdateBalance", assert.AnError)

	v, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, models.LoadSync)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(dec("3")))
	assert.False(t, v.Broken())
	assert.Contains(t, f.logs.String(), "showing unsaved balance")
}

func TestLoadPiggyBank_TransactionsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "1")
	f.store.FailOn("ListAll", common.ErrRetrieval)

	_, err := f.loader.LoadPiggyBank(context.Background(), f.record(t, "pb1"), models.RoleOwner, models.LoadFast)
	require.ErrorIs(t, err, common.ErrRetrieval)
}

func TestLoadForUser_OwnedAndGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBank(t, "mine", "u1", "3")
	f.addBank(t, "theirs", "u2", "4")
	f.addBank(t, "broken", "u1", "0")
	owner := "u1"
	f.store.AddPiggyBank(models.PiggyBank{ID: "broken", UserID: &owner, Balance: "bad"})
	require.NoError(t, f.store.Grant(ctx, "theirs", "u1", "CODE01"))

	c, err := f.loader.LoadForUser(ctx, "u1", models.LoadFast)
	require.NoError(t, err)
	require.Len(t, c.PiggyBanks, 3)
	assert.False(t, c.Stale)

	owned := c.Owned()
	require.Len(t, owned, 2)
	for _, v := range owned {
		assert.NotEqual(t, "theirs", v.ID)
	}

	total := models.TotalOf(c.PiggyBanks)
	assert.True(t, total.Balance.Equal(dec("7")))
	assert.Equal(t, 1, total.Broken)

	// The owner does not see it as a guest bank.
	c2, err := f.loader.LoadForUser(ctx, "u2", models.LoadFast)
	require.NoError(t, err)
	require.Len(t, c2.PiggyBanks, 1)
	assert.Equal(t, models.RoleOwner, c2.PiggyBanks[0].Role)
}

func TestLoadForUser_StaleFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBank(t, "pb1", "u1", "9")

	fresh, err := f.loader.LoadForUser(ctx, "u1", models.LoadFast)
	require.NoError(t, err)

	f.store.FailOn("ListByOwner", common.ErrRetrieval)
	got, err := f.loader.LoadForUser(ctx, "u1", models.LoadFast)
	require.NoError(t, err)
	assert.True(t, got.Stale)
	require.Len(t, got.PiggyBanks, 1)
	assert.True(t, got.PiggyBanks[0].Balance.Equal(dec("9")))
	assert.Equal(t, fresh.LoadedAt, got.LoadedAt)
	assert.Contains(t, f.logs.String(), "serving stale collection")
}

func TestLoadForUser_NoCacheSurfacesError(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("ListByOwner", common.ErrRetrieval)

	_, err := f.loader.LoadForUser(context.Background(), "u1", models.LoadFast)
	require.ErrorIs(t, err, common.ErrRetrieval)
}

func TestLoadForUser_NonRetrievalErrorNotMasked(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "pb1", "u1", "1")
	_, err := f.loader.LoadForUser(context.Background(), "u1", models.LoadFast)
	require.NoError(t, err)

	f.store.FailOn("ListByOwner", common.ErrorInternal)
	_, err = f.loader.LoadForUser(context.Background(), "u1", models.LoadFast)
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestTotalBalance(t *testing.T) {
	f := newFixture(t)
	f.addBank(t, "a", "u1", "1.50")
	f.addBank(t, "b", "u1", "2.25")

	total, stale, err := f.loader.TotalBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, stale)
	assert.True(t, total.Balance.Equal(dec("3.75")))
	assert.Zero(t, total.Broken)
}
