package viewcache

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return s
}

func sampleCollection(userID string, loaded time.Time) models.Collection {
	return models.Collection{
		UserID:   userID,
		LoadedAt: loaded,
		PiggyBanks: []models.PiggyBankView{
			{ID: "pb1", Name: "Oink", Role: models.RoleOwner, Balance: decimal.RequireFromString("14.50")},
			{ID: "pb2", Name: "Shared", Role: models.RoleGuest, BalanceError: "balance unreadable"},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	loaded := time.Date(2026, 5, 1, 10, 0, 0, 123000, time.UTC)

	require.NoError(t, s.Save(ctx, sampleCollection("u1", loaded)))

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, loaded, got.LoadedAt)
	require.Len(t, got.PiggyBanks, 2)
	assert.True(t, got.PiggyBanks[0].Balance.Equal(decimal.RequireFromString("14.5")))
	assert.True(t, got.PiggyBanks[1].Broken())
	assert.False(t, got.Stale)
}

func TestLoad_Missing(t *testing.T) {
	s := setupStore(t)

	_, err := s.Load(context.Background(), "nobody")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSave_Overwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Save(ctx, sampleCollection("u1", now)))
	c := sampleCollection("u1", now.Add(time.Minute))
	c.PiggyBanks = c.PiggyBanks[:1]
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got.PiggyBanks, 1)
}

func TestSave_ClearsStaleFlag(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleCollection("u1", time.Now())
	c.Stale = true
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Stale)
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCollection("u1", time.Now())))
	require.NoError(t, s.Delete(ctx, "u1"))

	_, err := s.Load(ctx, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUsersAreIsolated(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCollection("u1", time.Now())))
	_, err := s.Load(ctx, "u2")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, _, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(context.Background(), db))
}
