package httpapi

import (
	"context"

	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/services/piggybank"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

var _ PiggyBanks = (*mockService)(nil)

func (m *mockService) ResolveRole(ctx context.Context, userID, piggyBankID string) (*models.PiggyBank, models.Role, error) {
	args := m.Called(ctx, userID, piggyBankID)
	pb, _ := args.Get(0).(*models.PiggyBank)
	return pb, args.Get(1).(models.Role), args.Error(2)
}

func (m *mockService) List(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error) {
	args := m.Called(ctx, userID, mode)
	c, _ := args.Get(0).(*models.Collection)
	return c, args.Error(1)
}

func (m *mockService) Total(ctx context.Context, userID string) (models.Total, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Total), args.Bool(1), args.Error(2)
}

func (m *mockService) Get(ctx context.Context, userID, piggyBankID string, mode models.LoadMode) (*models.PiggyBankView, error) {
	args := m.Called(ctx, userID, piggyBankID, mode)
	v, _ := args.Get(0).(*models.PiggyBankView)
	return v, args.Error(1)
}

func (m *mockService) Sync(ctx context.Context, userID, piggyBankID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, piggyBankID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockService) Record(ctx context.Context, userID, piggyBankID string, entries []models.TransactionEntry) (*models.PiggyBankView, error) {
	args := m.Called(ctx, userID, piggyBankID, entries)
	v, _ := args.Get(0).(*models.PiggyBankView)
	return v, args.Error(1)
}

func (m *mockService) UpdateDetails(ctx context.Context, userID, piggyBankID string, d piggybank.Details) (*models.PiggyBankView, error) {
	args := m.Called(ctx, userID, piggyBankID, d)
	v, _ := args.Get(0).(*models.PiggyBankView)
	return v, args.Error(1)
}

func (m *mockService) Remove(ctx context.Context, userID, piggyBankID string) error {
	return m.Called(ctx, userID, piggyBankID).Error(0)
}

func (m *mockService) Claim(ctx context.Context, userID, pairingCode string) (*models.PiggyBankView, error) {
	args := m.Called(ctx, userID, pairingCode)
	v, _ := args.Get(0).(*models.PiggyBankView)
	return v, args.Error(1)
}

func (m *mockService) IssueGuestCode(ctx context.Context, userID, piggyBankID string) (string, error) {
	args := m.Called(ctx, userID, piggyBankID)
	return args.String(0), args.Error(1)
}

func (m *mockService) RemoveAllGuests(ctx context.Context, userID, piggyBankID string) (int64, error) {
	args := m.Called(ctx, userID, piggyBankID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockService) JoinAsGuest(ctx context.Context, userID, accessCode string) (*models.PiggyBankView, error) {
	args := m.Called(ctx, userID, accessCode)
	v, _ := args.Get(0).(*models.PiggyBankView)
	return v, args.Error(1)
}

func (m *mockService) AddGoal(ctx context.Context, userID, piggyBankID string, in models.GoalInput) (*models.GoalView, error) {
	args := m.Called(ctx, userID, piggyBankID, in)
	g, _ := args.Get(0).(*models.GoalView)
	return g, args.Error(1)
}

func (m *mockService) UpdateGoal(ctx context.Context, userID, piggyBankID, goalID string, in models.GoalInput) (*models.GoalView, error) {
	args := m.Called(ctx, userID, piggyBankID, goalID, in)
	g, _ := args.Get(0).(*models.GoalView)
	return g, args.Error(1)
}

func (m *mockService) DeleteGoal(ctx context.Context, userID, piggyBankID, goalID string) error {
	return m.Called(ctx, userID, piggyBankID, goalID).Error(0)
}

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) LoadForUser(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error) {
	args := m.Called(ctx, userID, mode)
	c, _ := args.Get(0).(*models.Collection)
	return c, args.Error(1)
}
