// Package memstore is an in-memory implementation of the repositories used
// by service tests. It honours the same contracts as the Postgres
// repositories (strict watermark comparison, NotFound on missing rows,
// claim rules) and can inject failures per method.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/repositories/goals"
	"github.com/dmitrijs2005/piggysync/internal/repositories/guests"
	"github.com/dmitrijs2005/piggysync/internal/repositories/piggybanks"
	"github.com/dmitrijs2005/piggysync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/piggysync/internal/repositories/transactions"
	"github.com/google/uuid"
)

// Clock is a manually advanced clock shared by the store and the code under test.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{t: start.UTC()} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

type Store struct {
	mu sync.Mutex

	clock      *Clock
	piggyBanks map[string]*models.PiggyBank
	txs        []models.Transaction
	goals      map[string]models.Goal
	grants     []models.GuestGrant

	fail  map[string]error
	calls map[string]int
}

var (
	_ piggybanks.Repository   = (*Store)(nil)
	_ transactions.Repository = (*Store)(nil)
	_ goals.Repository        = (*Store)(nil)
	_ guests.Repository       = (*Store)(nil)
)

func New(clock *Clock) *Store {
	return &Store{
		clock:      clock,
		piggyBanks: map[string]*models.PiggyBank{},
		goals:      map[string]models.Goal{},
		fail:       map[string]error{},
		calls:      map[string]int{},
	}
}

// FailOn makes every subsequent call of method return err. A nil err clears it.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// Calls reports how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) enter(method string) error {
	s.calls[method]++
	return s.fail[method]
}

// AddPiggyBank inserts a row as-is. UpdatedAt and CreatedAt default to now.
func (s *Store) AddPiggyBank(p models.PiggyBank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	cp := p
	s.piggyBanks[p.ID] = &cp
}

// Row returns a copy of the stored piggy bank.
func (s *Store) Row(id string) (models.PiggyBank, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.piggyBanks[id]
	if !ok {
		return models.PiggyBank{}, false
	}
	return *p, true
}

// AddTransaction inserts a row bypassing validation, as a foreign writer would.
func (s *Store) AddTransaction(tx models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.clock.Now()
	}
	s.txs = append(s.txs, tx)
}

func cloneBank(p *models.PiggyBank) *models.PiggyBank {
	cp := *p
	if p.UserID != nil {
		u := *p.UserID
		cp.UserID = &u
	}
	return &cp
}

// --- piggybanks.Repository ---

func (s *Store) GetByID(ctx context.Context, id string) (*models.PiggyBank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByID"); err != nil {
		return nil, err
	}
	p, ok := s.piggyBanks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneBank(p), nil
}

func (s *Store) GetByPairingCode(ctx context.Context, code string) (*models.PiggyBank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByPairingCode"); err != nil {
		return nil, err
	}
	for _, p := range s.piggyBanks {
		if p.PairingCode == code {
			return cloneBank(p), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *Store) sorted(keep func(*models.PiggyBank) bool) []*models.PiggyBank {
	var out []*models.PiggyBank
	for _, p := range s.piggyBanks {
		if keep(p) {
			out = append(out, cloneBank(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListByOwner(ctx context.Context, userID string) ([]*models.PiggyBank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListByOwner"); err != nil {
		return nil, err
	}
	return s.sorted(func(p *models.PiggyBank) bool { return p.OwnedBy(userID) }), nil
}

func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]*models.PiggyBank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListByIDs"); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.sorted(func(p *models.PiggyBank) bool { return want[p.ID] }), nil
}

func (s *Store) GetBalanceState(ctx context.Context, id string) (*models.BalanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetBalanceState"); err != nil {
		return nil, err
	}
	p, ok := s.piggyBanks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.BalanceState{Balance: p.Balance, Watermark: p.UpdatedAt}, nil
}

func (s *Store) UpdateBalance(ctx context.Context, id string, balance models.EncryptedAmount, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateBalance"); err != nil {
		return err
	}
	p, ok := s.piggyBanks[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.Balance, p.UpdatedAt = balance, watermark
	return nil
}

func (s *Store) UpdateBalanceIfWatermark(ctx context.Context, id string, balance models.EncryptedAmount, watermark, expected time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateBalanceIfWatermark"); err != nil {
		return err
	}
	p, ok := s.piggyBanks[id]
	if !ok || !p.UpdatedAt.Equal(expected) {
		return common.ErrVersionConflict
	}
	p.Balance, p.UpdatedAt = balance, watermark
	return nil
}

func (s *Store) SetOwner(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetOwner"); err != nil {
		return err
	}
	p, ok := s.piggyBanks[id]
	if !ok || (p.UserID != nil && *p.UserID != userID) {
		return common.ErrAlreadyClaimed
	}
	u := userID
	p.UserID = &u
	return nil
}

func (s *Store) Reset(ctx context.Context, id string, zero models.EncryptedAmount, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Reset"); err != nil {
		return err
	}
	p, ok := s.piggyBanks[id]
	if !ok {
		return common.ErrorNotFound
	}
	for _, tx := range s.txs {
		if tx.PiggyBankID == id && tx.CreatedAt.After(watermark) {
			watermark = tx.CreatedAt
		}
	}
	p.Balance, p.UpdatedAt, p.UserID = zero, watermark, nil
	return nil
}

func (s *Store) UpdateDetails(ctx context.Context, id, name, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateDetails"); err != nil {
		return err
	}
	p, ok := s.piggyBanks[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.Name, p.Color = name, color
	return nil
}

// --- transactions.Repository ---

func (s *Store) Append(ctx context.Context, piggyBankID string, entries []models.TransactionEntry) error {
	normalized, err := transactions.Normalize(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Append"); err != nil {
		return err
	}
	now := s.clock.Now()
	for _, e := range normalized {
		s.txs = append(s.txs, models.Transaction{
			ID:          uuid.NewString(),
			PiggyBankID: piggyBankID,
			Title:       e.Title,
			Amount:      e.Amount,
			Type:        e.Type,
			CreatedAt:   now,
		})
	}
	return nil
}

func (s *Store) ListSince(ctx context.Context, piggyBankID string, after time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListSince"); err != nil {
		return nil, err
	}
	var out []models.Transaction
	for _, tx := range s.txs {
		if tx.PiggyBankID == piggyBankID && tx.CreatedAt.After(after) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAll(ctx context.Context, piggyBankID string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListAll"); err != nil {
		return nil, err
	}
	var out []models.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].PiggyBankID == piggyBankID {
			out = append(out, s.txs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- goals.Repository ---

func (s *Store) ListByPiggyBank(ctx context.Context, piggyBankID string) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListByPiggyBank"); err != nil {
		return nil, err
	}
	var out []models.Goal
	for _, g := range s.goals {
		if g.PiggyBankID == piggyBankID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Create(ctx context.Context, g *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Create"); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.goals[g.ID] = *g
	return nil
}

func (s *Store) Update(ctx context.Context, g *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Update"); err != nil {
		return err
	}
	cur, ok := s.goals[g.ID]
	if !ok || cur.PiggyBankID != g.PiggyBankID {
		return common.ErrorNotFound
	}
	s.goals[g.ID] = *g
	return nil
}

func (s *Store) Delete(ctx context.Context, piggyBankID, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Delete"); err != nil {
		return err
	}
	cur, ok := s.goals[goalID]
	if !ok || cur.PiggyBankID != piggyBankID {
		return common.ErrorNotFound
	}
	delete(s.goals, goalID)
	return nil
}

// --- guests.Repository ---

func (s *Store) Issue(ctx context.Context, piggyBankID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Issue"); err != nil {
		return err
	}
	s.grants = append(s.grants, models.GuestGrant{PiggyBankID: piggyBankID, AccessCode: code, CreatedAt: s.clock.Now()})
	return nil
}

func (s *Store) FindPiggyBankByCode(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindPiggyBankByCode"); err != nil {
		return "", err
	}
	for _, g := range s.grants {
		if g.AccessCode == code {
			return g.PiggyBankID, nil
		}
	}
	return "", common.ErrInvalidCode
}

func (s *Store) Grant(ctx context.Context, piggyBankID, userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Grant"); err != nil {
		return err
	}
	for _, g := range s.grants {
		if g.PiggyBankID == piggyBankID && g.UserID != nil && *g.UserID == userID {
			return nil
		}
	}
	u := userID
	s.grants = append(s.grants, models.GuestGrant{PiggyBankID: piggyBankID, UserID: &u, AccessCode: code, CreatedAt: s.clock.Now()})
	return nil
}

func (s *Store) ListPiggyBankIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPiggyBankIDs"); err != nil {
		return nil, err
	}
	var ids []string
	for _, g := range s.grants {
		if g.UserID != nil && *g.UserID == userID {
			ids = append(ids, g.PiggyBankID)
		}
	}
	return ids, nil
}

func (s *Store) IsGuest(ctx context.Context, piggyBankID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("IsGuest"); err != nil {
		return false, err
	}
	for _, g := range s.grants {
		if g.PiggyBankID == piggyBankID && g.UserID != nil && *g.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Revoke(ctx context.Context, piggyBankID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Revoke"); err != nil {
		return err
	}
	kept := s.grants[:0]
	removed := false
	for _, g := range s.grants {
		if g.PiggyBankID == piggyBankID && g.UserID != nil && *g.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
	if !removed {
		return common.ErrorNotFound
	}
	return nil
}

func (s *Store) RevokeAll(ctx context.Context, piggyBankID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RevokeAll"); err != nil {
		return 0, err
	}
	kept := s.grants[:0]
	var n int64
	for _, g := range s.grants {
		if g.PiggyBankID == piggyBankID {
			n++
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
	return n, nil
}

// --- repomanager.RepositoryManager ---

// Manager adapts the store to repomanager.RepositoryManager; every DBTX
// resolves to the same in-memory state.
type Manager struct{ *Store }

var _ repomanager.RepositoryManager = Manager{}

func (m Manager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m Manager) PiggyBanks(dbx.DBTX) piggybanks.Repository     { return m.Store }
func (m Manager) Transactions(dbx.DBTX) transactions.Repository { return m.Store }
func (m Manager) Goals(dbx.DBTX) goals.Repository               { return m.Store }
func (m Manager) Guests(dbx.DBTX) guests.Repository             { return m.Store }
