// Package piggybank implements the user-facing operations on piggy banks:
// recording transactions, claiming, guests, goals and reset. Every operation
// resolves the caller's role first; guests may read and deposit, everything
// else is reserved to the owner. Realtime notifications are raised by the
// database on commit, so nothing here publishes.
package piggybank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/cryptox"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ViewLoader is the part of the aggregate loader the service needs.
type ViewLoader interface {
	LoadPiggyBank(ctx context.Context, record *models.PiggyBank, role models.Role, mode models.LoadMode) (*models.PiggyBankView, error)
	LoadForUser(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error)
	TotalBalance(ctx context.Context, userID string) (models.Total, bool, error)
}

type Syncer interface {
	SyncBalance(ctx context.Context, piggyBankID string) (decimal.Decimal, error)
}

type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	loader      ViewLoader
	syncer      Syncer
	cipher      cryptox.Cipher
	log         logging.Logger
	validate    *validator.Validate
	now         func() time.Time
}

func NewService(db *sql.DB, rm repomanager.RepositoryManager, loader ViewLoader, syncer Syncer,
	cipher cryptox.Cipher, log logging.Logger) *Service {
	return &Service{
		db:          db,
		repomanager: rm,
		loader:      loader,
		syncer:      syncer,
		cipher:      cipher,
		log:         log,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// ResolveRole loads the piggy bank and the caller's role on it. A user who
// is neither owner nor guest gets ErrorForbidden.
func (s *Service) ResolveRole(ctx context.Context, userID, piggyBankID string) (*models.PiggyBank, models.Role, error) {
	pb, err := s.repomanager.PiggyBanks(s.db).GetByID(ctx, piggyBankID)
	if err != nil {
		return nil, "", err
	}
	if pb.OwnedBy(userID) {
		return pb, models.RoleOwner, nil
	}
	ok, err := s.repomanager.Guests(s.db).IsGuest(ctx, piggyBankID, userID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", common.ErrorForbidden
	}
	return pb, models.RoleGuest, nil
}

func (s *Service) requireOwner(ctx context.Context, userID, piggyBankID string) (*models.PiggyBank, error) {
	pb, role, err := s.ResolveRole(ctx, userID, piggyBankID)
	if err != nil {
		return nil, err
	}
	if !role.CanManage() {
		return nil, common.ErrorForbidden
	}
	return pb, nil
}

func (s *Service) List(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error) {
	return s.loader.LoadForUser(ctx, userID, mode)
}

func (s *Service) Total(ctx context.Context, userID string) (models.Total, bool, error) {
	return s.loader.TotalBalance(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, piggyBankID string, mode models.LoadMode) (*models.PiggyBankView, error) {
	pb, role, err := s.ResolveRole(ctx, userID, piggyBankID)
	if err != nil {
		return nil, err
	}
	return s.loader.LoadPiggyBank(ctx, pb, role, mode)
}

// Sync reconciles the balance on demand. On ErrPersistFailed the returned
// amount is still the correct balance.
func (s *Service) Sync(ctx context.Context, userID, piggyBankID string) (decimal.Decimal, error) {
	if _, _, err := s.ResolveRole(ctx, userID, piggyBankID); err != nil {
		return decimal.Zero, err
	}
	return s.syncer.SyncBalance(ctx, piggyBankID)
}

// Record appends entries and returns the view with a freshly synced balance.
func (s *Service) Record(ctx context.Context, userID, piggyBankID string, entries []models.TransactionEntry) (*models.PiggyBankView, error) {
	pb, role, err := s.ResolveRole(ctx, userID, piggyBankID)
	if err != nil {
		return nil, err
	}
	if !role.CanManage() {
		for _, e := range entries {
			if e.Type != models.TransactionDeposit {
				return nil, fmt.Errorf("%w: guests may only deposit", common.ErrorForbidden)
			}
		}
	}

	if err := s.repomanager.Transactions(s.db).Append(ctx, piggyBankID, entries); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "transactions recorded", "piggy_bank_id", piggyBankID, "user_id", userID, "count", len(entries))

	return s.loader.LoadPiggyBank(ctx, pb, role, models.LoadSync)
}

// Claim links an unclaimed piggy bank to userID through its pairing code.
func (s *Service) Claim(ctx context.Context, userID, pairingCode string) (*models.PiggyBankView, error) {
	code := common.NormalizeCode(pairingCode)
	if code == "" {
		return nil, common.ErrInvalidCode
	}
	repo := s.repomanager.PiggyBanks(s.db)
	pb, err := repo.GetByPairingCode(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCode
		}
		return nil, err
	}
	if err := repo.SetOwner(ctx, pb.ID, userID); err != nil {
		return nil, err
	}
	owner := userID
	pb.UserID = &owner
	s.log.Info(ctx, "piggy bank claimed", "piggy_bank_id", pb.ID, "user_id", userID)

	return s.loader.LoadPiggyBank(ctx, pb, models.RoleOwner, models.LoadSync)
}

// IssueGuestCode creates a new access code for the piggy bank.
func (s *Service) IssueGuestCode(ctx context.Context, userID, piggyBankID string) (string, error) {
	if _, err := s.requireOwner(ctx, userID, piggyBankID); err != nil {
		return "", err
	}
	code, err := common.NewAccessCode()
	if err != nil {
		return "", err
	}
	if err := s.repomanager.Guests(s.db).Issue(ctx, piggyBankID, code); err != nil {
		return "", err
	}
	return code, nil
}

// JoinAsGuest redeems an access code. Owners cannot join their own piggy
// bank; joining twice is harmless.
func (s *Service) JoinAsGuest(ctx context.Context, userID, accessCode string) (*models.PiggyBankView, error) {
	code := common.NormalizeCode(accessCode)
	if code == "" {
		return nil, common.ErrInvalidCode
	}
	guests := s.repomanager.Guests(s.db)
	piggyBankID, err := guests.FindPiggyBankByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	pb, err := s.repomanager.PiggyBanks(s.db).GetByID(ctx, piggyBankID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCode
		}
		return nil, err
	}
	if pb.UserID == nil {
		return nil, common.ErrInvalidCode
	}
	if pb.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: owner cannot join as guest", common.ErrorForbidden)
	}
	if err := guests.Grant(ctx, piggyBankID, userID, code); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "guest joined", "piggy_bank_id", piggyBankID, "user_id", userID)
	return s.loader.LoadPiggyBank(ctx, pb, models.RoleGuest, models.LoadFast)
}

// Remove takes the piggy bank off the caller's dashboard. For the owner this
// resets it: balance zero, watermark now, owner and guests cleared. The
// transaction log is kept; its rows are all below the new watermark. A guest
// only gives up their grant.
func (s *Service) Remove(ctx context.Context, userID, piggyBankID string) error {
	_, role, err := s.ResolveRole(ctx, userID, piggyBankID)
	if err != nil {
		return err
	}
	if role == models.RoleGuest {
		return s.repomanager.Guests(s.db).Revoke(ctx, piggyBankID, userID)
	}

	zero, err := s.cipher.Encrypt(decimal.Zero)
	if err != nil {
		return err
	}
	watermark := s.now().UTC().Truncate(time.Microsecond)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.PiggyBanks(tx).Reset(ctx, piggyBankID, zero, watermark); err != nil {
			return err
		}
		_, err := s.repomanager.Guests(tx).RevokeAll(ctx, piggyBankID)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "piggy bank reset", "piggy_bank_id", piggyBankID, "user_id", userID)
	return nil
}

// RemoveAllGuests revokes every grant and outstanding code.
func (s *Service) RemoveAllGuests(ctx context.Context, userID, piggyBankID string) (int64, error) {
	if _, err := s.requireOwner(ctx, userID, piggyBankID); err != nil {
		return 0, err
	}
	return s.repomanager.Guests(s.db).RevokeAll(ctx, piggyBankID)
}

// Details are the editable presentation fields of a piggy bank.
type Details struct {
	Name  string `json:"name" validate:"required,max=60"`
	Color string `json:"color" validate:"max=32"`
}

func (s *Service) UpdateDetails(ctx context.Context, userID, piggyBankID string, d Details) (*models.PiggyBankView, error) {
	pb, err := s.requireOwner(ctx, userID, piggyBankID)
	if err != nil {
		return nil, err
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Color == "" {
		d.Color = pb.Color
	}
	if err := s.validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := s.repomanager.PiggyBanks(s.db).UpdateDetails(ctx, piggyBankID, d.Name, d.Color); err != nil {
		return nil, err
	}
	pb.Name, pb.Color = d.Name, d.Color
	return s.loader.LoadPiggyBank(ctx, pb, models.RoleOwner, models.LoadFast)
}
