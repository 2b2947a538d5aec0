package piggybank

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/models"
)

func (s *Service) checkGoal(in *models.GoalInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidGoal, err)
	}
	if !in.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target must be positive", common.ErrInvalidGoal)
	}
	if in.SavedAmount.IsNegative() {
		return fmt.Errorf("%w: saved amount must not be negative", common.ErrInvalidGoal)
	}
	return nil
}

func (s *Service) sealGoal(g *models.Goal, in models.GoalInput) error {
	target, err := s.cipher.Encrypt(in.TargetAmount)
	if err != nil {
		return err
	}
	saved, err := s.cipher.Encrypt(in.SavedAmount)
	if err != nil {
		return err
	}
	g.Title = in.Title
	g.TargetAmount = target
	g.SavedAmount = saved
	g.AllocationPercent = in.AllocationPercent
	return nil
}

func goalView(g *models.Goal, in models.GoalInput) *models.GoalView {
	return &models.GoalView{
		ID:                g.ID,
		Title:             g.Title,
		TargetAmount:      in.TargetAmount,
		SavedAmount:       in.SavedAmount,
		AllocationPercent: g.AllocationPercent,
	}
}

func (s *Service) AddGoal(ctx context.Context, userID, piggyBankID string, in models.GoalInput) (*models.GoalView, error) {
	if _, err := s.requireOwner(ctx, userID, piggyBankID); err != nil {
		return nil, err
	}
	if err := s.checkGoal(&in); err != nil {
		return nil, err
	}
	g := &models.Goal{PiggyBankID: piggyBankID}
	if err := s.sealGoal(g, in); err != nil {
		return nil, err
	}
	if err := s.repomanager.Goals(s.db).Create(ctx, g); err != nil {
		return nil, err
	}
	return goalView(g, in), nil
}

func (s *Service) UpdateGoal(ctx context.Context, userID, piggyBankID, goalID string, in models.GoalInput) (*models.GoalView, error) {
	if _, err := s.requireOwner(ctx, userID, piggyBankID); err != nil {
		return nil, err
	}
	if err := s.checkGoal(&in); err != nil {
		return nil, err
	}
	g := &models.Goal{ID: goalID, PiggyBankID: piggyBankID}
	if err := s.sealGoal(g, in); err != nil {
		return nil, err
	}
	if err := s.repomanager.Goals(s.db).Update(ctx, g); err != nil {
		return nil, err
	}
	return goalView(g, in), nil
}

func (s *Service) DeleteGoal(ctx context.Context, userID, piggyBankID, goalID string) error {
	if _, err := s.requireOwner(ctx, userID, piggyBankID); err != nil {
		return err
	}
	return s.repomanager.Goals(s.db).Delete(ctx, piggyBankID, goalID)
}
