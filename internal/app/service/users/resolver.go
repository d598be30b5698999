// Package users resolves a payment identity (email plus optional checkout
// metadata user id) to an internal user, creating one when absent.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/logctx"
	"github.com/ship-kit/billing/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// ResolveOrCreate maps a purchase identity to a user id. Lookup order:
//
//  1. metadataUserID, when present and resolvable — covers checkouts where
//     the purchaser used a different email than their account;
//  2. email;
//  3. create a new user with the given email and name.
//
// The unique index on email makes concurrent creates collapse to one row.
// Existing users are never mutated from webhook data.
func (s *Service) ResolveOrCreate(ctx context.Context, email, displayName, metadataUserID string) (*models.User, bool, error) {
	if metadataUserID != "" {
		var user models.User
		err := s.db.WithContext(ctx).Where("id = ?", metadataUserID).First(&user).Error
		if err == nil {
			return &user, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("failed to look up user by metadata id: %w", err)
		}
		logctx.FromCtx(ctx, s.log).Warnw("metadata user id did not resolve",
			"metadata_user_id", metadataUserID)
	}

	if email == "" {
		return nil, false, fmt.Errorf("cannot resolve user: no email on event")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up user by email: %w", err)
	}

	created := &models.User{
		ID:    tool.GenerateUUIDV7(),
		Email: email,
	}
	if displayName != "" {
		created.Name = lo.ToPtr(displayName)
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(created)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a create race; the winner's row is authoritative.
		if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
			return nil, false, fmt.Errorf("failed to reload user after conflict: %w", err)
		}
		return &user, false, nil
	}

	logctx.FromCtx(ctx, s.log).Infow("user_created_from_webhook", "user_id", created.ID)
	return created, true, nil
}

// FindByID loads a user by internal id.
func (s *Service) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
