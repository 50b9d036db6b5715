package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

type AccountService interface {
	GetAccount(ctx context.Context, userID, accountID int64) (*models.Account, error)
	OwnsTarget(ctx context.Context, userID, categoryID int64, platformType models.PlatformType, platformID int64) (bool, error)
}

type accountService struct {
	guard *storage.Guard
	ar    repository.AccountRepository
	cr    repository.CategoryRepository
	pcr   repository.ConnectionRepository
}

func NewAccountService(guard *storage.Guard, ar repository.AccountRepository, cr repository.CategoryRepository, pcr repository.ConnectionRepository) AccountService {
	return &accountService{
		guard: guard,
		ar:    ar,
		cr:    cr,
		pcr:   pcr,
	}
}

// GetAccount returns the account with its connections grouped by platform.
func (s *accountService) GetAccount(ctx context.Context, userID, accountID int64) (*models.Account, error) {
	account, err := storage.Run(ctx, s.guard, "account.get", func(ctx context.Context, tx *sqlx.Tx) (*models.Account, error) {
		account, found, err := s.ar.GetByID(ctx, tx, accountID)
		if err != nil || !found {
			return nil, err
		}
		account.Connections, err = s.pcr.ListByAccount(ctx, tx, account.ID)
		return account, err
	}).Result()
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrTargetUnavailable
	}
	if account.UserID != userID {
		return nil, ErrNotOwner
	}
	return account, nil
}

// OwnsTarget reports whether the category and the platform instance both
// belong to one account of userID.
func (s *accountService) OwnsTarget(ctx context.Context, userID, categoryID int64, platformType models.PlatformType, platformID int64) (bool, error) {
	return storage.Run(ctx, s.guard, "account.owns_target", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		category, found, err := s.cr.GetByID(ctx, tx, categoryID)
		if err != nil || !found {
			return false, err
		}
		account, found, err := s.ar.GetByID(ctx, tx, category.AccountID)
		if err != nil || !found || account.UserID != userID {
			return false, err
		}
		connection, found, err := s.pcr.GetByID(ctx, tx, platformID)
		if err != nil || !found {
			return false, err
		}
		return connection.AccountID == account.ID && connection.PlatformType == platformType, nil
	}).Result()
}
