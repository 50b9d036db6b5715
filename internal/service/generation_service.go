package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
	"github.com/maheshrc27/autopost/internal/transfer"
)

type GenerationService interface {
	Generate(ctx context.Context, userID int64, req *transfer.GenerateRequest) (*transfer.GenerateResponse, error)
}

type generationService struct {
	guard     *storage.Guard
	cr        repository.CategoryRepository
	ar        repository.AccountRepository
	ledger    LedgerService
	generator ContentGenerator
	archive   ImageArchive
}

func NewGenerationService(
	guard *storage.Guard,
	cr repository.CategoryRepository,
	ar repository.AccountRepository,
	ledger LedgerService,
	generator ContentGenerator,
	archive ImageArchive) GenerationService {
	return &generationService{
		guard:     guard,
		cr:        cr,
		ar:        ar,
		ledger:    ledger,
		generator: generator,
		archive:   archive,
	}
}

// Generate bills the requested operations up front and refunds them all if
// any of them fails. Nothing external is called when the balance is short.
func (s *generationService) Generate(ctx context.Context, userID int64, req *transfer.GenerateRequest) (*transfer.GenerateResponse, error) {
	var ops []Operation
	if req.Text {
		ops = append(ops, OpText)
	}
	if req.Image {
		ops = append(ops, OpImage)
	}
	if req.Keywords {
		ops = append(ops, OpKeywords)
	}
	if len(ops) == 0 {
		return nil, errors.New("nothing to generate")
	}

	category, err := s.ownedCategory(ctx, userID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	cost := s.ledger.Pricing().Cost(ops...)
	resp := &transfer.GenerateResponse{}

	err = s.ledger.Spend(ctx, userID, "generate", cost, func(ctx context.Context) error {
		if req.Text {
			text, err := s.generator.GenerateText(ctx, category)
			if err != nil {
				return fmt.Errorf("generate text: %w", err)
			}
			resp.Text = text
		}
		if req.Image {
			image, err := s.generator.GenerateImage(ctx, category, resp.Text)
			if err != nil {
				return fmt.Errorf("generate image: %w", err)
			}
			if s.archive == nil {
				return errors.New("image storage is not configured")
			}
			url, err := s.archive.ArchiveImage(ctx, userID, image)
			if err != nil {
				return fmt.Errorf("store image: %w", err)
			}
			resp.ImageURL = url
		}
		if req.Keywords {
			keywords, err := s.generator.CollectKeywords(ctx, category)
			if err != nil {
				return fmt.Errorf("collect keywords: %w", err)
			}
			resp.Keywords = keywords
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.TokensSpent = cost
	if balance, err := s.ledger.Balance(ctx, userID); err == nil {
		resp.Balance = balance
	}
	return resp, nil
}

func (s *generationService) ownedCategory(ctx context.Context, userID, categoryID int64) (*models.Category, error) {
	out := storage.Run(ctx, s.guard, "generate.category", func(ctx context.Context, tx *sqlx.Tx) (*models.Category, error) {
		category, found, err := s.cr.GetByID(ctx, tx, categoryID)
		if err != nil || !found {
			return nil, err
		}
		account, found, err := s.ar.GetByID(ctx, tx, category.AccountID)
		if err != nil || !found {
			return nil, err
		}
		if account.UserID != userID {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalid, ErrNotOwner)
		}
		return category, nil
	})
	category, err := out.Result()
	if err != nil {
		if errors.Is(err, ErrNotOwner) {
			return nil, ErrNotOwner
		}
		return nil, err
	}
	if category == nil {
		return nil, ErrTargetUnavailable
	}
	return category, nil
}
