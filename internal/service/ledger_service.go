package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/metrics"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

type Operation string

const (
	OpText     Operation = "text"
	OpImage    Operation = "image"
	OpKeywords Operation = "keywords"
)

type Pricing struct {
	Text     int64
	Image    int64
	Keywords int64
}

func (p Pricing) Price(op Operation) int64 {
	switch op {
	case OpText:
		return p.Text
	case OpImage:
		return p.Image
	case OpKeywords:
		return p.Keywords
	}
	return 0
}

func (p Pricing) Cost(ops ...Operation) int64 {
	var total int64
	for _, op := range ops {
		total += p.Price(op)
	}
	return total
}

// LedgerService meters billable work in integer tokens. Debits are
// conditional on the balance covering them, so the balance never goes
// negative and two concurrent spends cannot both pass on the same tokens.
type LedgerService interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Debit(ctx context.Context, userID, amount int64) error
	Credit(ctx context.Context, userID, amount int64) error
	Spend(ctx context.Context, userID int64, label string, cost int64, fn func(ctx context.Context) error) error
	TopUp(ctx context.Context, userID, amount int64, reference string) (bool, error)
	Pricing() Pricing
}

type ledgerService struct {
	guard   *storage.Guard
	br      repository.BalanceRepository
	welcome int64
	pricing Pricing
}

func NewLedgerService(cfg config.Config, guard *storage.Guard, br repository.BalanceRepository) LedgerService {
	return &ledgerService{
		guard:   guard,
		br:      br,
		welcome: cfg.WelcomeTokens,
		pricing: Pricing{Text: cfg.Pricing.Text, Image: cfg.Pricing.Image, Keywords: cfg.Pricing.Keywords},
	}
}

func (s *ledgerService) Pricing() Pricing { return s.pricing }

func (s *ledgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	out := storage.Run(ctx, s.guard, "ledger.balance", func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		if err := s.br.Init(ctx, tx, userID, s.welcome); err != nil {
			return 0, err
		}
		balance, _, err := s.br.Get(ctx, tx, userID)
		return balance, err
	})
	if !out.OK() {
		return 0, out.Err()
	}
	return max(out.Value, 0), nil
}

func (s *ledgerService) Debit(ctx context.Context, userID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit of negative amount %d", amount)
	}
	if amount == 0 {
		return nil
	}

	out := storage.Run(ctx, s.guard, "ledger.debit", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		if err := s.br.Init(ctx, tx, userID, s.welcome); err != nil {
			return false, err
		}
		return s.br.Debit(ctx, tx, userID, amount)
	})
	if !out.OK() {
		return out.Err()
	}
	if !out.Value {
		return ErrInsufficientTokens
	}
	metrics.AddTokensDebited(amount)
	return nil
}

func (s *ledgerService) Credit(ctx context.Context, userID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit of negative amount %d", amount)
	}
	if amount == 0 {
		return nil
	}

	out := storage.Run(ctx, s.guard, "ledger.credit", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		if err := s.br.Init(ctx, tx, userID, s.welcome); err != nil {
			return false, err
		}
		return s.br.Credit(ctx, tx, userID, amount)
	})
	if !out.OK() {
		return out.Err()
	}
	if !out.Value {
		return fmt.Errorf("credit user %d: no balance row", userID)
	}
	return nil
}

// Spend checks the balance, debits cost, runs fn and credits cost back if
// fn fails or panics. A panic is returned as an error.
func (s *ledgerService) Spend(ctx context.Context, userID int64, label string, cost int64, fn func(ctx context.Context) error) (err error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < cost {
		metrics.IncInsufficientBalance(label)
		return ErrInsufficientTokens
	}
	if err := s.Debit(ctx, userID, cost); err != nil {
		if errors.Is(err, ErrInsufficientTokens) {
			metrics.IncInsufficientBalance(label)
		}
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", label, p)
		}
		if err == nil {
			return
		}
		if rerr := s.Credit(context.WithoutCancel(ctx), userID, cost); rerr != nil {
			slog.Error("refund failed", "user_id", userID, "operation", label, "cost", cost, "error", rerr)
			err = errors.Join(err, fmt.Errorf("refund: %w", rerr))
			return
		}
		metrics.IncRefund(label)
		slog.Info("refunded tokens", "user_id", userID, "operation", label, "cost", cost)
	}()

	return fn(ctx)
}

// TopUp credits a paid package once per payment reference.
func (s *ledgerService) TopUp(ctx context.Context, userID, amount int64, reference string) (bool, error) {
	if amount <= 0 || reference == "" {
		return false, fmt.Errorf("top-up needs a positive amount and a reference")
	}

	out := storage.Run(ctx, s.guard, "ledger.top_up", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		fresh, err := s.br.RecordTopUp(ctx, tx, &models.TokenTopUp{UserID: userID, Amount: amount, Reference: reference})
		if err != nil || !fresh {
			return false, err
		}
		if err := s.br.Init(ctx, tx, userID, s.welcome); err != nil {
			return false, err
		}
		return s.br.Credit(ctx, tx, userID, amount)
	})
	if !out.OK() {
		return false, out.Err()
	}
	return out.Value, nil
}
