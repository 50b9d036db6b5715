package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/transfer"
)

const EventPaymentPaid = "payment.paid"

type PaymentService interface {
	HandlePayment(ctx context.Context, payload *transfer.PaymentEvent) (bool, error)
}

type paymentService struct {
	cfg    config.Config
	ledger LedgerService
}

func NewPaymentService(cfg config.Config, ledger LedgerService) PaymentService {
	return &paymentService{
		cfg:    cfg,
		ledger: ledger,
	}
}

// HandlePayment credits the paid package. Redelivered events carry the same
// object id and are credited only once.
func (s *paymentService) HandlePayment(ctx context.Context, payload *transfer.PaymentEvent) (bool, error) {
	switch payload.EventType {
	case EventPaymentPaid:
		userID, err := strconv.ParseInt(payload.Object.Metadata.InternalCustomerID, 10, 64)
		if err != nil || userID <= 0 {
			err = errors.New("payment carries no customer id")
			slog.Info(err.Error())
			return false, err
		}

		quantity := payload.Object.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		amount := quantity * s.cfg.TokensPerUnit

		credited, err := s.ledger.TopUp(ctx, userID, amount, payload.Object.ID)
		if err != nil {
			return false, fmt.Errorf("top-up for user %d failed: %w", userID, err)
		}
		if credited {
			slog.Info("tokens topped up", "user_id", userID, "amount", amount, "reference", payload.Object.ID)
		}
		return credited, nil
	default:
		slog.Info("ignoring payment event", "type", payload.EventType)
		return false, nil
	}
}
