package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/metrics"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

// Notifier delivers a text message to a user's chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type NotificationService interface {
	Get(ctx context.Context, userID int64, kind models.NotificationKind) storage.Outcome[*models.NotificationSchedule]
	Save(ctx context.Context, userID int64, kind models.NotificationKind, n *models.NotificationSchedule) storage.Outcome[bool]
	ListDue(ctx context.Context, weekday, hhmm string) storage.Outcome[[]*models.NotificationSchedule]
	Deliver(ctx context.Context, userID int64, kind models.NotificationKind, at time.Time) (bool, error)
}

type notificationService struct {
	guard    *storage.Guard
	nr       repository.NotificationRepository
	ur       repository.UserRepository
	prr      repository.PublishRecordRepository
	ledger   LedgerService
	notifier Notifier
}

func NewNotificationService(
	guard *storage.Guard,
	nr repository.NotificationRepository,
	ur repository.UserRepository,
	prr repository.PublishRecordRepository,
	ledger LedgerService,
	notifier Notifier) NotificationService {
	return &notificationService{
		guard:    guard,
		nr:       nr,
		ur:       ur,
		prr:      prr,
		ledger:   ledger,
		notifier: notifier,
	}
}

func (s *notificationService) Get(ctx context.Context, userID int64, kind models.NotificationKind) storage.Outcome[*models.NotificationSchedule] {
	return storage.Run(ctx, s.guard, "notification.get", func(ctx context.Context, tx *sqlx.Tx) (*models.NotificationSchedule, error) {
		n, _, err := s.nr.GetByUserKind(ctx, tx, userID, kind)
		return n, err
	})
}

func (s *notificationService) Save(ctx context.Context, userID int64, kind models.NotificationKind, n *models.NotificationSchedule) storage.Outcome[bool] {
	if !kind.Valid() {
		return storage.Failed[bool]("notification.save", storage.KindInvalid, fmt.Errorf("%w: unknown notification kind %q", storage.ErrInvalid, kind))
	}

	normalized := *n
	if err := normalized.Normalize(); err != nil {
		return storage.Failed[bool]("notification.save", storage.KindInvalid, fmt.Errorf("%w: %v", storage.ErrInvalid, err))
	}
	normalized.UserID, normalized.Kind = userID, kind

	return storage.Run(ctx, s.guard, "notification.save", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		if _, err := s.nr.Upsert(ctx, tx, &normalized); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *notificationService) ListDue(ctx context.Context, weekday, hhmm string) storage.Outcome[[]*models.NotificationSchedule] {
	day, err := models.NormalizeDay(weekday)
	if err != nil {
		return storage.Failed[[]*models.NotificationSchedule]("notification.list_due", storage.KindInvalid, fmt.Errorf("%w: %v", storage.ErrInvalid, err))
	}
	return storage.Run(ctx, s.guard, "notification.list_due", func(ctx context.Context, tx *sqlx.Tx) ([]*models.NotificationSchedule, error) {
		return s.nr.ListDue(ctx, tx, day, hhmm)
	})
}

// Deliver builds and sends one notification. It reports false when there
// was nothing worth sending.
func (s *notificationService) Deliver(ctx context.Context, userID int64, kind models.NotificationKind, at time.Time) (bool, error) {
	user, err := storage.Run(ctx, s.guard, "notification.user", func(ctx context.Context, tx *sqlx.Tx) (*models.User, error) {
		u, _, err := s.ur.GetByID(ctx, tx, userID)
		return u, err
	}).Result()
	if err != nil {
		return false, err
	}
	if user == nil || user.TelegramChatID == 0 {
		return false, nil
	}

	var text string
	switch kind {
	case models.NotificationDigest:
		text, err = s.digest(ctx, userID, at)
	case models.NotificationLowBalance:
		text, err = s.lowBalance(ctx, userID)
	default:
		return false, fmt.Errorf("unknown notification kind %q", kind)
	}
	if err != nil || text == "" {
		return false, err
	}

	if err := s.notifier.Notify(ctx, user.TelegramChatID, text); err != nil {
		return false, fmt.Errorf("notify user %d: %w", userID, err)
	}
	metrics.IncNotificationSent(string(kind))
	return true, nil
}

func (s *notificationService) digest(ctx context.Context, userID int64, at time.Time) (string, error) {
	records, err := storage.Run(ctx, s.guard, "notification.digest", func(ctx context.Context, tx *sqlx.Tx) ([]*models.PublishRecord, error) {
		return s.prr.List(ctx, tx, models.PublishRecordFilter{UserID: userID, Since: at.Add(-24 * time.Hour)})
	}).Result()
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	var published, failed int
	var spent int64
	var links []string
	for _, r := range records {
		if !r.Success {
			failed++
			continue
		}
		published++
		spent += r.TokensSpent
		if r.PostURL != "" && len(links) < 5 {
			links = append(links, fmt.Sprintf("%s: %s", r.PlatformType, r.PostURL))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last 24 hours: %d published, %d failed, %d tokens spent.", published, failed, spent)
	for _, l := range links {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String(), nil
}

func (s *notificationService) lowBalance(ctx context.Context, userID int64) (string, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return "", err
	}
	price := s.ledger.Pricing().Price(OpText)
	if balance >= price {
		return "", nil
	}
	return fmt.Sprintf("Your balance is %d tokens. A text post costs %d, so scheduled posts are paused until you top up.", balance, price), nil
}
