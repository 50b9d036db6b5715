package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/metrics"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/platform"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
	"github.com/maheshrc27/autopost/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Target names one platform instance to publish a category to.
type Target struct {
	CategoryID   int64               `json:"category_id"`
	PlatformType models.PlatformType `json:"platform_type"`
	PlatformID   int64               `json:"platform_id"`
}

type TriggerInfo struct {
	Trigger    models.Trigger
	ScheduleID int64
	Minute     time.Time
	SubTarget  string
}

type PublishStatus string

const (
	StatusPublished    PublishStatus = "published"
	StatusFailed       PublishStatus = "failed"
	StatusSkipped      PublishStatus = "skipped"
	StatusDuplicate    PublishStatus = "duplicate"
	StatusInsufficient PublishStatus = "insufficient"
)

type PublishOutcome struct {
	Status      PublishStatus
	URL         string
	TokensSpent int64
	Err         error
}

type PublishService interface {
	// Publish runs one publish job. Scheduled failures are only logged and
	// counted; the outcome is returned for callers that care.
	Publish(ctx context.Context, target Target, trigger TriggerInfo) *PublishOutcome
	// PublishNow is the on-demand path: the caller must own the category and
	// any failure comes back as an error after tokens were refunded.
	PublishNow(ctx context.Context, userID int64, target Target, subTarget string) (*PublishOutcome, error)
	History(ctx context.Context, filter models.PublishRecordFilter) ([]*models.PublishRecord, error)
}

type publishService struct {
	key       []byte
	instance  string
	guard     *storage.Guard
	cr        repository.CategoryRepository
	ar        repository.AccountRepository
	pcr       repository.ConnectionRepository
	clr       repository.ClaimRepository
	prr       repository.PublishRecordRepository
	ledger    LedgerService
	generator ContentGenerator
	archive   ImageArchive
	registry  *platform.Registry
	clock     clock.Clock
}

func NewPublishService(
	cfg config.Config,
	guard *storage.Guard,
	cr repository.CategoryRepository,
	ar repository.AccountRepository,
	pcr repository.ConnectionRepository,
	clr repository.ClaimRepository,
	prr repository.PublishRecordRepository,
	ledger LedgerService,
	generator ContentGenerator,
	archive ImageArchive,
	registry *platform.Registry,
	clk clock.Clock) PublishService {
	instance, err := gonanoid.New()
	if err != nil {
		instance = fmt.Sprintf("pid-%d", time.Now().UnixNano())
	}
	return &publishService{
		key:       []byte(cfg.SecretKey),
		instance:  instance,
		guard:     guard,
		cr:        cr,
		ar:        ar,
		pcr:       pcr,
		clr:       clr,
		prr:       prr,
		ledger:    ledger,
		generator: generator,
		archive:   archive,
		registry:  registry,
		clock:     clk,
	}
}

// resolved is everything a job needs from storage before it spends tokens.
type resolved struct {
	owner      *models.Owner
	connection *models.PlatformConnection
	missing    string
}

func (s *publishService) Publish(ctx context.Context, target Target, trigger TriggerInfo) *PublishOutcome {
	return s.run(ctx, 0, target, trigger)
}

func (s *publishService) PublishNow(ctx context.Context, userID int64, target Target, subTarget string) (*PublishOutcome, error) {
	out := s.run(ctx, userID, target, TriggerInfo{Trigger: models.TriggerManual, Minute: s.clock.Now(), SubTarget: subTarget})

	switch out.Status {
	case StatusPublished:
		return out, nil
	case StatusInsufficient:
		return out, ErrInsufficientTokens
	case StatusSkipped:
		return out, out.Err
	default:
		return out, fmt.Errorf("%w: %v", ErrPublishFailed, out.Err)
	}
}

func (s *publishService) History(ctx context.Context, filter models.PublishRecordFilter) ([]*models.PublishRecord, error) {
	if filter.Limit == 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return storage.Run(ctx, s.guard, "publish.history", func(ctx context.Context, tx *sqlx.Tx) ([]*models.PublishRecord, error) {
		return s.prr.List(ctx, tx, filter)
	}).Result()
}

// run executes a publish job. expectedUser is checked against the category
// owner when non-zero.
func (s *publishService) run(ctx context.Context, expectedUser int64, target Target, trigger TriggerInfo) *PublishOutcome {
	started := s.clock.Now()
	log := slog.With(
		"category_id", target.CategoryID,
		"platform", target.PlatformType,
		"platform_id", target.PlatformID,
		"trigger", trigger.Trigger,
	)

	res, err := s.resolve(ctx, target)
	if err != nil {
		log.Error("publish target lookup failed", "error", err)
		return &PublishOutcome{Status: StatusSkipped, Err: fmt.Errorf("%w: %v", ErrTargetUnavailable, err)}
	}
	if res.missing != "" {
		log.Warn("publish target unavailable", "reason", res.missing)
		return &PublishOutcome{Status: StatusSkipped, Err: fmt.Errorf("%w: %s", ErrTargetUnavailable, res.missing)}
	}
	if expectedUser != 0 && res.owner.UserID != expectedUser {
		return &PublishOutcome{Status: StatusSkipped, Err: ErrNotOwner}
	}

	var creds models.Credentials
	if err := utils.OpenJSON(res.connection.Credentials, s.key, &creds); err != nil || creds.Empty() {
		log.Warn("publish target has no usable credentials")
		return &PublishOutcome{Status: StatusSkipped, Err: fmt.Errorf("%w: credentials unavailable", ErrTargetUnavailable)}
	}

	if trigger.Trigger == models.TriggerScheduled {
		claimed, err := s.claim(ctx, trigger)
		if err != nil {
			log.Error("claiming scheduled publish failed", "error", err)
			return &PublishOutcome{Status: StatusSkipped, Err: err}
		}
		if !claimed {
			log.Info("scheduled publish already claimed", "schedule_id", trigger.ScheduleID, "minute", models.MinuteKey(trigger.Minute))
			metrics.IncPublishDuplicate()
			return &PublishOutcome{Status: StatusDuplicate, Err: ErrAlreadyClaimed}
		}
	}

	pricing := s.ledger.Pricing()
	ops := []Operation{OpText}
	if res.owner.Category.GenerateImage {
		ops = append(ops, OpImage)
	}
	cost := pricing.Cost(ops...)

	var url string
	err = s.ledger.Spend(ctx, res.owner.UserID, "publish", cost, func(ctx context.Context) error {
		var perr error
		url, perr = s.generateAndPublish(ctx, res, &creds, trigger)
		return perr
	})

	record := &models.PublishRecord{
		UserID:       res.owner.UserID,
		CategoryID:   target.CategoryID,
		PlatformType: target.PlatformType,
		PlatformID:   target.PlatformID,
		Trigger:      trigger.Trigger,
		CreatedAt:    s.clock.Now(),
	}
	if trigger.ScheduleID != 0 {
		record.ScheduleID = sql.NullInt64{Int64: trigger.ScheduleID, Valid: true}
	}

	out := &PublishOutcome{}
	switch {
	case err == nil:
		record.Success, record.TokensSpent, record.PostURL = true, cost, url
		out.Status, out.URL, out.TokensSpent = StatusPublished, url, cost
		log.Info("published", "url", url, "tokens", cost)
	case errors.Is(err, ErrInsufficientTokens):
		record.ErrorMessage = err.Error()
		out.Status, out.Err = StatusInsufficient, err
		log.Warn("publish skipped for balance", "user_id", res.owner.UserID, "cost", cost)
	default:
		record.ErrorMessage = err.Error()
		out.Status, out.Err = StatusFailed, err
		log.Error("publish failed", "error", err)
	}

	rec := storage.Run(context.WithoutCancel(ctx), s.guard, "publish.record", func(ctx context.Context, tx *sqlx.Tx) (int64, error) {
		return s.prr.Create(ctx, tx, record)
	})
	if !rec.OK() {
		log.Error("recording publish attempt failed", "error", rec.Err())
	}

	metrics.ObservePublish(string(target.PlatformType), string(trigger.Trigger), out.Status == StatusPublished, s.clock.Now().Sub(started))
	return out
}

func (s *publishService) resolve(ctx context.Context, target Target) (*resolved, error) {
	out := storage.Run(ctx, s.guard, "publish.resolve", func(ctx context.Context, tx *sqlx.Tx) (*resolved, error) {
		category, found, err := s.cr.GetByID(ctx, tx, target.CategoryID)
		if err != nil {
			return nil, err
		}
		if !found {
			return &resolved{missing: "category not found"}, nil
		}
		account, found, err := s.ar.GetByID(ctx, tx, category.AccountID)
		if err != nil {
			return nil, err
		}
		if !found {
			return &resolved{missing: "account not found"}, nil
		}
		connection, found, err := s.pcr.GetByID(ctx, tx, target.PlatformID)
		if err != nil {
			return nil, err
		}
		switch {
		case !found:
			return &resolved{missing: "platform connection not found"}, nil
		case connection.AccountID != account.ID:
			return &resolved{missing: "platform connection belongs to another account"}, nil
		case connection.PlatformType != target.PlatformType:
			return &resolved{missing: "platform type mismatch"}, nil
		case !connection.IsActive:
			return &resolved{missing: "platform connection is inactive"}, nil
		case connection.Credentials == "":
			return &resolved{missing: "platform connection has no credentials"}, nil
		}
		return &resolved{
			owner:      &models.Owner{UserID: account.UserID, Account: account, Category: category},
			connection: connection,
		}, nil
	})
	return out.Result()
}

func (s *publishService) claim(ctx context.Context, trigger TriggerInfo) (bool, error) {
	out := storage.Run(ctx, s.guard, "publish.claim", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		return s.clr.Claim(ctx, tx, &models.PublishClaim{
			ScheduleID: trigger.ScheduleID,
			MinuteKey:  models.MinuteKey(trigger.Minute),
			Owner:      s.instance,
			ClaimedAt:  s.clock.Now(),
		})
	})
	return out.Result()
}

func (s *publishService) generateAndPublish(ctx context.Context, res *resolved, creds *models.Credentials, trigger TriggerInfo) (string, error) {
	category := res.owner.Category

	text, err := s.generator.GenerateText(ctx, category)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}

	var image []byte
	var imageURL string
	if category.GenerateImage {
		image, err = s.generator.GenerateImage(ctx, category, text)
		if err != nil {
			return "", fmt.Errorf("generate image: %w", err)
		}
		if s.archive != nil {
			if imageURL, err = s.archive.ArchiveImage(ctx, res.owner.UserID, image); err != nil {
				slog.Warn("archiving generated image failed", "user_id", res.owner.UserID, "error", err)
				imageURL = ""
			}
		}
	}

	result := s.registry.Publish(ctx, res.connection.PlatformType, &platform.Request{
		Text:     text,
		Image:    image,
		ImageURL: imageURL,
		Routing: platform.Routing{
			ExternalID: res.connection.ExternalID,
			SubTarget:  trigger.SubTarget,
		},
		Credentials: creds,
	})
	if !result.Success {
		if result.Err != nil {
			return "", result.Err
		}
		return "", errors.New("publisher reported failure")
	}
	return result.URL, nil
}
