package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

// ScheduleService is the schedule store. Every method returns an Outcome;
// a failed outcome carries the zero value, which callers read as "not
// configured" and "disabled" alike.
type ScheduleService interface {
	Get(ctx context.Context, categoryID int64, platformType models.PlatformType, platformID int64) storage.Outcome[*models.PlatformSchedule]
	Save(ctx context.Context, categoryID int64, platformType models.PlatformType, platformID int64, s *models.PlatformSchedule) storage.Outcome[bool]
	ListDue(ctx context.Context, weekday, hhmm string) storage.Outcome[[]*models.PlatformSchedule]
}

type scheduleService struct {
	guard *storage.Guard
	sr    repository.ScheduleRepository
}

func NewScheduleService(guard *storage.Guard, sr repository.ScheduleRepository) ScheduleService {
	return &scheduleService{guard: guard, sr: sr}
}

func (s *scheduleService) Get(ctx context.Context, categoryID int64, platformType models.PlatformType, platformID int64) storage.Outcome[*models.PlatformSchedule] {
	return storage.Run(ctx, s.guard, "schedule.get", func(ctx context.Context, tx *sqlx.Tx) (*models.PlatformSchedule, error) {
		schedule, _, err := s.sr.GetByKey(ctx, tx, categoryID, platformType, platformID)
		return schedule, err
	})
}

func (s *scheduleService) Save(ctx context.Context, categoryID int64, platformType models.PlatformType, platformID int64, schedule *models.PlatformSchedule) storage.Outcome[bool] {
	if schedule == nil {
		return storage.Failed[bool]("schedule.save", storage.KindInvalid, fmt.Errorf("%w: schedule is nil", storage.ErrInvalid))
	}
	if !platformType.Valid() {
		return storage.Failed[bool]("schedule.save", storage.KindInvalid, fmt.Errorf("%w: unknown platform %q", storage.ErrInvalid, platformType))
	}

	normalized := *schedule
	if err := normalized.Normalize(); err != nil {
		return storage.Failed[bool]("schedule.save", storage.KindInvalid, fmt.Errorf("%w: %v", storage.ErrInvalid, err))
	}
	normalized.CategoryID, normalized.PlatformType, normalized.PlatformID = categoryID, platformType, platformID

	out := storage.Run(ctx, s.guard, "schedule.save", func(ctx context.Context, tx *sqlx.Tx) (bool, error) {
		if _, err := s.sr.Upsert(ctx, tx, &normalized); err != nil {
			return false, err
		}
		return true, nil
	})
	if out.OK() {
		*schedule = normalized
	}
	return out
}

func (s *scheduleService) ListDue(ctx context.Context, weekday, hhmm string) storage.Outcome[[]*models.PlatformSchedule] {
	day, err := models.NormalizeDay(weekday)
	if err != nil {
		return storage.Failed[[]*models.PlatformSchedule]("schedule.list_due", storage.KindInvalid, fmt.Errorf("%w: %v", storage.ErrInvalid, err))
	}
	return storage.Run(ctx, s.guard, "schedule.list_due", func(ctx context.Context, tx *sqlx.Tx) ([]*models.PlatformSchedule, error) {
		return s.sr.ListDue(ctx, tx, day, hhmm)
	})
}
