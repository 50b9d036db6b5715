package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	EnsureByChatID(ctx context.Context, chatID int64, username string) (*models.User, error)
}

type userService struct {
	guard *storage.Guard
	u     repository.UserRepository
}

func NewUserService(guard *storage.Guard, u repository.UserRepository) UserService {
	return &userService{
		guard: guard,
		u:     u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	user, err := storage.Run(ctx, s.guard, "user.get", func(ctx context.Context, tx *sqlx.Tx) (*models.User, error) {
		user, _, err := s.u.GetByID(ctx, tx, id)
		return user, err
	}).Result()
	if err != nil {
		return nil, err
	}
	if user == nil {
		slog.Info(ErrUserNotFound.Error(), "user_id", id)
		return nil, ErrUserNotFound
	}
	return user, nil
}

// EnsureByChatID returns the user bound to a Telegram chat, creating it on
// first contact.
func (s *userService) EnsureByChatID(ctx context.Context, chatID int64, username string) (*models.User, error) {
	if chatID == 0 {
		return nil, errors.New("chat id is required")
	}
	return storage.Run(ctx, s.guard, "user.ensure", func(ctx context.Context, tx *sqlx.Tx) (*models.User, error) {
		user, found, err := s.u.GetByChatID(ctx, tx, chatID)
		if err != nil {
			return nil, err
		}
		if found {
			return user, nil
		}
		user = &models.User{TelegramChatID: chatID, Username: username}
		if _, err := s.u.Create(ctx, tx, user); err != nil {
			return nil, err
		}
		return user, nil
	}).Result()
}
