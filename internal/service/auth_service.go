package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/pkg/utils"
)

var ErrBadBotSecret = errors.New("bot secret mismatch")

type AuthService interface {
	// IssueToken exchanges the bot's shared secret and a chat id for a
	// session token of the user bound to that chat.
	IssueToken(ctx context.Context, botSecret string, chatID int64, username string) (string, int64, error)
}

type authService struct {
	cfg   config.Config
	users UserService
}

func NewAuthService(cfg config.Config, users UserService) AuthService {
	return &authService{
		cfg:   cfg,
		users: users,
	}
}

func (s *authService) IssueToken(ctx context.Context, botSecret string, chatID int64, username string) (string, int64, error) {
	if s.cfg.BotSecret == "" || subtle.ConstantTimeCompare([]byte(botSecret), []byte(s.cfg.BotSecret)) != 1 {
		slog.Info(ErrBadBotSecret.Error())
		return "", 0, ErrBadBotSecret
	}

	user, err := s.users.EnsureByChatID(ctx, chatID, username)
	if err != nil {
		return "", 0, err
	}

	token, err := utils.GenerateToken(s.cfg.SecretKey, user.ID, chatID, s.cfg.TokenDuration)
	if err != nil {
		slog.Info(err.Error())
		return "", 0, err
	}
	return token, user.ID, nil
}
