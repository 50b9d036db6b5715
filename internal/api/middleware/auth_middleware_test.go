package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg config.Config) *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg).AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.Config{SecretKey: "secret", CookieName: "session"}
	app := newApp(cfg)

	token, err := utils.GenerateToken(cfg.SecretKey, 42, 1001, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		body    string
	}{
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer " + token}, status: fiber.StatusOK, body: "42"},
		{name: "cookie", headers: map[string]string{"Cookie": "session=" + token}, status: fiber.StatusOK, body: "42"},
		{name: "garbage", headers: map[string]string{"Authorization": "Bearer nope"}, status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(b))
			}
		})
	}
}

func TestAuthMiddleware_ForeignSecretIsRejected(t *testing.T) {
	app := newApp(config.Config{SecretKey: "secret", CookieName: "session"})
	token, err := utils.GenerateToken("other-secret", 42, 1001, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
