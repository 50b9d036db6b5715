package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_SecretKeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "missing", key: "", wantErr: true},
		{name: "too short", key: "short", wantErr: true},
		{name: "aes-128", key: strings.Repeat("k", 16)},
		{name: "aes-192", key: strings.Repeat("k", 24)},
		{name: "aes-256", key: strings.Repeat("k", 32)},
		{name: "between sizes", key: strings.Repeat("k", 20), wantErr: true},
		{name: "too long", key: strings.Repeat("k", 33), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", tt.key)

			err := LoadConfig().Validate()
			if tt.wantErr {
				assert.ErrorContains(t, err, "SECRET_KEY")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadConfig_SchedulerDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.GracePeriod)
}
