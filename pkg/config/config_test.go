package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)
	t.Setenv("CALENDAR_COLUMNS", "3")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Calendar.Columns)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "09:00", cfg.Calendar.AMStart)
	assert.NotEmpty(t, cfg.BookingRefSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, 12*time.Hour, cfg.CORS.MaxAge)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:              EnvProduction,
			JWT:              JWTConfig{Secret: "s"},
			Admin:            AdminConfig{PasswordHash: "$2a$12$x"},
			BookingRefSecret: "r",
			Calendar:         CalendarConfig{Timezone: "Europe/London", HorizonDays: 30, Columns: 2},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"production without jwt secret", func(c *Config) { c.JWT.Secret = "" }},
		{"production without ref secret", func(c *Config) { c.BookingRefSecret = "" }},
		{"production without admin password", func(c *Config) { c.Admin = AdminConfig{} }},
		{"notify without key", func(c *Config) { c.Notify.Enabled = true }},
		{"no columns", func(c *Config) { c.Calendar.Columns = 0 }},
		{"no horizon", func(c *Config) { c.Calendar.HorizonDays = 0 }},
		{"unknown timezone", func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
