package config

import (
	"errors"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env     string
	Port    string
	GinMode string

	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Notify   NotifyConfig
	Log      LogConfig
	Calendar CalendarConfig
	CORS     CORSConfig

	BookingRefSecret string
}

type DatabaseConfig struct {
	URL  string
	Path string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

// NotifyConfig controls booking e-mails.
type NotifyConfig struct {
	Enabled      bool
	ResendAPIKey string
	From         string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig shapes the bookable grid and session times.
type CalendarConfig struct {
	Timezone    string
	HorizonDays int
	Columns     int
	AMStart     string
	AMEnd       string
	PMStart     string
	PMEnd       string
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// envPaths are tried in order; the first existing file wins.
var envPaths = []string{".env", "../.env", "../../.env"}

func Load() (*Config, error) {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Env:     v.GetString("ENV"),
		Port:    v.GetString("PORT"),
		GinMode: v.GetString("GIN_MODE"),
		Database: DatabaseConfig{
			URL:  v.GetString("DATABASE_URL"),
			Path: v.GetString("DATA_PATH"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		},
		Admin: AdminConfig{
			Username:     v.GetString("ADMIN_USERNAME"),
			Password:     v.GetString("ADMIN_PASSWORD"),
			PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		},
		Notify: NotifyConfig{
			Enabled:      v.GetBool("NOTIFY_ENABLED"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			From:         v.GetString("NOTIFY_FROM"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Calendar: CalendarConfig{
			Timezone:    v.GetString("CALENDAR_TIMEZONE"),
			HorizonDays: v.GetInt("CALENDAR_HORIZON_DAYS"),
			Columns:     v.GetInt("CALENDAR_COLUMNS"),
			AMStart:     v.GetString("AM_START"),
			AMEnd:       v.GetString("AM_END"),
			PMStart:     v.GetString("PM_START"),
			PMEnd:       v.GetString("PM_END"),
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
			MaxAge:       parseDuration(v.GetString("CORS_MAX_AGE"), 12*time.Hour),
		},
		BookingRefSecret: v.GetString("BOOKING_REF_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
		if c.BookingRefSecret == "" {
			return errors.New("BOOKING_REF_SECRET is required in production")
		}
		if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
			return errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required in production")
		}
	}
	if c.Notify.Enabled && c.Notify.ResendAPIKey == "" {
		return errors.New("RESEND_API_KEY is required when NOTIFY_ENABLED is set")
	}
	if c.Calendar.Columns < 1 {
		return errors.New("CALENDAR_COLUMNS must be at least 1")
	}
	if c.Calendar.HorizonDays < 1 {
		return errors.New("CALENDAR_HORIZON_DAYS must be at least 1")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return errors.New("CALENDAR_TIMEZONE is not a known location")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", "8000")
	v.SetDefault("GIN_MODE", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_PATH", "pharmacal.db")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("NOTIFY_ENABLED", false)
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("NOTIFY_FROM", "Pharma-cal <bookings@example.org>")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_TIMEZONE", "Europe/London")
	v.SetDefault("CALENDAR_HORIZON_DAYS", 60)
	v.SetDefault("CALENDAR_COLUMNS", 2)
	v.SetDefault("AM_START", "09:00")
	v.SetDefault("AM_END", "12:45")
	v.SetDefault("PM_START", "13:15")
	v.SetDefault("PM_END", "17:00")

	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8501")
	v.SetDefault("CORS_MAX_AGE", "12h")

	v.SetDefault("BOOKING_REF_SECRET", "dev_booking_secret")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// splitList reads a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
