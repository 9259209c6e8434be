package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	MySQLDSN       string        `env:"MYSQL_DSN,required,notEmpty"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://127.0.0.1:6379/0"`
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	Port           string        `env:"PORT" envDefault:"8080"`
	AdminAddress   string        `env:"ADMIN_ADDRESS"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	TLSCert        string        `env:"TLS_CERT"`
	TLSKey         string        `env:"TLS_KEY"`
	DriveURL       string        `env:"DRIVE_URL"`
	DriveAPIKey    string        `env:"DRIVE_API_KEY"`
	DiscordToken   string        `env:"DISCORD_TOKEN"`
	DiscordChannel string        `env:"DISCORD_CHANNEL_ID"`
	AppURL         string        `env:"APP_URL"`
	RateLimit      int           `env:"RATE_LIMIT" envDefault:"60"`
	RateWindow     time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return cfg, fmt.Errorf("config: TLS_CERT and TLS_KEY must be set together")
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("config: RATE_LIMIT must be positive")
	}
	return cfg, nil
}

func (c Config) TLS() bool { return c.TLSCert != "" }
