// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	WebApp   WebAppConfig   `mapstructure:"webapp"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Game     GameConfig     `mapstructure:"game"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Referral ReferralConfig `mapstructure:"referral"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
}

// HTTPConfig holds the web client API listener configuration.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuthConfig holds the signing settings for web client launch tokens.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// WebAppConfig holds the URL of the web client opened from the bot.
type WebAppConfig struct {
	URL string `mapstructure:"url"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	URL             string        `mapstructure:"url"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
	AcquireRetries  int           `mapstructure:"acquire_retries"`
}

// AdminConfig holds bootstrap admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// GameConfig holds bingo round configuration.
type GameConfig struct {
	BetOptions []int64       `mapstructure:"bet_options"`
	HouseCut   string        `mapstructure:"house_cut"`
	Countdown  time.Duration `mapstructure:"countdown"`
	MinPlayers int           `mapstructure:"min_players"`
}

// WalletConfig holds wallet defaults for new users.
type WalletConfig struct {
	InitialBalance int64 `mapstructure:"initial_balance"`
}

// ReferralConfig holds referral bonus configuration.
type ReferralConfig struct {
	Threshold int   `mapstructure:"threshold"`
	Bonus     int64 `mapstructure:"bonus"`
}

// PaymentConfig holds deposit and withdrawal limits.
type PaymentConfig struct {
	MinDeposit    int64    `mapstructure:"min_deposit"`
	MinWithdrawal int64    `mapstructure:"min_withdrawal"`
	Methods       []string `mapstructure:"methods"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
// An explicit URL takes precedence over the individual fields.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, GAME_HOUSE_CUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Secrets have empty defaults so that AutomaticEnv can see them.
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.username", "ZebiBingoBot")
	v.SetDefault("auth.secret", "")
	v.SetDefault("webapp.url", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.password", "")
	v.SetDefault("admin.ids", []int64{})

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")

	v.SetDefault("auth.token_ttl", "24h")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bingo")
	v.SetDefault("database.name", "bingo")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.acquire_timeout", "3s")
	v.SetDefault("database.acquire_retries", 3)

	// Game defaults
	v.SetDefault("game.bet_options", []int64{10, 50, 100, 200})
	v.SetDefault("game.house_cut", "0.02")
	v.SetDefault("game.countdown", "120s")
	v.SetDefault("game.min_players", 2)

	v.SetDefault("wallet.initial_balance", 10)

	v.SetDefault("referral.threshold", 20)
	v.SetDefault("referral.bonus", 10)

	v.SetDefault("payment.min_deposit", 50)
	v.SetDefault("payment.min_withdrawal", 50)
	v.SetDefault("payment.methods", []string{"telebirr", "cbe"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if len(c.Game.BetOptions) == 0 {
		return errors.New("game.bet_options must not be empty")
	}
	for _, bet := range c.Game.BetOptions {
		if bet <= 0 {
			return fmt.Errorf("game.bet_options contains non-positive bet %d", bet)
		}
	}

	cut, err := c.Game.HouseCutDecimal()
	if err != nil {
		return err
	}
	if cut.IsNegative() || cut.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("game.house_cut must be in [0, 1), got %s", cut)
	}

	if c.Game.MinPlayers < 2 {
		return errors.New("game.min_players must be at least 2")
	}
	if c.Referral.Threshold <= 0 {
		return errors.New("referral.threshold must be positive")
	}
	if c.Payment.MinDeposit <= 0 || c.Payment.MinWithdrawal <= 0 {
		return errors.New("payment minimums must be positive")
	}
	if c.Wallet.InitialBalance < 0 {
		return errors.New("wallet.initial_balance must not be negative")
	}

	return nil
}

// HouseCutDecimal parses the configured house cut fraction.
func (g *GameConfig) HouseCutDecimal() (decimal.Decimal, error) {
	cut, err := decimal.NewFromString(g.HouseCut)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse game.house_cut %q: %w", g.HouseCut, err)
	}
	return cut, nil
}
