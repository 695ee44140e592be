package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 50, 100, 200}, cfg.Game.BetOptions)
	assert.Equal(t, "0.02", cfg.Game.HouseCut)
	assert.Equal(t, 120*time.Second, cfg.Game.Countdown)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
	assert.Equal(t, int64(10), cfg.Wallet.InitialBalance)
	assert.Equal(t, 20, cfg.Referral.Threshold)
	assert.Equal(t, int64(10), cfg.Referral.Bonus)
	assert.Equal(t, int64(50), cfg.Payment.MinDeposit)
	assert.Equal(t, 3*time.Second, cfg.Database.AcquireTimeout)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
game:
  house_cut: "0.05"
  bet_options: [20, 40]
admin:
  ids: [42]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("PAYMENT_MIN_WITHDRAWAL", "100")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "0.05", cfg.Game.HouseCut)
	assert.Equal(t, []int64{20, 40}, cfg.Game.BetOptions)
	assert.Equal(t, []int64{42}, cfg.Admin.IDs)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, int64(100), cfg.Payment.MinWithdrawal)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Game:     GameConfig{BetOptions: []int64{10}, HouseCut: "0.02", MinPlayers: 2},
			Referral: ReferralConfig{Threshold: 20, Bonus: 10},
			Payment:  PaymentConfig{MinDeposit: 50, MinWithdrawal: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no bets", func(c *Config) { c.Game.BetOptions = nil }, true},
		{"negative bet", func(c *Config) { c.Game.BetOptions = []int64{-5} }, true},
		{"bad cut", func(c *Config) { c.Game.HouseCut = "abc" }, true},
		{"cut of one", func(c *Config) { c.Game.HouseCut = "1" }, true},
		{"single player games", func(c *Config) { c.Game.MinPlayers = 1 }, true},
		{"zero threshold", func(c *Config) { c.Referral.Threshold = 0 }, true},
		{"zero withdrawal minimum", func(c *Config) { c.Payment.MinWithdrawal = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())

	d.URL = "postgres://other"
	assert.Equal(t, "postgres://other", d.DSN())
}
