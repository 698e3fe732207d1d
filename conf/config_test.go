package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "TRADING_SYMBOL", "EXCHANGE_NAME", "LEVERAGE", "RAILWAY_ENVIRONMENT"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_SampleFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, LoadConfig("config.yaml"))
	assert.Equal(t, "PF_XBTUSD", AppConfig.Trading.Symbol)
	assert.Equal(t, 3*time.Second, AppConfig.Workflow.ReleaseDelay.Std())
	assert.Equal(t, 3, AppConfig.Workflow.ConfirmAttempts)
	assert.Equal(t, 5*time.Minute, AppConfig.Redis.LockTTL.Std())
}

func TestLoadConfig_DefaultsKept(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "listen: \":9000\"\ntrading:\n  symbol: PF_ETHUSD\n")
	require.NoError(t, LoadConfig(path))
	assert.Equal(t, ":9000", AppConfig.Listen)
	assert.Equal(t, "PF_ETHUSD", AppConfig.Trading.Symbol)
	assert.Equal(t, float64(5), AppConfig.Trading.Leverage)
	assert.Equal(t, 0.9, AppConfig.Workflow.ConfirmThreshold)
	assert.Equal(t, 2*time.Second, AppConfig.Workflow.ConfirmDelay.Std())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("KRAKEN_API_KEY", "k")
	t.Setenv("KRAKEN_SECRET", "s")
	t.Setenv("EXCHANGE_NAME", "kraken")
	t.Setenv("PORT", "8123")
	t.Setenv("LEVERAGE", "3")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("RAILWAY_ENVIRONMENT", "production")

	require.NoError(t, LoadConfig(writeConfig(t, "mode: release\n")))
	assert.Equal(t, ":8123", AppConfig.Listen)
	assert.Equal(t, float64(3), AppConfig.Trading.Leverage)
	assert.Equal(t, int64(-1001), AppConfig.Telegram.ChatID)
	assert.Equal(t, "Production", AppConfig.Environment)

	key, secret := AppConfig.CredentialsSet()
	assert.True(t, key)
	assert.True(t, secret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"threshold above 1", func(c *Config) { c.Workflow.ConfirmThreshold = 1.5 }},
		{"no attempts", func(c *Config) { c.Workflow.ConfirmAttempts = 0 }},
		{"zero leverage", func(c *Config) { c.Trading.Leverage = 0 }},
		{"unknown exchange", func(c *Config) { c.Exchange.Name = "binance" }},
		{"unknown mode", func(c *Config) { c.Mode = "prod" }},
		{"empty symbol", func(c *Config) { c.Trading.Symbol = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
	c := Default()
	assert.NoError(t, c.Validate())
}

func TestDuration_Invalid(t *testing.T) {
	err := LoadConfig(writeConfig(t, "workflow:\n  confirm-delay: soon\n"))
	assert.Error(t, err)
}
