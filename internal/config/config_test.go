package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 600*time.Second, cfg.NewDialogTimeout)
	require.Equal(t, 12000, cfg.HistoryBudget)
	require.Equal(t, SizeMetricChars, cfg.HistorySizeMetric)
	require.Equal(t, "wss://test.deribit.com/ws/api/v2", cfg.DeribitURL)
	require.Equal(t, 10*time.Second, cfg.DeribitTimeout)
	require.False(t, cfg.DeribitStrictAuth)
	require.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGeckoURL)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, int32(10), cfg.DBMaxConns)
	require.Empty(t, cfg.AllowedUsernames)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("BOT_TOKEN")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("OPENAI_API_KEY")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("NEW_DIALOG_TIMEOUT", "15m")
	t.Setenv("HISTORY_SIZE_METRIC", "tokens")
	t.Setenv("ALLOWED_TELEGRAM_USERNAMES", "alice,@Bob")
	t.Setenv("DERIBIT_STRICT_AUTH", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.NewDialogTimeout)
	require.Equal(t, SizeMetricTokens, cfg.HistorySizeMetric)
	require.True(t, cfg.DeribitStrictAuth)
	require.True(t, cfg.IsAllowed("alice"))
	require.True(t, cfg.IsAllowed("bob"))
	require.False(t, cfg.IsAllowed("mallory"))
}

func TestLoad_RejectsUnknownSizeMetric(t *testing.T) {
	setRequired(t)
	t.Setenv("HISTORY_SIZE_METRIC", "bytes")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "HISTORY_SIZE_METRIC")
}

func TestIsAllowed_EmptyListAdmitsEveryone(t *testing.T) {
	cfg := &Config{}
	require.True(t, cfg.IsAllowed("anyone"))
	require.True(t, cfg.IsAllowed(""))
}

func TestLoadChatModes_Embedded(t *testing.T) {
	modes, err := LoadChatModes("")
	require.NoError(t, err)
	require.True(t, modes.Has(DefaultChatMode))
	require.Equal(t, DefaultChatMode, modes.Keys()[0])
	require.Equal(t, DefaultChatMode, modes.Get("no-such-mode").Key)
	require.NotEmpty(t, modes.Get(DefaultChatMode).PromptStart)
}

func TestLoadChatModes_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yml")
	data := []byte("assistant:\n  prompt_start: be brief\nquant:\n  name: Quant\n  prompt_start: numbers only\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	modes, err := LoadChatModes(path)
	require.NoError(t, err)
	require.Equal(t, []string{"assistant", "quant"}, modes.Keys())
	require.Equal(t, "assistant", modes.Get("assistant").Name)
	require.Equal(t, "numbers only", modes.Get("quant").PromptStart)
}

func TestParseChatModes_RequiresDefault(t *testing.T) {
	_, err := ParseChatModes([]byte("quant:\n  prompt_start: x\n"))
	require.Error(t, err)
}
