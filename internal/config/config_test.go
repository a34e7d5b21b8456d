package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-leecher/internal/shortener"
)

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.FreeDownloads)
	assert.Equal(t, 24, cfg.TokenValidityHours)
	assert.Equal(t, 1, cfg.PendingPaymentLimit)
	assert.Equal(t, 30*time.Minute, cfg.Payment.TTL)
	assert.Equal(t, 10*time.Second, cfg.Shortlink.Timeout)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, int64(1610612736), cfg.Download.MaxFileSize)

	p, err := cfg.ShortenerProvider()
	require.NoError(t, err)
	assert.Equal(t, shortener.ProviderNone, p)

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Len(t, catalog.List(), 4)
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv("FREE_DOWNLOADS", "7")
	path := writeEnvFile(t, "FREE_DOWNLOADS=1\nPAYMENT_TTL=45m\nOWNER_ID=10\nADMIN_IDS=20, 30\n")
	t.Cleanup(func() {
		for _, k := range []string{"PAYMENT_TTL", "OWNER_ID", "ADMIN_IDS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.FreeDownloads)
	assert.Equal(t, 45*time.Minute, cfg.Payment.TTL)
	assert.Equal(t, []int64{10, 20, 30}, cfg.OperatorIDs())
}

func TestShortenerProviderInferredFromURL(t *testing.T) {
	t.Setenv("SHORTLINK_URL", "https://arolinks.com")
	t.Setenv("SHORTLINK_API", "k")

	cfg, err := Load("")
	require.NoError(t, err)
	sc, err := cfg.ShortenerConfig()
	require.NoError(t, err)
	assert.Equal(t, shortener.ProviderAroLinks, sc.Provider)
	assert.Equal(t, "k", sc.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend": {"STORE_BACKEND": "mongo"},
		"inverted limits": {"MAX_FILE_SIZE": "10", "PREMIUM_MAX_SIZE": "5"},
		"bad provider":    {"SHORTLINK_PROVIDER": "bitly"},
		"bad plans":       {"PLANS": "x:notanumber:5"},
		"zero validity":   {"TOKEN_VALIDITY_HOURS": "0"},
		"negative quota":  {"FREE_DOWNLOADS": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
