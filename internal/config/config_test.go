package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/panel")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://u:p@db:5432/panel", cfg.DatabaseURL)
	assert.Equal(t, "USD", cfg.WalletCurrency)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 3, cfg.ProviderMaxRetries)
	assert.Equal(t, 10, cfg.ProviderBulkBatchSize)
	assert.True(t, cfg.PollerEnabled)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.EncryptionSecret)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("WALLET_CURRENCY", "eur")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://panel.example.com, ,https://admin.example.com")
	t.Setenv("PROVIDER_BULK_BATCH_DELAY", "250ms")
	t.Setenv("POLLER_ENABLED", "false")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "EUR", cfg.WalletCurrency)
	assert.Equal(t, []string{"https://panel.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.ProviderBulkBatchDelay)
	assert.False(t, cfg.PollerEnabled)
}

func TestFromEnv_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://panel.example.com")

	_, err := fromEnv()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ENCRYPTION_SECRET", "")
	_, err = fromEnv()
	assert.ErrorContains(t, err, "ENCRYPTION_SECRET")
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err := fromEnv()
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PROVIDER_TIMEOUT", "soon")
	_, err = fromEnv()
	assert.ErrorContains(t, err, "PROVIDER_TIMEOUT")
}
