package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 10*time.Second, cfg.LockTTL)
	require.Equal(t, 30*time.Minute, cfg.OrderExpiry)
	require.False(t, cfg.WebhookAllowUnsigned)
	require.Empty(t, cfg.Brokers())
	require.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Origins())

	pricing, err := cfg.Pricing()
	require.NoError(t, err)
	require.Equal(t, "TRY", pricing.Currency)
	require.True(t, pricing.ShippingCost.Equal(decimal.RequireFromString("29.90")))
	require.True(t, pricing.FreeShippingThreshold.Equal(decimal.NewFromInt(1000)))
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	content := "HTTP_PORT=9090\nLOCK_WAIT=750ms\nKAFKA_BROKERS=kafka-1:9092,kafka-2:9092\nSHIPPING_COST=19.90\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("WEBHOOK_ALLOW_UNSIGNED", "true")
	t.Setenv("OUTBOX_MAX_RETRIES", "3")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "7070", cfg.HTTPPort)
	require.Equal(t, 750*time.Millisecond, cfg.LockWait)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
	require.True(t, cfg.WebhookAllowUnsigned)
	require.Equal(t, 3, cfg.OutboxMaxRetries)

	pricing, err := cfg.Pricing()
	require.NoError(t, err)
	require.True(t, pricing.ShippingCost.Equal(decimal.RequireFromString("19.90")))
}

func TestLoad_RejectsBadMoney(t *testing.T) {
	t.Setenv("SHIPPING_COST", "free")

	_, err := Load(t.TempDir())
	require.ErrorContains(t, err, "SHIPPING_COST")
}
