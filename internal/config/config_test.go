package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundleYAML = `
title: Sleep Set
main_handle: cloud-mattress
addon_handles:
  - memory-topper
  - pillow
target_discount_percent: 15
voucher_code: BUNDLE2
slot_quantities:
  2: 2
quantity_choices: [1, 2, 3]
currency:
  code: USD
  symbol: $
  decimals: 2
  locale: en-US
`

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle(strings.NewReader(bundleYAML))
	require.NoError(t, err)

	assert.True(t, b.Enabled)
	assert.Equal(t, "Sleep Set", b.Title)
	assert.Equal(t, []string{"cloud-mattress", "memory-topper", "pillow"}, b.Handles())
	assert.Equal(t, 3, b.SlotCount())
	assert.Equal(t, 15.0, b.TargetDiscountPercent)
	assert.Equal(t, 1, b.SlotQuantity(1))
	assert.Equal(t, 2, b.SlotQuantity(2))
	assert.True(t, b.AllowsQuantity(3))
	assert.False(t, b.AllowsQuantity(4))
	assert.Equal(t, "$", b.Currency.Symbol)
	assert.Equal(t, 2, b.Currency.Decimals)
	assert.Equal(t, DefaultSizeKeywords, b.Vocabulary.SizeKeywords)
}

func TestParseBundleRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"target above 100", "main_handle: m\ntarget_discount_percent: 120\n", "target_discount_percent"},
		{"negative target", "main_handle: m\ntarget_discount_percent: -1\n", "target_discount_percent"},
		{"zero quantity choice", "main_handle: m\nquantity_choices: [0, 1]\n", "quantity_choices"},
		{"slot out of range", "main_handle: m\nslot_quantities:\n  3: 1\n", "out of range"},
		{"blank add-on", "main_handle: m\naddon_handles: ['']\n", "addon_handles[0]"},
		{"negative decimals", "main_handle: m\ncurrency:\n  decimals: -1\n", "currency.decimals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBundle(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadBundleEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bundleYAML), 0o600))
	t.Setenv("BUNDLE_VOUCHER_CODE", "SPRING")

	b, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "SPRING", b.VoucherCode)
}

func TestLoadBundleMissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultBundle(t *testing.T) {
	b, err := DefaultBundle()
	require.NoError(t, err)
	assert.Empty(t, b.Handles())
	assert.Equal(t, "VND", b.Currency.Code)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.QuantityChoices)
}

func TestLoad(t *testing.T) {
	for _, k := range []string{"PORT", "DB_HOST", "REDIS_HOST", "SESSION_TTL"} {
		t.Setenv(k, "")
	}
	t.Setenv("STOREFRONT_BASE_URL", "https://shop.example.com")
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("SESSION_IDLE_TTL", "45m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com, ,https://m.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 45*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"https://shop.example.com", "https://m.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.DB.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("STOREFRONT_BASE_URL", "https://shop.example.com")
	t.Setenv("SESSION_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")

	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("SESSION_TTL", "-1h")
	_, err = Load()
	assert.ErrorContains(t, err, "SESSION_TTL")

	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("OPERATOR_SECRET", "secret")
	_, err = Load()
	assert.ErrorContains(t, err, "OPERATOR_SECRET")

	t.Setenv("OPERATOR_SECRET", "ops-secret")
	t.Setenv("DB_HOST", "localhost")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_USER")
}
