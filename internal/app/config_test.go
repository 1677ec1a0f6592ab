package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryConfigPolicy(t *testing.T) {
	p, err := DeliveryConfig{FreeThreshold: "499.50", FlatFee: "40", ETADays: 3}.Policy()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("499.5").Equal(p.FreeThreshold))
	assert.True(t, decimal.NewFromInt(40).Equal(p.FlatFee))
	assert.Equal(t, 3, p.ETADays)

	tests := []struct {
		name string
		cfg  DeliveryConfig
	}{
		{"bad threshold", DeliveryConfig{FreeThreshold: "lots", FlatFee: "40"}},
		{"bad fee", DeliveryConfig{FreeThreshold: "500", FlatFee: ""}},
		{"negative fee", DeliveryConfig{FreeThreshold: "500", FlatFee: "-1"}},
		{"negative eta", DeliveryConfig{FreeThreshold: "500", FlatFee: "40", ETADays: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Policy()
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/medcart",
			Delivery:    DeliveryConfig{FreeThreshold: "500", FlatFee: "40", ETADays: 5},
			Coupons:     CouponsConfig{Source: "db"},
			Notify:      NotifyConfig{Transport: "none"},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = "" }},
		{"unknown coupon source", func(c *Config) { c.Coupons.Source = "redis" }},
		{"unknown transport", func(c *Config) { c.Notify.Transport = "smtp" }},
		{"http without url", func(c *Config) { c.Notify.Transport = "http" }},
		{"bad delivery", func(c *Config) { c.Delivery.FlatFee = "free" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.validate())
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	c := Config{Addr: "0.0.0.0:8080"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", c.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", c.Addr)

	c = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	c.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", c.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", c.Addr)
}
