package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.True(t, c.Dev())
	assert.Equal(t, int64(9900), c.CODAdvance)
	assert.Equal(t, 24*time.Hour, c.CancellationWindow)
}

func TestFromEnv_Overlay(t *testing.T) {
	c, err := fromEnv(Default(), envMap(map[string]string{
		"STOREFRONT_ENV":                 "prod",
		"STOREFRONT_PORT":                "9000",
		"STOREFRONT_OTP_STORE":           "postgres",
		"STOREFRONT_OTP_TTL":             "2m",
		"STOREFRONT_OTP_MAX_ATTEMPTS":    "3",
		"STOREFRONT_COD_ADVANCE":         "4900",
		"STOREFRONT_RATE_LIMIT_RPS":      "0.5",
		"STOREFRONT_LOG_JSON":            "true",
		"STOREFRONT_CORS_ORIGINS":        "https://shop.example, ,https://admin.example",
		"STOREFRONT_CANCELLATION_WINDOW": "12h",
	}))
	require.NoError(t, err)
	assert.Equal(t, EnvProd, c.Env)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, OTPStorePostgres, c.OTPStore)
	assert.Equal(t, 2*time.Minute, c.OTPTTL)
	assert.Equal(t, 3, c.OTPMaxAttempts)
	assert.Equal(t, int64(4900), c.CODAdvance)
	assert.Equal(t, 0.5, c.RateLimitRPS)
	assert.True(t, c.LogJSON)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, c.CORSOrigins)
	assert.Equal(t, 12*time.Hour, c.CancellationWindow)
	assert.Equal(t, 5, c.OTPMaxSends, "unset keys keep defaults")
}

func TestFromEnv_ReportsBadValues(t *testing.T) {
	_, err := fromEnv(Default(), envMap(map[string]string{
		"STOREFRONT_OTP_TTL":      "five minutes",
		"STOREFRONT_PHONE_DIGITS": "ten",
		"STOREFRONT_LOG_JSON":     "maybe",
	}))
	require.Error(t, err)
	for _, key := range []string{"STOREFRONT_OTP_TTL", "STOREFRONT_PHONE_DIGITS", "STOREFRONT_LOG_JSON"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "prod with dev secrets", mutate: func(c *Config) { c.Env = EnvProd }, want: "STOREFRONT_JWT_SECRET"},
		{name: "unknown env", mutate: func(c *Config) { c.Env = "staging" }, want: "env must be"},
		{name: "unknown store", mutate: func(c *Config) { c.OTPStore = "memcached" }, want: "otp store"},
		{name: "redis without addr", mutate: func(c *Config) { c.RedisAddr = "" }, want: "redis addr"},
		{name: "zero ttl", mutate: func(c *Config) { c.OTPTTL = 0 }, want: "durations"},
		{name: "percent over 100", mutate: func(c *Config) { c.FastPathPercent = 101 }, want: "fast path"},
		{name: "zero rounding", mutate: func(c *Config) { c.RoundingUnit = 0 }, want: "rounding"},
		{name: "bad country code", mutate: func(c *Config) { c.PhoneCountryCode = "+91" }, want: "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	prod := Default()
	prod.Env = EnvProd
	prod.JWTSecret = "s3cret"
	prod.OTPSalt = "pepper"
	prod.AdminToken = "admin"
	assert.NoError(t, prod.Validate())
}

func TestApplyEnv(t *testing.T) {
	input := "\ufeff# comment\nexport A=1\nB = \"two\"\nC='three'\nEXISTING=new\nbroken line\n=nokey\n"
	set := map[string]string{}
	lookup := func(k string) (string, bool) {
		if k == "EXISTING" {
			return "old", true
		}
		v, ok := set[k]
		return v, ok
	}

	err := applyEnv(strings.NewReader(input), lookup, func(k, v string) error {
		set[k] = v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two", "C": "three"}, set)
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV(""))
	assert.Equal(t, []string{"a", "b"}, ParseCSV(" a, ,b "))
}
