package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DARAJA_CONSUMER_KEY", "key")
	t.Setenv("DARAJA_CONSUMER_SECRET", "secret")
	t.Setenv("DARAJA_PASS_KEY", "passkey")
	t.Setenv("DARAJA_BUSINESS_SHORT_CODE", "174379")
	t.Setenv("DARAJA_API_URL", "https://sandbox.safaricom.co.ke")
	t.Setenv("CALLBACK_BASE_URL", "https://merchant.example.com")
}

func TestLoad_Valid(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "174379", cfg.Daraja.ShortCode)
	require.Equal(t, "https://merchant.example.com/api/v1/webhooks/mpesa", cfg.Daraja.CallbackURL())
	require.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_InvalidConfigFailsStartup(t *testing.T) {
	var tests = []struct {
		name   string
		mutate func(t *testing.T)
	}{
		{name: "missing consumer key", mutate: func(t *testing.T) { t.Setenv("DARAJA_CONSUMER_KEY", "") }},
		{name: "missing consumer secret", mutate: func(t *testing.T) { t.Setenv("DARAJA_CONSUMER_SECRET", "") }},
		{name: "missing pass key", mutate: func(t *testing.T) { t.Setenv("DARAJA_PASS_KEY", "") }},
		{name: "short code too short", mutate: func(t *testing.T) { t.Setenv("DARAJA_BUSINESS_SHORT_CODE", "1234") }},
		{name: "short code too long", mutate: func(t *testing.T) { t.Setenv("DARAJA_BUSINESS_SHORT_CODE", "12345678") }},
		{name: "short code not numeric", mutate: func(t *testing.T) { t.Setenv("DARAJA_BUSINESS_SHORT_CODE", "17437a") }},
		{name: "missing callback base", mutate: func(t *testing.T) { t.Setenv("CALLBACK_BASE_URL", "") }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			tt.mutate(t)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
