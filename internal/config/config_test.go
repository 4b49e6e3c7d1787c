package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ANSWERD_PORT", "ANSWER_ENDPOINT", "ANSWER_IDLE_TIMEOUT", "ANSWER_ERROR_MESSAGE", "WIDGET_IDLE_TTL", "LOG_LEVEL", "LOG_FORMAT", "Model", "ARK_API_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, ":5000", cfg.Answerd.Addr)
	require.Equal(t, "http://localhost:5000/api/rag/ask/stream", cfg.Answer.Endpoint)
	require.Zero(t, cfg.Answer.IdleTimeout)
	require.Equal(t, 30*time.Minute, cfg.Widget.IdleTTL)
	require.Equal(t, time.Minute, cfg.Widget.EvictInterval())
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.AI.Enabled())
}

func TestLoadAnswerOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ANSWER_ENDPOINT", "https://answers.example.com/api/rag/ask/stream")
	t.Setenv("ANSWER_IDLE_TIMEOUT", "45s")
	t.Setenv("ANSWER_ERROR_MESSAGE", " Try again later. ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "https://answers.example.com/api/rag/ask/stream", cfg.Answer.Endpoint)
	require.Equal(t, 45*time.Second, cfg.Answer.IdleTimeout)
	require.Equal(t, "Try again later.", cfg.Answer.ErrorMessage)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                "80 80",
		"ANSWER_IDLE_TIMEOUT": "soon",
		"ANSWER_ENDPOINT":     "not a url",
		"WIDGET_IDLE_TTL":     "-5m",
		"ARK_MAX_TOKENS":      "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorContains(t, err, key)
		})
	}
}

func TestLoadRejectsNegativeIdleTimeout(t *testing.T) {
	t.Setenv("ANSWER_IDLE_TIMEOUT", "-1s")
	_, err := Load()
	require.ErrorContains(t, err, "ANSWER_IDLE_TIMEOUT")
}

func TestWidgetEvictInterval(t *testing.T) {
	t.Setenv("WIDGET_IDLE_TTL", "20s")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 20*time.Second, cfg.Widget.IdleTTL)
	require.Equal(t, 5*time.Second, cfg.Widget.EvictInterval())

	require.Equal(t, time.Second, WidgetConfig{IdleTTL: time.Second}.EvictInterval())
}
