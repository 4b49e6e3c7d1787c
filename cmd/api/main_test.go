package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsConfigError(t *testing.T) {
	t.Setenv("PORT", "80 80")
	t.Setenv("ANSWERD_PORT", "80 80")

	err := run(context.Background())
	require.ErrorContains(t, err, "load configuration")
}

func TestRunStopsWithContext(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:0")
	t.Setenv("WIDGET_IDLE_TTL", "1s")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, run(ctx))
}
