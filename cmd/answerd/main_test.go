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
