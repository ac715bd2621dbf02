package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("DIALOGIX_TEST_STRING", "  value  ")
	t.Setenv("DIALOGIX_TEST_BOOL", "true")
	t.Setenv("DIALOGIX_TEST_INT", "42")
	t.Setenv("DIALOGIX_TEST_INT_BAD", "-3")
	t.Setenv("DIALOGIX_TEST_DURATION", "250ms")
	t.Setenv("DIALOGIX_TEST_CSV", "a, b, ,c")

	require.Equal(t, "value", EnvString("DIALOGIX_TEST_STRING", "def"))
	require.Equal(t, "def", EnvString("DIALOGIX_TEST_MISSING", "def"))
	require.True(t, EnvBool("DIALOGIX_TEST_BOOL", false))
	require.Equal(t, 42, EnvInt("DIALOGIX_TEST_INT", 1))
	require.Equal(t, 7, EnvInt("DIALOGIX_TEST_INT_BAD", 7), "non-positive values fall back to the default")
	require.Equal(t, 250*time.Millisecond, EnvDuration("DIALOGIX_TEST_DURATION", time.Second))
	require.Equal(t, []string{"a", "b", "c"}, EnvCSV("DIALOGIX_TEST_CSV"))
	require.Nil(t, EnvCSV("DIALOGIX_TEST_MISSING"))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.NotEmpty(t, cfg.HTTPAddr)
	require.NotEmpty(t, cfg.LogLevel)
	require.Positive(t, cfg.MaxHeaderBytes)
	require.Positive(t, cfg.IdleTimeout)
	require.True(t, cfg.MigrateOnStart, "migrations default to on")
}
