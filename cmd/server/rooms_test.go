package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/SteamVC/steamvc-relay/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoomsCommandsAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV", "local")
	t.Setenv("DIRECTORY_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", mr.Addr())

	out, err := run(t, "rooms", "create", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "lobby\n", out)

	out, err = run(t, "rooms", "create")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 36)

	out, err = run(t, "rooms", "list")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), "lobby")

	out, err = run(t, "rooms", "exists", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = run(t, "rooms", "exists", "nope")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	for _, env := range []string{config.EnvLocal, config.EnvDev, config.EnvProd, "other"} {
		assert.NotNil(t, setupLogger(env), env)
	}
	assert.False(t, setupLogger(config.EnvProd).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, setupLogger(config.EnvDev).Enabled(context.Background(), slog.LevelDebug))
}
