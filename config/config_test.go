package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
	return path
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("MODEL_PATH", modelFile(t))

	cfg, err := LoadServer("/opt/lib/libonnxruntime.so")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, "/opt/lib/libonnxruntime.so", cfg.LibraryPath)
	assert.Equal(t, 1, cfg.Sessions)
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, DefaultStaticDir, cfg.StaticDir)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 60*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("MODEL_PATH", modelFile(t))
	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("ENGINE_SESSIONS", "4")
	t.Setenv("WRITE_TIMEOUT", "90")
	t.Setenv("READ_TIMEOUT", "1m30s")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServer("lib.so")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, 4, cfg.Sessions)
	assert.Equal(t, 90*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 90*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadServerRejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"missing model":     {"MODEL_PATH", filepath.Join(os.TempDir(), "does-not-exist.onnx")},
		"too many sessions": {"ENGINE_SESSIONS", "17"},
		"zero sessions":     {"ENGINE_SESSIONS", "0"},
		"bad port":          {"APP_PORT", "http"},
		"upload too big":    {"MAX_UPLOAD_MB", "500"},
		"bad timeout":       {"READ_TIMEOUT", "soon"},
		"bad level":         {"LOG_LEVEL", "loud"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("MODEL_PATH", modelFile(t))
			t.Setenv(kv[0], kv[1])

			_, err := LoadServer("lib.so")
			assert.Error(t, err)
		})
	}
}

func TestLoadLauncher(t *testing.T) {
	t.Setenv("APP_PORT", "5050")
	t.Setenv("LAUNCH_COMMAND", "/usr/local/bin/detector")
	t.Setenv("LAUNCH_ARGS", "--flag value")
	t.Setenv("LAUNCH_GRACE_PERIOD", "2s")
	t.Setenv("TUNNEL_ENABLED", "false")
	t.Setenv("NGROK_AUTHTOKEN", "")

	cfg, err := LoadLauncher()
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/detector", cfg.Command)
	assert.Equal(t, []string{"--flag", "value"}, cfg.Args)
	assert.Equal(t, "http://127.0.0.1:5050", cfg.ServerURL)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
	assert.Equal(t, 2*time.Second, cfg.GracePeriod)
	assert.False(t, cfg.TunnelEnabled)
	assert.Empty(t, cfg.AuthToken)
}

func TestLoadLauncherRejectsBadBool(t *testing.T) {
	t.Setenv("TUNNEL_ENABLED", "maybe")

	_, err := LoadLauncher()
	assert.ErrorContains(t, err, "TUNNEL_ENABLED")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_PROBE=from-file\nDOTENV_KEEP=from-file\n"), 0o644))

	t.Setenv("DOTENV_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_KEEP"))
}
