package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9000":           ":9000",
		":9001":          ":9001",
		"127.0.0.1:9002": "127.0.0.1:9002",
	}
	for in, want := range cases {
		got, err := parseListenAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseListenAddr("80 80")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ARK_API_KEY", "Model", "LOG_LEVEL", "ASSISTANT_PERSONA", "COOKIE_SECURE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, "assistant", cfg.AI.PersonaID)
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ARK_TEMPERATURE", "warm")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ARK_TEMPERATURE", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
	assert.False(t, AIConfig{Model: "m", AccessKey: "a"}.Enabled())
}

func newWidgetFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterWidgetFlags(flagSet)
	require.NoError(t, flagSet.Parse(args))
	return flagSet
}

func TestLoadWidgetFlags(t *testing.T) {
	cookie := filepath.Join(t.TempDir(), "c.yaml")
	cfg, err := LoadWidget(newWidgetFlags(t,
		"--endpoint", "http://example.test/api/chat",
		"--cookie-file", cookie,
		"--timeout", "5s",
		"--plain",
	))
	require.NoError(t, err)

	assert.Equal(t, "http://example.test/api/chat", cfg.Endpoint)
	assert.Equal(t, cookie, cfg.CookieFile)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Plain)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
}

func TestLoadWidgetEnvOverridesDefault(t *testing.T) {
	t.Setenv("ZCHAT_ENDPOINT", "http://env.test/api/chat")
	t.Setenv("ZCHAT_COOKIE_FILE", filepath.Join(t.TempDir(), "c.yaml"))

	cfg, err := LoadWidget(newWidgetFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "http://env.test/api/chat", cfg.Endpoint)
}

func TestLoadWidgetConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: http://file.test/api/chat\nlog-level: debug\n"), 0o600))

	cfg, err := LoadWidget(newWidgetFlags(t, "--config", path, "--cookie-file", filepath.Join(dir, "c.yaml")))
	require.NoError(t, err)
	assert.Equal(t, "http://file.test/api/chat", cfg.Endpoint)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoadWidgetDefaultCookieFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWidget(newWidgetFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "cookies.yaml", filepath.Base(cfg.CookieFile))
}
