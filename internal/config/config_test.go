package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
client:
  base_url: https://chat.example.com
  history_timeout: 2s
  store_path: /tmp/cache.db
  session: tab-1
  persist_failures: true
server:
  host: 127.0.0.1
  port: "9090"
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
log_level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(body); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()
	return tmp.Name()
}

// TestLoad_File verifies that Load unmarshals every section of the YAML file.
func TestLoad_File(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://chat.example.com", cfg.Client.BaseURL)
	require.Equal(t, 2*time.Second, cfg.Client.HistoryTimeout)
	require.Equal(t, "/tmp/cache.db", cfg.Client.StorePath)
	require.Equal(t, "tab-1", cfg.Client.Session)
	require.True(t, cfg.Client.PersistFailures)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Client.HistoryTimeout)
	require.Equal(t, "default", cfg.Client.Session)
	require.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))
	t.Setenv("CHATSYNC_CLIENT_BASE_URL", "http://override:1234")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://override:1234", cfg.Client.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Config{Client: ClientConfig{BaseURL: "http://x", HistoryTimeout: time.Second, Session: "s"}}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Client.HistoryTimeout = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Client.BaseURL = ""
	require.Error(t, bad.Validate())
}

// chdir is a stand-in for testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore dir: %v", err)
		}
	})
}
