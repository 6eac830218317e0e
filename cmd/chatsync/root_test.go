package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/chatsync-go/internal/history"
	"github.com/comigor/chatsync-go/internal/server"
)

type upperReplier struct{}

func (upperReplier) Reply(_ context.Context, _ []history.Message, content string) (string, error) {
	return strings.ToUpper(content), nil
}

func setup(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(server.NewHandler(server.NewMemoryTranscript(), upperReplier{}).Routes())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf("client:\n  base_url: %s\n  store_path: %s\nlog_level: error\n",
		srv.URL, filepath.Join(dir, "cache.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, cmd.ExecuteContext(context.Background()), errOut.String())
	return out.String()
}

func TestChatSessionRoundTrip(t *testing.T) {
	setup(t)

	out := run(t, "hello\n   \n/quit\n", "chat")
	require.Contains(t, out, "AI: HELLO")

	out = run(t, "", "history")
	require.Equal(t, "You: hello\nAI: HELLO\n", out)

	id := strings.TrimSpace(run(t, "", "whoami"))
	require.True(t, strings.HasPrefix(id, "user_"))

	require.Contains(t, run(t, "", "clear"), "cleared")
	require.Equal(t, id, strings.TrimSpace(run(t, "", "whoami")))

	// the server still has the transcript, so it comes back after a clear
	require.Equal(t, "You: hello\nAI: HELLO\n", run(t, "", "history"))
}

func TestChat_ClearCommand(t *testing.T) {
	setup(t)

	out := run(t, "one\n/clear\n", "chat")
	require.Contains(t, out, "(cleared)")
}
