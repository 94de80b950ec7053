package core

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"floodcast/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{Environment: "local"}
	cfg.Server.CorsAllowedOrigins = []string{"https://dashboard.example.org"}
	srv, err := NewServer(cfg, testLogger())
	require.NoError(t, err)
	return srv
}

func slogTo(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
