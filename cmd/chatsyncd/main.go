package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/comigor/chatsync-go/internal/agent"
	"github.com/comigor/chatsync-go/internal/config"
	"github.com/comigor/chatsync-go/internal/llm"
	"github.com/comigor/chatsync-go/internal/logger"
	"github.com/comigor/chatsync-go/internal/server"
)

func main() {

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	responder := agent.New(llm.NewClient(cfg.LLM), cfg.LLM)
	transcript := server.OpenTranscript(cfg.Server.DBPath)
	handler := server.NewHandler(transcript, responder)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr, "model", cfg.LLM.Model)
	if err := http.ListenAndServe(serverAddr, handler.Routes()); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
