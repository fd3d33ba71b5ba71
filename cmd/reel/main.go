package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	loadDotEnv()

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads provider API keys from ./.env and ~/.reel/.env.
// Variables already set in the environment win; missing files are ignored.
func loadDotEnv() {
	_ = godotenv.Load(".env")
	if dir, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".reel", ".env"))
	}
}
