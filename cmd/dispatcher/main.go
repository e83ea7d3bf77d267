// Command dispatcher runs the operator bot against a firesim server.
// It reads the advisory attack plan and sends idle crews to their targets
// through the operator waypoint API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/fire-tactics/internal/dispatcher"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("FIRESIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("FIRESIM_ADMIN_KEY")
	memoryPath := envOrDefault("DISPATCH_MEMORY", "dispatcher_memory.json")
	intervalSec := envIntOrDefault("DISPATCH_INTERVAL", 5)

	if adminKey == "" {
		slog.Error("FIRESIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("dispatcher starting",
		"api_url", apiURL,
		"interval", interval,
	)

	bot := dispatcher.NewBot(apiURL, adminKey, memoryPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wait for the simulation API before the first cycle.
	slog.Info("waiting for firesim API...")
	if !waitForAPI(ctx, apiURL) {
		os.Exit(1)
	}

	runCycle(ctx, bot)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, bot)
		case <-ctx.Done():
			slog.Info("shutting down")
			if s := bot.Memory.Summary(); s != "" {
				fmt.Print(s)
			}
			fmt.Println("Dispatcher stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, bot *dispatcher.Bot) {
	if _, err := bot.RunCycle(ctx); err != nil {
		slog.Error("dispatch cycle failed", "error", err)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after 5 minutes or when ctx is cancelled.
func waitForAPI(ctx context.Context, apiURL string) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("firesim API is ready")
				return true
			}
		}
		if time.Now().After(deadline) {
			slog.Error("firesim API did not become ready within 5 minutes")
			return false
		}
		slog.Info("firesim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
