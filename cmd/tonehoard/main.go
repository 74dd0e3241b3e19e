// ABOUTME: Entry point for the tonehoard bot
// ABOUTME: Wires config, storage, the outbound queue and the Telegram adapter

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tonehoard/tonehoard/internal/account"
	"github.com/tonehoard/tonehoard/internal/bot"
	"github.com/tonehoard/tonehoard/internal/config"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/store"
	"github.com/tonehoard/tonehoard/internal/telegram"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                    _                          _
| |_ ___  _ __   ___ | |__   ___   __ _ _ __ __| |
| __/ _ \| '_ \ / _ \| '_ \ / _ \ / _' | '__/ _' |
| || (_) | | | |  __/| | | | (_) | (_| | | | (_| |
 \__\___/|_| |_|\___||_| |_|\___/ \__,_|_|  \__,_|
`

// getConfigPath returns the path to the bot config file.
// Priority: TONEHOARD_CONFIG env var > XDG_CONFIG_HOME/tonehoard/config.yaml > ~/.config/tonehoard/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TONEHOARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tonehoard", "config.yaml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	accounts := account.NewManager(st, logger)
	defer accounts.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Logged in as @%s\n", api.Self.UserName)
	green.Printf("  ✓ Database: %s\n\n", cfg.Database.Path)

	queue := dispatch.NewQueue(telegram.NewSender(api), cfg.Dispatcher.SendInterval, logger)
	controller := bot.New(accounts, st, st, queue, logger)
	adapter := telegram.NewAdapter(api, controller, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		adapter.Run(ctx)
	}()

	logger.Info("tonehoard started", "bot", api.Self.UserName)
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
