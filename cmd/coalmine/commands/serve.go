package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opswatch/coalmine/internal/config"
	"github.com/opswatch/coalmine/internal/engine"
	"github.com/opswatch/coalmine/internal/httpapi"
	"github.com/opswatch/coalmine/internal/lifecycle"
	"github.com/opswatch/coalmine/internal/notifier"
	"github.com/opswatch/coalmine/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the canary server",
		Long: `Run the HTTP API, the deadline engine, or both, depending on the
config file's process.web/process.background settings and the --web/
--background flag overrides.

Examples:
  coalmine serve
  coalmine serve --web
  coalmine serve --background`,
		RunE: runServe,
	}
	cmd.Flags().Bool("web", false, "process HTTP requests only, no background deadline engine")
	cmd.Flags().Bool("background", false, "run the deadline engine only, no HTTP API")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if webOnly, _ := cmd.Flags().GetBool("web"); webOnly {
		cfg.Process.Web, cfg.Process.Background = true, false
	}
	if bgOnly, _ := cmd.Flags().GetBool("background"); bgOnly {
		cfg.Process.Web, cfg.Process.Background = false, true
	}

	logger := buildLogger(cfg.Log)

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	notify := buildNotifier(cfg, logger)
	eng := engine.New(st, notify, logger, nil)
	svc := lifecycle.New(st, eng, notify, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Process.Background {
		if err := eng.Rearm(ctx); err != nil {
			logger.Error("initial rearm failed", "error", err)
		}
		logger.Info("deadline engine armed")
	}

	var apiServer *httpapi.Server
	if cfg.Process.Web {
		apiServer = httpapi.New(svc, cfg.Listen.Address, cfg.Auth.Key, logger)
		go func() {
			if err := apiServer.ListenAndServe(); err != nil {
				logger.Error("http api server error", "error", err)
			}
		}()
	}

	logger.Info("coalmine running", "web", cfg.Process.Web, "background", cfg.Process.Background)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http api shutdown error", "error", err)
		}
	}
	return st.Close()
}

func buildLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			out = f
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "sqlite" {
		return store.OpenSQLStore(store.SQLConfig{Path: cfg.DSN})
	}
	return store.NewMemStore(), nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notifier.Notifier {
	var transports []notifier.Notifier

	if cfg.SMTPEnabled() {
		smtp, err := notifier.NewSMTPNotifier(notifier.SMTPConfig{
			Host:   cfg.SMTP.Host,
			Port:   cfg.SMTP.Port,
			User:   cfg.SMTP.User,
			Pass:   cfg.SMTP.Pass,
			Sender: cfg.SMTP.Sender,
		})
		if err != nil {
			logger.Error("smtp notifier disabled", "error", err)
		} else {
			transports = append(transports, smtp)
		}
	}

	if cfg.DiscordEnabled() {
		dc, err := notifier.NewDiscordNotifier(notifier.DiscordConfig{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			logger.Error("discord notifier disabled", "error", err)
		} else {
			transports = append(transports, dc)
		}
	}

	return notifier.NewFanout(func(transport string, err error) {
		logger.Warn("notification transport failed", "transport", transport, "error", err)
	}, transports...)
}
