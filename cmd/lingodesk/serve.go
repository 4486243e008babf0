package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lingodesk/lingodesk/pkg/broker"
	"github.com/lingodesk/lingodesk/pkg/config"
	"github.com/lingodesk/lingodesk/pkg/coordinator"
	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/presenter"
	"github.com/lingodesk/lingodesk/pkg/rules"
	"github.com/lingodesk/lingodesk/pkg/server"
	"github.com/lingodesk/lingodesk/pkg/store"
	"github.com/lingodesk/lingodesk/pkg/translate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat service",
	Long: `Start the websocket broker, the REST API and the static frontend.

Customers and agents connect to /ws; the frontend bootstraps itself from
/api/v1/config. Everything is configurable through environment variables
(bare or LINGODESK_-prefixed) with flags taking precedence.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServeCommand(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind the server to")
	serveCmd.Flags().Int("port", 5000, "Port to bind the server to")
	serveCmd.Flags().String("db-path", "data/lingodesk.db", "SQLite database path")
	serveCmd.Flags().String("static-dir", "", "Directory with the built frontend (optional)")
	serveCmd.Flags().String("rules-file", "", "YAML file replacing the built-in canned answers (optional, hot-reloaded)")

	viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("db_path", serveCmd.Flags().Lookup("db-path"))
	viper.BindPFlag("static_dir", serveCmd.Flags().Lookup("static-dir"))
	viper.BindPFlag("rules_file", serveCmd.Flags().Lookup("rules-file"))
}

func runServeCommand(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		presenter.Error(err, "invalid configuration")
		os.Exit(1)
	}

	shutdownTracer, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing, continuing without it")
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		presenter.Error(err, "failed to open database")
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close database")
		}
	}()

	responder := rules.NewResponder()
	if cfg.RulesFile != "" {
		if err := responder.LoadFile(cfg.RulesFile); err != nil {
			presenter.Error(err, "failed to load rules file")
			os.Exit(1)
		}
		logger.G(ctx).WithFields(map[string]any{
			"rules_file": cfg.RulesFile,
			"rules":      responder.Len(),
		}).Info("loaded canned answer rules")
	}

	translator := translate.New(translate.Config{
		Endpoints:       cfg.LibreEndpoints,
		DetectEndpoints: cfg.LibreDetectEndpoints,
		Enabled:         cfg.TranslationEnabled,
		Timeout:         cfg.TranslationTimeout(),
		LLMBaseURL:      cfg.LLMBaseURL,
		LLMAPIKey:       cfg.LLMAPIKey,
		LLMModel:        cfg.LLMModel,
	})

	hub := broker.NewHub()
	coord := coordinator.New(coordinator.Config{
		DefaultClientLang: cfg.DefaultClientLang,
		BotInactivity:     cfg.BotInactivity(),
		BotSuppress:       cfg.BotSuppress(),
	}, st, translator, responder, hub)

	srv := server.New(cfg, hub, coord)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.RulesFile != "" {
		go func() {
			if err := responder.Watch(ctx, cfg.RulesFile); err != nil {
				logger.G(ctx).WithError(err).Warn("rules watcher stopped")
			}
		}()
	}

	presenter.Success(fmt.Sprintf("Chat service starting on http://%s:%d", cfg.Host, cfg.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	err = srv.Start(ctx)

	if shutdownTracer != nil {
		if shutdownErr := shutdownTracer(context.Background()); shutdownErr != nil {
			logger.G(ctx).WithError(shutdownErr).Warn("failed to shut down tracing")
		}
	}
	if err != nil {
		presenter.Error(err, "server failed")
		os.Exit(1)
	}

	presenter.Info("Server stopped")
}
