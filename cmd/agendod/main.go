package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskfolk/agendo/config"
	"github.com/taskfolk/agendo/engine"
	"github.com/taskfolk/agendo/recurrence"
	"github.com/taskfolk/agendo/server"
	"github.com/taskfolk/agendo/server/auth"
	authmemory "github.com/taskfolk/agendo/server/auth/memory"
	"github.com/taskfolk/agendo/storage"
	"github.com/taskfolk/agendo/storage/memory"
	"github.com/taskfolk/agendo/storage/sqlite"
)

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	flags := parseFlags()

	level := slog.LevelInfo
	if flags.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	conf, err := config.Load(flags.configPath)
	if err != nil {
		logger.Error("failed to load config", "config_path", flags.configPath, "error", err)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	logger.Info("agendod starting",
		"listen", conf.Listen,
		"storage_driver", conf.Storage.Driver,
		"reconcile", conf.ReconcileCron,
		"users", len(conf.Users))

	store, cleanup, err := openStorage(conf, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	eng := engine.New(store, recurrence.NewExpanderWithOptions(conf.ExpanderOptions()), logger)
	defer eng.Close()

	authStore := authmemory.New(authmemory.WithLogger(logger))
	for _, u := range conf.Users {
		if err := authStore.AddUser(u.Username, u.Password); err != nil {
			logger.Error("failed to register user", "username", u.Username, "error", err)
			os.Exit(1)
		}
	}

	router := server.NewRouter(store, eng, logger)
	handler := auth.Middleware(authStore, conf.Realm)(router)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	scheduler := startReconciler(ctx, conf, eng, logger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: handler,
	}

	go func() {
		logger.Info("http server listening", "addr", conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	logger.Info("agendod exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/agendo/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

func openStorage(conf *config.Config, logger *slog.Logger) (storage.Storage, func(), error) {
	switch conf.Storage.Driver {
	case "sqlite":
		store, err := sqlite.Open(sqlite.Config{
			Path:   conf.Storage.Path,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		}, nil
	default:
		return memory.New(), func() {}, nil
	}
}

// startReconciler schedules the redundant-override sweep for every
// configured user. Returns nil when no schedule is configured.
func startReconciler(ctx context.Context, conf *config.Config, eng *engine.Engine, logger *slog.Logger) *cron.Cron {
	if conf.ReconcileCron == "" || len(conf.Users) == 0 {
		return nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(conf.ReconcileCron, func() {
		for _, u := range conf.Users {
			removed, err := eng.Reconcile(ctx, u.Username)
			if err != nil {
				logger.Error("reconcile failed", "owner_id", u.Username, "error", err)
				continue
			}
			logger.Debug("reconcile finished", "owner_id", u.Username, "removed", removed)
		}
	})
	if err != nil {
		logger.Error("invalid reconcile schedule, reconciler disabled",
			"schedule", conf.ReconcileCron, "error", err)
		return nil
	}

	scheduler.Start()
	return scheduler
}
