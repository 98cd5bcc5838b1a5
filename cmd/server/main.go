package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/closeplan/internal/agent"
	"github.com/JonMunkholm/closeplan/internal/channel"
	"github.com/JonMunkholm/closeplan/internal/config"
	"github.com/JonMunkholm/closeplan/internal/core"
	"github.com/JonMunkholm/closeplan/internal/core/profiles"
	"github.com/JonMunkholm/closeplan/internal/logging"
	"github.com/JonMunkholm/closeplan/internal/metrics"
	"github.com/JonMunkholm/closeplan/internal/sheet"
	"github.com/JonMunkholm/closeplan/internal/store"
	"github.com/JonMunkholm/closeplan/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	if err := profiles.ApplyCatalogueFile(cfg.Import.PicklistFile); err != nil {
		return err
	}
	slog.Info("profiles registered", "count", core.ProfileCount())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	hub := channel.NewHub()
	defer hub.Close()

	var (
		importRec      core.Recorder
		agentRec       agent.Recorder
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rec := metrics.New(reg)
		importRec, agentRec, metricsHandler = rec, rec, rec.Handler()
	}

	records := store.NewRecordStore(pool)
	service, err := core.NewService(core.Options{
		Decoder:        sheet.NewDecoder(),
		Directory:      store.NewOwnerDirectory(pool),
		Known:          records,
		Saver:          records,
		Notifier:       hub,
		Recorder:       importRec,
		Limiter:        core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		MaxFileSize:    cfg.Import.MaxFileSize,
		ResolveTimeout: cfg.Import.ResolveTimeout,
		SaveTimeout:    cfg.Import.SaveTimeout,
	})
	if err != nil {
		return err
	}

	invoker, generator, err := newAgentBackend(cfg.Agent)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, web.Deps{
		Imports:   service,
		Hub:       hub,
		Chat:      agent.NewService(invoker, agentRec, cfg.Agent.Timeout),
		Generator: generator,
		Metrics:   metricsHandler,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		service.StartSessionJanitor(gctx, cfg.Import.JanitorInterval, cfg.Import.SessionTTL)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		// Streams end when the hub closes, letting Shutdown drain them.
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newAgentBackend picks the chat backend for the configured provider.
func newAgentBackend(cfg config.AgentConfig) (agent.Invoker, agent.Generator, error) {
	if cfg.Provider != "openai" {
		slog.Info("chat agent disabled", "provider", cfg.Provider)
		return agent.Unavailable{}, agent.Unavailable{}, nil
	}

	inv, err := agent.NewOpenAIInvoker(agent.OpenAIConfig{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		MaxTurns:     cfg.MaxTurns,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("chat agent enabled", "provider", cfg.Provider, "model", cfg.Model)
	return inv, inv, nil
}
