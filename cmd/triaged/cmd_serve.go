package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curax/triage/internal/config"
	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/gateway"
	"github.com/curax/triage/internal/inference"
	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/internal/report"
	"github.com/curax/triage/internal/scheduler"
	"github.com/curax/triage/internal/server"
	"github.com/curax/triage/internal/session"
	"github.com/curax/triage/internal/speech"
	"github.com/curax/triage/internal/telegram"
	"github.com/curax/triage/pkg/llm"
	"github.com/curax/triage/pkg/llm/openai"
	"github.com/curax/triage/prompts"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "triaged.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// assessmentModel picks the catalog model the final assessment runs on:
// the first available diagnosis-capable model, else the configured default.
func assessmentModel(registry *model.Registry, fallback string) string {
	if models := registry.ListByCapability(string(inference.TaskDiagnosis)); len(models) > 0 {
		return models[0].ID
	}
	return fallback
}

// openStore selects the session store backend: Postgres when a DSN is
// configured, the JSON file store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.Postgres.DSN != "" {
		store, err := session.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	return session.NewFileStore(cfg.DataDir)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flowCfg, err := prompts.Load(cfg.FlowConfigPath)
	if err != nil {
		return fmt.Errorf("load flow config: %w", err)
	}

	// Stores
	sessions, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	audio := speech.NewAudioStore(cfg.DataDir)

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	// Model routing
	registry := model.FromSeeds(flowCfg.Models)
	router, err := inference.NewRouter(registry, provider, flowCfg.SystemPrompts, flowCfg.Disclaimer, inference.Options{
		BudgetReserve:    cfg.LLM.OutputReserve,
		TokenizerModel:   cfg.LLM.Model,
		MaxContextTokens: cfg.LLM.MaxContextTokens,
		DefaultSampling: llm.Sampling{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		},
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	fallback := inference.NewFallbackChain(router, flowCfg.FallbackOrder)

	// Session engine. Speech and model-backed assessment need an API key;
	// without one the engine runs text-only on the rule assessor.
	engineOpts := engine.Options{Audio: audio}
	if cfg.LLM.APIKey != "" {
		speechClient := speech.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, audio)
		engineOpts.Transcriber = speechClient
		engineOpts.Synthesizer = speechClient
		engineOpts.Assessor = engine.RouterAssessor{Router: router, ModelID: assessmentModel(registry, cfg.LLM.Model)}
	} else {
		slog.Warn("no LLM API key configured, running text-only with rule assessor")
	}
	eng := engine.New(sessions, flowCfg, engineOpts)

	// Gateway
	gw := gateway.New(eng, int64(cfg.MaxConcurrent))
	gw.Start(ctx)
	defer gw.Stop()

	// Model health checks
	sched := scheduler.New(registry, scheduler.CompleterProbe{Completer: provider}, cfg.HealthCheck.Schedule, slog.Default())
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start health scheduler: %w", err)
	}
	defer sched.Stop()

	reports := &report.Generator{Disclaimer: flowCfg.Disclaimer}

	slog.Info("triaged started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"models", registry.Size(),
		"store", fmt.Sprintf("%T", sessions),
		"pid_file", pidPath,
	)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, eng, reports, slog.Default())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// HTTP API
	srv := server.New(server.Options{
		Engine:   eng,
		Gateway:  gw,
		Router:   router,
		Fallback: fallback,
		Registry: registry,
		Reports:  reports,
		Audio:    audio,
	})
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv,
	}
	go func() {
		slog.Info("http server started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
