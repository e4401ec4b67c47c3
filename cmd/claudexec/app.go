package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/audit"
	"github.com/HyphaGroup/claudexec/internal/cleanup"
	"github.com/HyphaGroup/claudexec/internal/config"
	"github.com/HyphaGroup/claudexec/internal/execution"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/process"
	"github.com/HyphaGroup/claudexec/internal/ratelimit"
	"github.com/HyphaGroup/claudexec/internal/task"
)

// app wires the components every subcommand shares
type app struct {
	cfg        *config.Config
	store      *task.Store
	resolver   *claude.Resolver
	launcher   *claude.Launcher
	limiter    *ratelimit.Limiter
	supervisor *execution.Supervisor
	audit      *audit.Logger
}

// newApp loads configuration and opens the store. Audit events go to
// auditOut so stdio transports can keep stdout clean.
func newApp(configDir string, auditOut io.Writer) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := task.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	auditLogger := audit.NewWithWriter(auditOut, true)
	resolver := claude.NewResolver(resolverConfig(cfg), &claude.InstallCache{})
	launcher := claude.NewLauncher(resolver, process.ShellSpawner{}, claude.PlanWatch(cfg.Executor.PlanWatch))
	launcher.OnFallback(func(ctx context.Context, primary error) {
		auditLogger.Log(&audit.Event{
			Operation:   audit.OpExecutionFallback,
			ExecutionID: logger.Value(ctx, logger.ContextKeyExecutionID),
			TaskID:      logger.Value(ctx, logger.ContextKeyTaskID),
			SessionID:   logger.Value(ctx, logger.ContextKeySessionID),
			RequestID:   logger.Value(ctx, logger.ContextKeyRequestID),
			Success:     false,
			Error:       primary.Error(),
		})
	})

	limiter := ratelimit.New(cfg.Launch.RatePerSecond, cfg.Launch.Burst)

	return &app{
		cfg:        cfg,
		store:      store,
		resolver:   resolver,
		launcher:   launcher,
		limiter:    limiter,
		supervisor: execution.NewSupervisor(store, limiter, auditLogger),
		audit:      auditLogger,
	}, nil
}

// resolverConfig maps the executor section onto resolver inputs. Extra
// search paths are probed after the built-in install dirs.
func resolverConfig(cfg *config.Config) claude.ResolverConfig {
	dirs := make([]string, 0, len(claude.DefaultSearchDirs)+len(cfg.Executor.SearchPaths))
	dirs = append(dirs, claude.DefaultSearchDirs...)
	dirs = append(dirs, cfg.Executor.SearchPaths...)

	return claude.ResolverConfig{
		Override:     cfg.Executor.Command,
		SettingsPath: cfg.Executor.ClaudeConfig,
		SearchDirs:   dirs,
	}
}

// newCleaner builds the retention job from the cleanup section
func (a *app) newCleaner() (*cleanup.Cleaner, error) {
	return cleanup.New(cleanup.Config{
		Schedule:  a.cfg.Cleanup.Schedule,
		Retention: time.Duration(a.cfg.Cleanup.RetentionHours) * time.Hour,
	}, a.store, a.limiter)
}

// Close stops running executions and closes the store
func (a *app) Close() {
	a.supervisor.Close()
	if err := a.store.Close(); err != nil {
		logger.Slog().Warn("failed to close store", "error", err)
	}
}
