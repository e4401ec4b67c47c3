package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HyphaGroup/claudexec/internal/agent"
	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/execution"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/mcp"
	"github.com/HyphaGroup/claudexec/internal/metrics"
	"github.com/HyphaGroup/claudexec/internal/task"
	"github.com/HyphaGroup/claudexec/internal/validation"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "task":
		cmdTask(os.Args[2:])
	case "launch":
		cmdLaunch(os.Args[2:])
	case "resume":
		cmdResume(os.Args[2:])
	case "normalize":
		cmdNormalize(os.Args[2:])
	case "resolve":
		cmdResolve(os.Args[2:])
	case "--version", "-v", "version":
		fmt.Printf("claudexec %s\n", Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`claudexec %s - Claude Code executor

Usage: claudexec <command> [options]

Commands:
  serve        Start the MCP server (streamable HTTP, or stdio with --stdio)
  task create  Create a task
  launch       Launch claude for a task and stream its output
  resume       Send a follow-up prompt to a claude session
  normalize    Normalize a captured stream-json log file
  resolve      Print the command claude would be launched with

Common Options:
  --config <dir>     Directory containing claudexec.jsonc

Config Precedence:
  1. --config flag
  2. ./config/claudexec.jsonc
  3. ~/.claudexec/config/claudexec.jsonc
  4. built-in defaults

Examples:
  claudexec serve
  claudexec serve --stdio
  claudexec task create --project web --title "Fix login redirect"
  claudexec launch --task task_1a2b3c4d --worktree ~/src/web --plan
  claudexec resume --session <uuid> --prompt "now add tests"
  claudexec normalize --worktree ~/src/web run.jsonl
`, Version)
}

// setupCLILogging sends logs to stderr so stdout carries only command output
func setupCLILogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger.SetOutput(os.Stderr, false, level)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing claudexec.jsonc")
	stdio := fs.Bool("stdio", false, "Serve MCP over stdin/stdout instead of HTTP")
	addrFlag := fs.String("addr", "", "HTTP listen address (overrides server.address)")
	_ = fs.Parse(args)

	// stdout is the protocol stream in stdio mode
	auditOut := os.Stdout
	if *stdio {
		auditOut = os.Stderr
	}

	a, err := newApp(*configDir, auditOut)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	if *stdio {
		logger.SetOutput(os.Stderr, a.cfg.Logging.JSON, slog.LevelInfo)
	} else if err := logger.Init(a.cfg.Logging.Dir, a.cfg.Logging.JSON, slog.LevelInfo); err != nil {
		fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()
	log := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Executions left running by a previous process can never finish
	if n, err := a.store.MarkRunningAsFailed(ctx, "server restarted"); err != nil {
		log.Warn("failed to recover running executions", "error", err)
	} else if n > 0 {
		log.Info("marked orphaned executions as failed", "count", n)
	}

	cleaner, err := a.newCleaner()
	if err != nil {
		fatalf("%v", err)
	}
	if err := cleaner.Start(); err != nil {
		fatalf("%v", err)
	}
	defer cleaner.Stop()

	resolved := a.resolver.Resolve(ctx, claude.ModeDefault)
	log.Info("claudexec starting", "version", Version, "data_dir", a.cfg.Storage.DataDir,
		"command", resolved.Command, "fallback", resolved.IsFallback)

	server := mcp.NewServer(mcp.ServerConfig{
		Store:      a.store,
		Supervisor: a.supervisor,
		Launcher:   a.launcher,
		Resolver:   a.resolver,
		Version:    Version,
		AuthTokens: a.cfg.Server.AuthTokens,
	})

	if *stdio {
		if err := server.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("stdio server error", "error", err)
		}
		return
	}

	metricsSrv := &http.Server{
		Addr:              a.cfg.Server.MetricsAddress,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	addr := a.cfg.Server.Address
	if *addrFlag != "" {
		addr = *addrFlag
	}
	if err := server.Serve(ctx, addr); err != nil {
		log.Error("server error", "error", err)
	}

	log.Info("shutting down", "running", len(a.supervisor.Running()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func cmdTask(args []string) {
	if len(args) < 1 || args[0] != "create" {
		fmt.Fprintln(os.Stderr, "Usage: claudexec task create --project <id> --title <title> [--description <text>]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("task create", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing claudexec.jsonc")
	projectID := fs.String("project", "", "Project ID (required)")
	title := fs.String("title", "", "Task title (required)")
	description := fs.String("description", "", "Task description")
	_ = fs.Parse(args[1:])

	setupCLILogging(false)
	if err := validation.ValidateProjectID(*projectID); err != nil {
		fatalf("%v", err)
	}
	if err := validation.ValidateTitle(*title); err != nil {
		fatalf("%v", err)
	}

	a, err := newApp(*configDir, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	t := &task.Task{ProjectID: *projectID, Title: *title, Description: *description}
	if err := a.store.CreateTask(context.Background(), t); err != nil {
		fatalf("%v", err)
	}
	fmt.Println(t.ID)
}

func cmdLaunch(args []string) {
	fs := flag.NewFlagSet("launch", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing claudexec.jsonc")
	taskID := fs.String("task", "", "Task ID (required)")
	worktree := fs.String("worktree", ".", "Directory claude works in")
	plan := fs.Bool("plan", false, "Start in plan mode")
	verbose := fs.Bool("verbose", false, "Log debug output to stderr")
	_ = fs.Parse(args)

	setupCLILogging(*verbose)
	if err := validation.ValidateTaskID(*taskID); err != nil {
		fatalf("%v", err)
	}
	dir := absWorktree(*worktree)

	a, err := newApp(*configDir, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	ctx := context.Background()
	t, err := a.store.GetTask(ctx, *taskID)
	if err != nil {
		fatalf("%v", err)
	}

	mode := claude.ParseMode(planMode(*plan))
	runAndReport(a, execution.StartRequest{
		Executor:  claude.NewExecutor(a.launcher, a.store, mode),
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		WorkDir:   dir,
		Variant:   agent.VariantNew,
	})
}

func cmdResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing claudexec.jsonc")
	sessionID := fs.String("session", "", "Claude session ID (required)")
	prompt := fs.String("prompt", "", "Follow-up prompt (required)")
	taskID := fs.String("task", "", "Task the follow-up belongs to")
	worktree := fs.String("worktree", ".", "Directory claude works in")
	plan := fs.Bool("plan", false, "Continue in plan mode")
	verbose := fs.Bool("verbose", false, "Log debug output to stderr")
	_ = fs.Parse(args)

	setupCLILogging(*verbose)
	if err := validation.ValidateSessionID(*sessionID); err != nil {
		fatalf("%v", err)
	}
	if strings.TrimSpace(*prompt) == "" {
		fatalf("--prompt is required")
	}
	dir := absWorktree(*worktree)

	a, err := newApp(*configDir, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	throttleKey := "session:" + *sessionID
	if *taskID != "" {
		t, err := a.store.GetTask(context.Background(), *taskID)
		if err != nil {
			fatalf("%v", err)
		}
		throttleKey = t.ProjectID
	}

	mode := claude.ParseMode(planMode(*plan))
	runAndReport(a, execution.StartRequest{
		Executor:  claude.NewFollowupExecutor(a.launcher, *sessionID, *prompt, mode),
		TaskID:    *taskID,
		ProjectID: throttleKey,
		WorkDir:   dir,
		Variant:   agent.VariantResume,
		SessionID: *sessionID,
		Prompt:    *prompt,
	})
}

// runAndReport starts req with stdout streamed to the terminal, waits for
// the process and prints the normalized conversation. Ctrl-C stops the
// execution.
func runAndReport(a *app, req execution.StartRequest) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req.Output = os.Stdout
	exec, err := a.supervisor.Start(ctx, req)
	if err != nil {
		if exec != nil {
			fatalf("execution %s: %v", exec.ID, err)
		}
		fatalf("%v", err)
	}
	fmt.Fprintf(os.Stderr, "execution %s started\n", exec.ID)

	if err := a.supervisor.Wait(ctx, exec.ID); err != nil {
		fmt.Fprintln(os.Stderr, "stopping execution...")
		_ = a.supervisor.Stop(exec.ID)
		_ = a.supervisor.Wait(context.Background(), exec.ID)
	}

	conv, err := a.supervisor.Normalize(context.Background(), exec.ID)
	if err != nil {
		fatalf("%v", err)
	}
	printJSON(conv)

	final, err := a.store.GetExecution(context.Background(), exec.ID)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Fprintf(os.Stderr, "execution %s %s\n", final.ID, final.Status)
	if final.Status != task.StatusCompleted {
		a.Close()
		os.Exit(1)
	}
}

func cmdNormalize(args []string) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	worktree := fs.String("worktree", "", "Directory the run worked in")
	plan := fs.Bool("plan", false, "Label the conversation as a plan-mode run")
	_ = fs.Parse(args)

	setupCLILogging(false)

	var data []byte
	var err error
	switch fs.NArg() {
	case 0:
		data, err = io.ReadAll(os.Stdin)
	case 1:
		data, err = os.ReadFile(fs.Arg(0))
	default:
		fatalf("normalize takes at most one log file")
	}
	if err != nil {
		fatalf("failed to read log: %v", err)
	}

	mode := claude.ParseMode(planMode(*plan))
	printJSON(claude.Normalize(string(data), *worktree, mode.ExecutorType()))
}

func cmdResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configDir := fs.String("config", "", "Directory containing claudexec.jsonc")
	plan := fs.Bool("plan", false, "Resolve the plan-mode command")
	verbose := fs.Bool("verbose", false, "Log resolution steps to stderr")
	_ = fs.Parse(args)

	setupCLILogging(*verbose)

	a, err := newApp(*configDir, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	resolved := a.resolver.Resolve(context.Background(), claude.ParseMode(planMode(*plan)))
	fmt.Println(resolved.Command)
	if resolved.IsFallback {
		fmt.Fprintln(os.Stderr, "note: no local claude-code install found, using npx")
	}
}
