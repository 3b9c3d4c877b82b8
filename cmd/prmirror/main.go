package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drewdunne/prmirror/internal/config"
	"github.com/drewdunne/prmirror/internal/cursor"
	"github.com/drewdunne/prmirror/internal/docker"
	"github.com/drewdunne/prmirror/internal/logging"
	"github.com/drewdunne/prmirror/internal/metrics"
	"github.com/drewdunne/prmirror/internal/mirror"
	"github.com/drewdunne/prmirror/internal/publisher"
	"github.com/drewdunne/prmirror/internal/registry"
	"github.com/drewdunne/prmirror/internal/repocache"
	"github.com/drewdunne/prmirror/internal/syncer"
	"github.com/joho/godotenv"
)

var version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runLoop(os.Args[2:]))
	case "once":
		os.Exit(runOnce(os.Args[2:]))
	case "prune-logs":
		os.Exit(runPruneLogs(os.Args[2:]))
	case "version":
		fmt.Printf("prmirror v%s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: prmirror <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run         Poll upstream and mirror merged pull requests until stopped")
	fmt.Println("  once        Run a single polling cycle")
	fmt.Println("  prune-logs  Delete mirror logs older than a number of days")
	fmt.Println("  version     Print version information")
}

// commonFlags registers the flags shared by every command that reads config.
func commonFlags(fs *flag.FlagSet) (configPath, envFile *string) {
	configPath = fs.String("config", "config.yaml", "Path to config file (optional)")
	envFile = fs.String("env-file", "", "Path to .env file (optional)")
	return configPath, envFile
}

func loadConfig(configPath, envFile string) (*config.Config, error) {
	// Load .env file if specified or exists
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("%w: loading env file %s: %v", config.ErrConfiguration, envFile, err)
		}
	} else {
		godotenv.Load(".env")
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds everything a polling command needs.
type app struct {
	syncer  *syncer.Syncer
	cleanup func()
}

func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	p, err := registry.New(cfg)
	if err != nil {
		return nil, err
	}

	user, pass := p.CloneCredentials()
	checkout := repocache.New(cfg.RepoDir(), user, pass)
	if cfg.Merge.CloneIfMissing && !checkout.Exists() {
		repo, err := p.GetRepository(ctx, cfg.Downstream.Owner, cfg.Downstream.Repo)
		if err != nil {
			return nil, fmt.Errorf("looking up downstream repository: %w", err)
		}
		slog.Info("cloning downstream repository", "url", repo.CloneURL, "dir", checkout.Dir())
		if err := checkout.Ensure(ctx, repo.CloneURL); err != nil {
			return nil, err
		}
	}

	cleanup := func() {}
	var runner mirror.Runner = mirror.ExecRunner{}
	if cfg.Merge.Runner == config.RunnerDocker {
		client, err := docker.NewClient()
		if err != nil {
			return nil, fmt.Errorf("creating docker client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("docker daemon unreachable: %w", err)
		}
		exists, err := client.ImageExists(ctx, cfg.Merge.Image)
		if err != nil {
			client.Close()
			return nil, err
		}
		if !exists {
			slog.Info("pulling merge image", "image", cfg.Merge.Image)
			if err := client.PullImage(ctx, cfg.Merge.Image); err != nil {
				client.Close()
				return nil, err
			}
		}
		runner = docker.NewRunner(client, cfg.Merge.Image, []string{"TARGET_BRANCH=" + cfg.TargetBranch})
		cleanup = func() { client.Close() }
	}

	var opts []mirror.Option
	if cfg.Merge.VerifyBranch {
		opts = append(opts, mirror.WithBranchChecker(checkout))
	}
	executor := mirror.NewExecutor(mirror.ExecutorConfig{
		Script:  cfg.Merge.Script,
		RepoDir: checkout.Dir(),
		Timeout: cfg.MergeTimeout(),
	}, runner, opts...)

	s := syncer.New(
		syncer.Config{
			Owner:        cfg.Upstream.Owner,
			Repo:         cfg.Upstream.Repo,
			TargetBranch: cfg.TargetBranch,
			Interval:     cfg.PollInterval(),
		},
		cursor.New(cfg.CursorPath(), cfg.StartPRID),
		p,
		executor,
		publisher.New(p, cfg.Downstream.Owner, cfg.Downstream.Repo, cfg.TargetBranch),
		logging.NewWriter(cfg.LogsDir()),
	)

	return &app{syncer: s, cleanup: cleanup}, nil
}

// start parses flags, loads config and wires the syncer. It returns a
// context cancelled on SIGINT or SIGTERM.
func start(name string, args []string) (context.Context, context.CancelFunc, *app, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath, envFile := commonFlags(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, logFile, err := logging.Setup(os.Stderr, logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a, err := setup(ctx, cfg)
	if err != nil {
		stop()
		logFile.Close()
		return nil, nil, nil, err
	}
	closeRunner := a.cleanup
	a.cleanup = func() {
		closeRunner()
		logFile.Close()
	}

	slog.Info("starting prmirror",
		"provider", cfg.Provider,
		"upstream", cfg.Upstream.Owner+"/"+cfg.Upstream.Repo,
		"downstream", cfg.Downstream.Owner+"/"+cfg.Downstream.Repo,
		"target_branch", cfg.TargetBranch)
	return ctx, stop, a, nil
}

func runLoop(args []string) int {
	ctx, stop, a, err := start("run", args)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return 1
	}
	defer stop()
	defer a.cleanup()
	defer logMetrics()

	if err := a.syncer.Run(ctx); err != nil {
		slog.Error("stopping on fatal error", "error", err)
		return 1
	}
	slog.Info("shutting down")
	return 0
}

func runOnce(args []string) int {
	ctx, stop, a, err := start("once", args)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return 1
	}
	defer stop()
	defer a.cleanup()
	defer logMetrics()

	res, err := a.syncer.RunCycle(ctx)
	if err != nil {
		slog.Error("cycle failed", "error", err, "cursor", res.Cursor, "halted_pr", res.Halted)
		return 1
	}

	slog.Info("cycle complete",
		"cursor", res.Cursor,
		"mirrored", len(res.Mirrored),
		"skipped", len(res.Skipped))
	return 0
}

func runPruneLogs(args []string) int {
	fs := flag.NewFlagSet("prune-logs", flag.ExitOnError)
	configPath, envFile := commonFlags(fs)
	days := fs.Int("older-than-days", 0, "Delete mirror logs older than this many days (required)")
	fs.Parse(args)

	if *days <= 0 {
		fmt.Fprintln(os.Stderr, "prune-logs: -older-than-days must be positive")
		fs.Usage()
		return 1
	}

	// Only the logs location is needed, so an incomplete config is fine here.
	if *envFile != "" {
		godotenv.Load(*envFile)
	}
	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("loading config", "error", err)
			return 1
		}
	}

	deleted, err := logging.NewCleaner(cfg.LogsDir(), *days).Cleanup()
	if err != nil {
		slog.Error("pruning logs", "dir", cfg.LogsDir(), "error", err)
		return 1
	}
	fmt.Printf("Deleted %d log file(s) from %s\n", deleted, cfg.LogsDir())
	return 0
}

func logMetrics() {
	m := metrics.Get()
	slog.Info("totals",
		"cycles", m.CyclesRun,
		"failed_cycles", m.CyclesFailed,
		"mirrored", m.PRsMirrored,
		"skipped", m.PRsSkipped,
		"merge_failures", m.MergeFailures,
		"publish_failures", m.PublishFailures)
}
