// SalesLive is the offline-first billing core of a point-of-sale device.
// Bills are written to a local SQLite store first and pushed to Cloud
// Firestore whenever the remote store is reachable.
//
// Usage:
//
//	saleslive setup [--config <path>]      # interactive first-run wizard
//	saleslive serve [--config <path>]      # local API + background sync
//	saleslive sync-once [--config <path>]  # push pending bills then exit
//	saleslive status [--config <path>]     # show config and local state
//	saleslive version                      # print version
//
// Every subcommand also accepts --env <path> (default ".env") to load
// environment variables before the config is read.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/njoerd114/saleslive/internal/api"
	"github.com/njoerd114/saleslive/internal/config"
	"github.com/njoerd114/saleslive/internal/connectivity"
	"github.com/njoerd114/saleslive/internal/insights"
	"github.com/njoerd114/saleslive/internal/remote"
	"github.com/njoerd114/saleslive/internal/repository"
	"github.com/njoerd114/saleslive/internal/setup"
	"github.com/njoerd114/saleslive/internal/state"
	syncp "github.com/njoerd114/saleslive/internal/sync"
	"github.com/njoerd114/saleslive/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run(args []string) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:])
	case "serve":
		return runServe(args[1:])
	case "sync-once":
		return runSyncOnce(args[1:])
	case "status":
		return runStatus(args[1:])
	case "version":
		fmt.Println("saleslive", version)
		return nil
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	}
	return fmt.Errorf("unknown command %q, run 'saleslive help' for usage", args[0])
}

// printUsage shows help and suggests setup if no config exists.
func printUsage(w io.Writer) {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(w, "SalesLive: offline-first billing with Firestore sync")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  saleslive setup [--config ...]      Interactive first-run wizard")
	fmt.Fprintln(w, "  saleslive serve [--config ...]      Run the local API and background sync")
	fmt.Fprintln(w, "  saleslive sync-once [--config ...]  Push pending bills then exit")
	fmt.Fprintln(w, "  saleslive status [--config ...]     Show config and local state")
	fmt.Fprintln(w, "  saleslive version                   Print version")
	fmt.Fprintln(w, "")

	if cfgErr != nil {
		fmt.Fprintln(w, "No config file found. Run 'saleslive setup' to get started.")
	}
}

// --- Flags -------------------------------------------------------------------

type commonFlags struct {
	configPath string
	envPath    string
	verbose    bool
}

func parseFlags(name string, args []string) (commonFlags, error) {
	var f commonFlags
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	fs.StringVar(&f.configPath, "config", defaultCfg, "path to config.yaml")
	fs.StringVar(&f.envPath, "env", ".env", "path to a dotenv file loaded before the config")
	fs.BoolVar(&f.verbose, "verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if err := config.LoadDotEnv(f.envPath); err != nil {
		return f, err
	}
	return f, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(telemetry.NewLogHandler(console, "saleslive"))
	slog.SetDefault(logger)
	return logger
}

// --- Subcommands -------------------------------------------------------------

// runSetup launches the interactive setup wizard.
func runSetup(args []string) error {
	f, err := parseFlags("setup", args)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return setup.NewWizard(os.Stdin, os.Stdout, logger).Run(ctx, f.configPath)
}

// runServe starts the connectivity prober, the sync worker and the HTTP API,
// and runs them until a signal arrives or one of them fails.
func runServe(args []string) error {
	f, err := parseFlags("serve", args)
	if err != nil {
		return err
	}
	logger := newLogger(f.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := open(ctx, f.configPath, logger)
	if err != nil {
		return err
	}
	defer app.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.prober.Run(gctx) })
	g.Go(func() error { return app.engine.Run(gctx) })
	g.Go(func() error { return app.server.Run(gctx, app.cfg.HTTP.Listen) })

	logger.Info("saleslive serving",
		"listen", app.cfg.HTTP.Listen,
		"backend", app.cfg.Remote.Backend,
		"probe_interval", app.cfg.Connectivity.ProbeInterval,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// runSyncOnce probes connectivity once and pushes every pending bill.
func runSyncOnce(args []string) error {
	f, err := parseFlags("sync-once", args)
	if err != nil {
		return err
	}
	logger := newLogger(f.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := open(ctx, f.configPath, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if !app.prober.Probe(ctx) {
		pending, _ := app.store.CountPending(ctx, "")
		logger.Warn("remote store unreachable, nothing pushed", "pending", pending)
		return nil
	}

	stats, err := app.engine.SyncPendingData(ctx)
	logger.Info("sync complete",
		"pushed", stats.Pushed,
		"marked", stats.Marked,
		"stale", stats.Stale,
	)
	return err
}

// runStatus prints the current configuration and local store state.
func runStatus(args []string) error {
	f, err := parseFlags("status", args)
	if err != nil {
		return err
	}

	fmt.Println("SalesLive Status")
	fmt.Println("────────────────")

	cfg, loadErr := config.Load(f.configPath)
	switch {
	case loadErr == nil:
		fmt.Printf("  Config:    %s ✓\n", f.configPath)
		fmt.Printf("  Backend:   %s\n", cfg.Remote.Backend)
		if cfg.Remote.Backend == config.BackendFirestore {
			fmt.Printf("  Project:   %s\n", cfg.Firestore.ProjectID)
			if cfg.Firestore.EmulatorHost != "" {
				fmt.Printf("  Emulator:  %s\n", cfg.Firestore.EmulatorHost)
			}
		}
		fmt.Printf("  Probe:     %s every %s\n", cfg.Connectivity.ProbeAddress, cfg.Connectivity.ProbeInterval)
		fmt.Printf("  API:       http://%s\n", cfg.HTTP.Listen)
	case errors.Is(loadErr, os.ErrNotExist):
		fmt.Printf("  Config:    not found (%s)\n", f.configPath)
	default:
		fmt.Printf("  Config:    %s (invalid: %v)\n", f.configPath, loadErr)
	}

	dbPath, err := dbPathFor(cfg)
	if err != nil {
		return err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Printf("  Local DB:  not found\n")
		return nil
	}
	fmt.Printf("  Local DB:  %s (%s)\n", dbPath, humanSize(info.Size()))

	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening local DB at %q: %w", dbPath, err)
	}
	defer store.Close()
	pending, err := store.CountPending(context.Background(), "")
	if err != nil {
		return err
	}
	fmt.Printf("  Pending:   %d bill(s) awaiting upload\n", pending)
	return nil
}

// --- Wiring ------------------------------------------------------------------

// app holds the components shared by serve and sync-once.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *state.Store
	remote  syncp.RemoteStore
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	engine  *syncp.Engine
	server  *api.Server

	closers []func() error
}

// open loads the config and builds every component. The caller must call
// app.close.
func open(ctx context.Context, cfgPath string, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded", "backend", cfg.Remote.Backend, "project", cfg.Firestore.ProjectID)

	a := &app{cfg: cfg, log: logger}

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			InstanceID:     cfg.Telemetry.InstanceID,
			SampleRatio:    cfg.Telemetry.SampleRatio,
			ExportInterval: cfg.Telemetry.ExportInterval,
			Headers:        cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(ctx, telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			a.closers = append(a.closers, func() error {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdownTel(flushCtx)
			})
		}
	}

	// --- Local store ---------------------------------------------------------

	dbPath, err := dbPathFor(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store, err = state.Open(dbPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening local DB at %q: %w", dbPath, err)
	}
	a.closers = append(a.closers, a.store.Close)
	logger.Info("local DB opened", "path", dbPath)

	// --- Remote store --------------------------------------------------------

	switch cfg.Remote.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory remote store, pushed bills are lost on exit")
		a.remote = remote.NewMemory()
	default:
		fs, err := remote.NewFirestore(ctx, remote.Options{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsFile: cfg.Firestore.CredentialsFile,
			EmulatorHost:    cfg.Firestore.EmulatorHost,
			Timeout:         cfg.Remote.Timeout,
			MaxAttempts:     cfg.Remote.MaxAttempts,
		}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting to Firestore: %w", err)
		}
		a.remote = fs
		a.closers = append(a.closers, fs.Close)
	}

	// --- Connectivity, sync, API ---------------------------------------------

	a.monitor = connectivity.NewMonitor(false, logger)
	a.prober = connectivity.NewProber(cfg.Connectivity.ProbeAddress, cfg.Connectivity.ProbeInterval, a.monitor, nil, logger)
	a.engine = syncp.NewEngine(a.store, a.remote, a.monitor, logger)
	repo := repository.New(a.store, a.engine, a.remote, a.monitor, logger,
		repository.WithSummarizer(a.summarizer(ctx)))
	a.server = api.NewServer(repo, logger, api.WithAllowedOrigins(cfg.HTTP.AllowOrigins...))

	return a, nil
}

// summarizer builds the chart summary writer. Without an API key, or when
// the client cannot be created, summaries report the missing-key message.
func (a *app) summarizer(ctx context.Context) *insights.Summarizer {
	var opts []insights.Option
	if a.cfg.AI.Currency != "" {
		opts = append(opts, insights.WithCurrency(a.cfg.AI.Currency))
	}
	if a.cfg.AI.APIKey == "" {
		a.log.Info("AI summaries disabled (no api key)")
		return insights.New(nil, a.log, opts...)
	}
	gem, err := insights.NewGemini(ctx, a.cfg.AI.APIKey, a.cfg.AI.Model)
	if err != nil {
		a.log.Warn("AI summaries disabled", "error", err)
		return insights.New(nil, a.log, opts...)
	}
	a.closers = append(a.closers, gem.Close)
	return insights.New(gem, a.log, opts...)
}

// close releases components in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

func dbPathFor(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	if p := os.Getenv(config.EnvDBPath); p != "" {
		return p, nil
	}
	path, err := state.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("resolving local DB path: %w", err)
	}
	return path, nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
