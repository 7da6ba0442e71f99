package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/njoerd114/saleslive/internal/config"
	"github.com/njoerd114/saleslive/internal/connectivity"
)

const (
	defaultEmulator      = "localhost:8080"
	defaultListen        = "127.0.0.1:8787"
	defaultProbeInterval = 15 * time.Second
	reachabilityTimeout  = 5 * time.Second
)

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt *Prompter
	logger *slog.Logger
	w      io.Writer

	// dial is used for the reachability check; nil means a real TCP dial.
	dial connectivity.DialFunc
}

// NewWizard creates a Wizard wired to the given I/O and logger.
func NewWizard(r io.Reader, w io.Writer, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt: NewPrompter(r, w),
		logger: logger,
		w:      w,
	}
}

// Run executes the interactive setup wizard and writes the result to cfgPath.
// It walks the user through the remote backend, the Firebase project, the
// connectivity probe and the local API address.
func (wiz *Wizard) Run(ctx context.Context, cfgPath string) error {
	fmt.Fprintf(wiz.w, "\nWelcome to SalesLive Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard writes the configuration used by `saleslive serve`.\n\n")

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	cfg := &config.Config{}

	// Step 1: remote backend.
	fmt.Fprintf(wiz.w, "Step 1/4: Remote Store\n")
	idx, err := wiz.prompt.Select("Where should bills be synced", []string{
		"Cloud Firestore (Firebase project)",
		"In-memory (demo mode, nothing leaves this process)",
	})
	if err != nil {
		return fmt.Errorf("selecting backend: %w", err)
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: Firebase project.
	fmt.Fprintf(wiz.w, "Step 2/4: Firebase Project\n")
	if idx == 0 {
		cfg.Remote.Backend = config.BackendFirestore
		cfg.Firestore.ProjectID = wiz.prompt.String("Project ID", os.Getenv(config.EnvFirebaseProject))
		cfg.Firestore.CredentialsFile = wiz.prompt.Optional("Service account key file", os.Getenv(config.EnvCredentials))
		if cfg.Firestore.CredentialsFile != "" {
			if _, statErr := os.Stat(cfg.Firestore.CredentialsFile); statErr != nil {
				fmt.Fprintf(wiz.w, "  ! %s is not readable yet: %v\n", cfg.Firestore.CredentialsFile, statErr)
			}
		}
		if wiz.prompt.Confirm("Use a local Firestore emulator?", false) {
			cfg.Firestore.EmulatorHost = wiz.prompt.String("Emulator host", defaultEmulator)
		}
		wiz.checkReachable(ctx, cfg)
	} else {
		cfg.Remote.Backend = config.BackendMemory
		fmt.Fprintf(wiz.w, "  Skipped: the in-memory backend needs no project.\n")
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: connectivity and API.
	fmt.Fprintf(wiz.w, "Step 3/4: Connectivity and Local API\n")
	cfg.Connectivity.ProbeInterval = wiz.prompt.Duration("How often to check connectivity? (1s-5m)",
		defaultProbeInterval, time.Second, 5*time.Minute)
	cfg.HTTP.Listen = wiz.prompt.String("API listen address", defaultListen)
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: write config.
	fmt.Fprintf(wiz.w, "Step 4/4: Save Configuration\n")
	if err := cfg.Write(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if _, err := config.Load(cfgPath); err != nil {
		return fmt.Errorf("written config does not validate: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", cfgPath)

	fmt.Fprintf(wiz.w, "Setup complete!\n")
	fmt.Fprintf(wiz.w, "  Start:   saleslive serve\n")
	fmt.Fprintf(wiz.w, "  Push:    saleslive sync-once\n")
	fmt.Fprintf(wiz.w, "  Status:  saleslive status\n\n")
	return nil
}

// checkReachable dials the remote once. Failure is only reported: bills are
// recorded offline and pushed once the network returns.
func (wiz *Wizard) checkReachable(ctx context.Context, cfg *config.Config) {
	addr := "firestore.googleapis.com:443"
	if cfg.Firestore.EmulatorHost != "" {
		addr = cfg.Firestore.EmulatorHost
	}

	fmt.Fprintf(wiz.w, "  Checking %s...", addr)
	mon := connectivity.NewMonitor(false, wiz.logger)
	prober := connectivity.NewProber(addr, 2*reachabilityTimeout, mon, wiz.dial, wiz.logger)

	ctx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()
	if prober.Probe(ctx) {
		fmt.Fprintf(wiz.w, " ✓\n")
		return
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintf(wiz.w, " cancelled\n")
		return
	}
	fmt.Fprintf(wiz.w, " unreachable\n")
	fmt.Fprintf(wiz.w, "  Sales will be recorded offline and pushed once it is reachable.\n")
}
