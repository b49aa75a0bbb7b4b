package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	flag "github.com/spf13/pflag"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/hints"
	"github.com/alnah/go-invoice/internal/imagefetch"
	"github.com/alnah/go-invoice/internal/profile"
)

// run dispatches args[1] and returns the process exit code.
func run(ctx context.Context, args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]
	var err error
	switch cmd {
	case "generate":
		err = runGenerate(ctx, rest, env)
	case "profile":
		err = runProfile(rest, env)
	case "diagnose":
		err = runDiagnose(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(ctx, rest, env)
	case "help", "-h", "--help":
		return runHelp(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "invoice %s\n", Version)
		return ExitSuccess
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}

	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// loadConfig resolves the configuration: the named or INVOICE_CONFIG file
// (or env.Config without one), then INVOICE_* overrides.
func loadConfig(name string, env *Environment) (*config.Config, error) {
	envCfg := loadEnvConfig()
	warnUnknownEnvVars(env.Stderr)

	if name == "" {
		name = envCfg.ConfigPath
	}

	var cfg *config.Config
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, &hintedError{err: fmt.Errorf("loading config: %w", err), hint: hints.ForConfigNotFound(config.SearchedPaths(name))}
			}
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		c := *env.Config
		cfg = &c
	}

	applyEnvConfig(envCfg, cfg)
	return cfg, nil
}

// mergePipelineFlags applies explicit flags over cfg and revalidates it.
func mergePipelineFlags(f *pipelineFlags, cfg *config.Config) error {
	if f.origin != "" {
		cfg.App.Origin = f.origin
	}
	if f.settleDelay != "" {
		cfg.Export.SettleDelay = f.settleDelay
	}
	if f.strategyTimeout != "" {
		cfg.Export.StrategyTimeout = f.strategyTimeout
	}
	if f.assets != "" {
		cfg.Assets.Path = f.assets
	}
	return cfg.Validate()
}

// newLogger builds the stderr logger. Warnings by default, debug with
// --verbose, errors only with --quiet.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openProfiles opens the profile store named by cfg.
func openProfiles(cfg *config.Config, env *Environment) (profile.Store, error) {
	store, err := env.Profiles(cfg.Profile.Path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	return store, nil
}

// hintedError carries a hint computed where the context is known.
type hintedError struct {
	err  error
	hint string
}

func (e *hintedError) Error() string { return e.err.Error() }
func (e *hintedError) Unwrap() error { return e.err }

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	var he *hintedError
	switch {
	case errors.As(err, &he):
		return he.hint
	case errors.Is(err, invoice.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, invoice.ErrAcquisitionTimeout):
		return hints.ForTimeout()
	case errors.Is(err, imagefetch.ErrInvalidURL):
		return hints.ForLogoURL()
	case errors.Is(err, profile.ErrIncomplete):
		return hints.ForIncompleteProfile()
	case errors.Is(err, ErrWritePDF):
		return hints.ForOutputDirectory()
	}
	return ""
}
