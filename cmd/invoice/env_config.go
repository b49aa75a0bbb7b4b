package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-invoice/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string // INVOICE_CONFIG: config file name or path
	OutputDir  string // INVOICE_OUTPUT_DIR: where PDFs are written
	Workers    int    // INVOICE_WORKERS: parallel exporters

	// Tier 2 - Pipeline
	Origin          string // INVOICE_ORIGIN: application origin for CORS decisions
	SettleDelay     string // INVOICE_SETTLE_DELAY: pause before capture
	StrategyTimeout string // INVOICE_STRATEGY_TIMEOUT: per image load attempt
	SkipVisual      *bool  // INVOICE_SKIP_VISUAL: template path only

	// Tier 3 - Extended
	ProfilePath string   // INVOICE_PROFILE: company profile file
	AssetsPath  string   // INVOICE_ASSETS: preview asset directory
	TaxRate     *float64 // INVOICE_TAX_RATE: default tax percent
	Relays      []string // INVOICE_RELAYS: comma-separated relay templates
}

// knownEnvVars lists valid INVOICE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"INVOICE_CONFIG":           true,
	"INVOICE_OUTPUT_DIR":       true,
	"INVOICE_WORKERS":          true,
	"INVOICE_ORIGIN":           true,
	"INVOICE_SETTLE_DELAY":     true,
	"INVOICE_STRATEGY_TIMEOUT": true,
	"INVOICE_SKIP_VISUAL":      true,
	"INVOICE_PROFILE":          true,
	"INVOICE_ASSETS":           true,
	"INVOICE_TAX_RATE":         true,
	"INVOICE_RELAYS":           true,
	"INVOICE_CONTAINER":        true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers, booleans and durations are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:  os.Getenv("INVOICE_CONFIG"),
		OutputDir:   os.Getenv("INVOICE_OUTPUT_DIR"),
		Origin:      os.Getenv("INVOICE_ORIGIN"),
		ProfilePath: os.Getenv("INVOICE_PROFILE"),
		AssetsPath:  os.Getenv("INVOICE_ASSETS"),
	}

	if v := os.Getenv("INVOICE_WORKERS"); v != "" {
		if w, err := strconv.Atoi(v); err == nil && w > 0 {
			cfg.Workers = w
		}
	}
	if v := os.Getenv("INVOICE_SETTLE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.SettleDelay = v
		}
	}
	if v := os.Getenv("INVOICE_STRATEGY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StrategyTimeout = v
		}
	}
	if v := os.Getenv("INVOICE_SKIP_VISUAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SkipVisual = &b
		}
	}
	if v := os.Getenv("INVOICE_TAX_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 && r <= 100 {
			cfg.TaxRate = &r
		}
	}
	if v := os.Getenv("INVOICE_RELAYS"); v != "" {
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.Relays = append(cfg.Relays, r)
			}
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized INVOICE_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "INVOICE_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides file and default values with the set variables.
// Flags are applied afterwards, giving: flags > env > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.OutputDir != "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.Workers > 0 {
		cfg.Export.Workers = env.Workers
	}
	if env.Origin != "" {
		cfg.App.Origin = env.Origin
	}
	if env.SettleDelay != "" {
		cfg.Export.SettleDelay = env.SettleDelay
	}
	if env.StrategyTimeout != "" {
		cfg.Export.StrategyTimeout = env.StrategyTimeout
	}
	if env.SkipVisual != nil {
		cfg.Export.SkipVisual = *env.SkipVisual
	}
	if env.ProfilePath != "" {
		cfg.Profile.Path = env.ProfilePath
	}
	if env.AssetsPath != "" {
		cfg.Assets.Path = env.AssetsPath
	}
	if env.TaxRate != nil {
		cfg.Invoice.TaxRate = *env.TaxRate
	}
	if len(env.Relays) > 0 {
		cfg.Images.Relays = env.Relays
	}
}
