package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/alnah/go-invoice/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxURLLength      = 2048 // Browser limit
	MaxPathLength     = 4096
	MaxDurationLength = 20 // "1m30s"
	MaxNotesLength    = 2000
	MaxRelays         = 16
)

// Defaults applied by DefaultConfig.
const (
	DefaultOrigin          = "http://localhost"
	DefaultSettleDelay     = "1s"
	DefaultStrategyTimeout = "8s"
	DefaultCacheTTL        = "30m"
	DefaultMaxDimension    = 2048
	DefaultRelayRate       = 10.0
	DefaultTaxRate         = 11.0
	DefaultDueDays         = 30
)

// Config holds all configuration for invoice generation.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Output  OutputConfig  `yaml:"output"`
	Export  ExportConfig  `yaml:"export"`
	Images  ImagesConfig  `yaml:"images"`
	Invoice InvoiceConfig `yaml:"invoice"`
	Profile ProfileConfig `yaml:"profile"`
	Assets  AssetsConfig  `yaml:"assets"`
}

// AppConfig identifies the application for cross-origin decisions.
type AppConfig struct {
	Origin string `yaml:"origin"` // scheme://host[:port] the logo is requested from
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Empty = current directory
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	SettleDelay     string `yaml:"settleDelay"`     // Pause before capture, e.g. "1s"
	StrategyTimeout string `yaml:"strategyTimeout"` // Per image load attempt, e.g. "8s"
	Workers         int    `yaml:"workers"`         // 0 = auto
	SkipVisual      bool   `yaml:"skipVisual"`      // Go straight to the template path
}

// ImagesConfig tunes logo acquisition.
type ImagesConfig struct {
	Relays       []string `yaml:"relays"`       // Relay templates with {url} or {raw}; empty = built-in list
	CacheTTL     string   `yaml:"cacheTTL"`     // "0" disables caching
	MaxDimension int      `yaml:"maxDimension"` // Longest side of rasterized logos
	RelayRate    float64  `yaml:"relayRate"`    // Relay requests per second
}

// InvoiceConfig holds defaults for new invoices.
type InvoiceConfig struct {
	TaxRate float64 `yaml:"taxRate"` // Percent, 0-100
	DueDays int     `yaml:"dueDays"` // Due date offset when the form has none
	Notes   string  `yaml:"notes"`   // Default notes (Markdown)
}

// ProfileConfig locates the company profile.
type ProfileConfig struct {
	Path string `yaml:"path"` // Empty = ~/.config/go-invoice/company.yaml
}

// AssetsConfig points at a directory overriding the embedded preview assets.
type AssetsConfig struct {
	Path string `yaml:"path"` // Contains styles/{name}.css and templates/{name}.html
}

// Validate checks lengths and ranges.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("app.origin", c.App.Origin, MaxURLLength); err != nil {
		return err
	}
	if c.App.Origin != "" {
		u, err := url.Parse(c.App.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: app.origin %q (want scheme://host)", ErrInvalidValue, c.App.Origin)
		}
	}

	if err := validateFieldLength("output.defaultDir", c.Output.DefaultDir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("profile.path", c.Profile.Path, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.path", c.Assets.Path, MaxPathLength); err != nil {
		return err
	}

	if err := validateDuration("export.settleDelay", c.Export.SettleDelay, false); err != nil {
		return err
	}
	if err := validateDuration("export.strategyTimeout", c.Export.StrategyTimeout, true); err != nil {
		return err
	}
	if c.Export.Workers < 0 {
		return fmt.Errorf("%w: export.workers must be >= 0, got %d", ErrInvalidValue, c.Export.Workers)
	}

	if len(c.Images.Relays) > MaxRelays {
		return fmt.Errorf("%w: images.relays has %d entries (max %d)", ErrInvalidValue, len(c.Images.Relays), MaxRelays)
	}
	for i, r := range c.Images.Relays {
		field := fmt.Sprintf("images.relays[%d]", i)
		if err := validateFieldLength(field, r, MaxURLLength); err != nil {
			return err
		}
		if !strings.Contains(r, "{url}") && !strings.Contains(r, "{raw}") {
			return fmt.Errorf("%w: %s must contain {url} or {raw}", ErrInvalidValue, field)
		}
	}
	if err := validateDuration("images.cacheTTL", c.Images.CacheTTL, false); err != nil {
		return err
	}
	if c.Images.MaxDimension < 0 {
		return fmt.Errorf("%w: images.maxDimension must be >= 0, got %d", ErrInvalidValue, c.Images.MaxDimension)
	}
	if c.Images.RelayRate < 0 {
		return fmt.Errorf("%w: images.relayRate must be >= 0, got %.2f", ErrInvalidValue, c.Images.RelayRate)
	}

	if c.Invoice.TaxRate < 0 || c.Invoice.TaxRate > 100 {
		return fmt.Errorf("%w: invoice.taxRate must be between 0 and 100, got %.2f", ErrInvalidValue, c.Invoice.TaxRate)
	}
	if c.Invoice.DueDays < 0 {
		return fmt.Errorf("%w: invoice.dueDays must be >= 0, got %d", ErrInvalidValue, c.Invoice.DueDays)
	}
	if err := validateFieldLength("invoice.notes", c.Invoice.Notes, MaxNotesLength); err != nil {
		return err
	}

	return nil
}

// SettleDelay returns the parsed export.settleDelay, or the default.
func (c *Config) SettleDelay() time.Duration {
	return parseDuration(c.Export.SettleDelay, DefaultSettleDelay)
}

// StrategyTimeout returns the parsed export.strategyTimeout, or the default.
func (c *Config) StrategyTimeout() time.Duration {
	return parseDuration(c.Export.StrategyTimeout, DefaultStrategyTimeout)
}

// CacheTTL returns the parsed images.cacheTTL, or the default.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Images.CacheTTL, DefaultCacheTTL)
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateDuration accepts an empty value (default applies).
func validateDuration(fieldName, value string, positive bool) error {
	if value == "" {
		return nil
	}
	if err := validateFieldLength(fieldName, value, MaxDurationLength); err != nil {
		return err
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, fieldName, value, err)
	}
	if d < 0 || (positive && d == 0) {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidValue, fieldName, value)
	}
	return nil
}

func parseDuration(value, fallback string) time.Duration {
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Origin: DefaultOrigin},
		Export: ExportConfig{
			SettleDelay:     DefaultSettleDelay,
			StrategyTimeout: DefaultStrategyTimeout,
		},
		Images: ImagesConfig{
			CacheTTL:     DefaultCacheTTL,
			MaxDimension: DefaultMaxDimension,
			RelayRate:    DefaultRelayRate,
		},
		Invoice: InvoiceConfig{
			TaxRate: DefaultTaxRate,
			DueDays: DefaultDueDays,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Values missing from the file keep their defaults.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.ReadFile(configPath, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UserDir returns ~/.config/go-invoice (or the OS equivalent).
func UserDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "go-invoice"), nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-invoice/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	if userDir, err := UserDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userDir, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// SearchedPaths lists the locations LoadConfig tries for name, for hints.
func SearchedPaths(name string) []string {
	paths := []string{name + ".yaml", name + ".yml"}
	if userDir, err := UserDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, name+".yaml"), filepath.Join(userDir, name+".yml"))
	}
	return paths
}
