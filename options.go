package invoice

import (
	"context"
	"log/slog"
	"time"

	"github.com/alnah/go-invoice/internal/imagefetch"
)

// Default pipeline timings.
const (
	DefaultSettleDelay     = time.Second
	DefaultStrategyTimeout = imagefetch.DefaultTimeout
)

// Option configures an Exporter.
type Option func(*Exporter)

// exporterConfig holds the values set through options.
type exporterConfig struct {
	settleDelay     time.Duration
	strategyTimeout time.Duration
	captureTimeout  time.Duration
	origin          string
	assetPath       string
	skipVisual      bool
}

// WithSettleDelay sets the pause between logo acquisition and capture.
// Panics if d < 0 (programmer error).
func WithSettleDelay(d time.Duration) Option {
	if d < 0 {
		panic("invoice: WithSettleDelay duration must not be negative")
	}
	return func(e *Exporter) {
		e.cfg.settleDelay = d
	}
}

// WithStrategyTimeout bounds each image load attempt of the default engine.
// Ignored when WithEngine is used. Panics if d <= 0.
func WithStrategyTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("invoice: WithStrategyTimeout duration must be positive")
	}
	return func(e *Exporter) {
		e.cfg.strategyTimeout = d
	}
}

// WithCaptureTimeout bounds page load and screenshot. Panics if d <= 0.
func WithCaptureTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("invoice: WithCaptureTimeout duration must be positive")
	}
	return func(e *Exporter) {
		e.cfg.captureTimeout = d
	}
}

// WithOrigin sets the application origin the default engine fetches from.
func WithOrigin(origin string) Option {
	return func(e *Exporter) {
		e.cfg.origin = origin
	}
}

// WithAssetPath overrides the preview template and stylesheet with files
// from dir (styles/invoice.css, templates/invoice.html). Missing files fall
// back to the embedded ones.
func WithAssetPath(dir string) Option {
	return func(e *Exporter) {
		e.cfg.assetPath = dir
	}
}

// WithSkipVisual goes straight to the template path.
func WithSkipVisual(skip bool) Option {
	return func(e *Exporter) {
		e.cfg.skipVisual = skip
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngine shares an image engine, and its cache, between exporters.
func WithEngine(engine *imagefetch.Engine) Option {
	return func(e *Exporter) {
		if engine != nil {
			e.logos = engine
		}
	}
}

// withCapturer replaces the browser capturer (tests).
func withCapturer(c capturer) Option {
	return func(e *Exporter) {
		e.capturer = c
	}
}

// withLogoSource replaces the image engine (tests).
func withLogoSource(l logoSource) Option {
	return func(e *Exporter) {
		e.logos = l
	}
}

// withSleep replaces the settle wait (tests).
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Exporter) {
		e.sleep = sleep
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
