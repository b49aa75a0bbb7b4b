package main

// Notes:
// - run: we test dispatch and exit codes without a browser. Export itself is
//   covered in generate_test.go through --template-only.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"context"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestRun - Command dispatch
// ---------------------------------------------------------------------------

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no command", []string{"invoice"}, ExitUsage, "", "Usage: invoice"},
		{"unknown command", []string{"invoice", "frobnicate"}, ExitUsage, "", "Unknown command: frobnicate"},
		{"version", []string{"invoice", "version"}, ExitSuccess, "invoice dev", ""},
		{"version flag", []string{"invoice", "--version"}, ExitSuccess, "invoice dev", ""},
		{"help", []string{"invoice", "help"}, ExitSuccess, "Commands:", ""},
		{"help generate", []string{"invoice", "help", "generate"}, ExitSuccess, "--template-only", ""},
		{"help unknown", []string{"invoice", "help", "nope"}, ExitUsage, "", "Unknown command: nope"},
		{"generate help flag", []string{"invoice", "generate", "--help"}, ExitSuccess, "", "Usage: invoice generate"},
		{"generate no input", []string{"invoice", "generate"}, ExitIO, "", "no invoice file specified"},
		{"generate bad flag", []string{"invoice", "generate", "--bogus"}, ExitUsage, "", "invalid usage"},
		{"generate missing file", []string{"invoice", "generate", "/nonexistent/a.yaml"}, ExitIO, "", "failed to read invoice file"},
		{"generate missing config", []string{"invoice", "generate", "-c", "no-such-config", "a.yaml"}, ExitUsage, "", "hint:"},
		{"diagnose no url", []string{"invoice", "diagnose"}, ExitUsage, "", "exactly one URL"},
		{"diagnose bad url", []string{"invoice", "diagnose", "ftp://x.com/a.png"}, ExitUsage, "", "invalid image URL"},
		{"profile no subcommand", []string{"invoice", "profile"}, ExitUsage, "", "needs a subcommand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			te := newTestEnv(t)
			code := run(context.Background(), tt.args, te.Environment)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d\nstderr: %s", code, tt.wantCode, te.stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(te.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout missing %q:\n%s", tt.wantStdout, te.stdout.String())
			}
			if tt.wantStderr != "" && !strings.Contains(te.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, te.stderr.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestNewLogger - Level selection
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		flags     commonFlags
		wantDebug bool
		wantWarn  bool
	}{
		{"default", commonFlags{}, false, true},
		{"verbose", commonFlags{verbose: true}, true, true},
		{"quiet", commonFlags{quiet: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf strings.Builder
			logger := newLogger(&buf, tt.flags)
			logger.Debug("debug-line")
			logger.Warn("warn-line")

			if got := strings.Contains(buf.String(), "debug-line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(buf.String(), "warn-line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestMergePipelineFlags - Flags over config
// ---------------------------------------------------------------------------

func TestMergePipelineFlags(t *testing.T) {
	t.Parallel()

	t.Run("overrides set fields", func(t *testing.T) {
		t.Parallel()

		cfg := newTestEnv(t).Config
		f := &pipelineFlags{origin: "https://app.example.com", strategyTimeout: "3s"}
		if err := mergePipelineFlags(f, cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.App.Origin != "https://app.example.com" {
			t.Errorf("Origin = %q", cfg.App.Origin)
		}
		if cfg.Export.StrategyTimeout != "3s" {
			t.Errorf("StrategyTimeout = %q", cfg.Export.StrategyTimeout)
		}
		if cfg.Export.SettleDelay != "0s" {
			t.Errorf("SettleDelay = %q, want untouched 0s", cfg.Export.SettleDelay)
		}
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		t.Parallel()

		cfg := newTestEnv(t).Config
		err := mergePipelineFlags(&pipelineFlags{strategyTimeout: "0s"}, cfg)
		if exitCodeFor(err) != ExitUsage {
			t.Errorf("exitCodeFor(%v) = %d, want %d", err, exitCodeFor(err), ExitUsage)
		}
	})
}
