package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alnah/go-invoice/internal/corsdiag"
	"github.com/alnah/go-invoice/internal/imagefetch"
)

// ErrLogoUnreachable is returned by diagnose when every strategy failed.
var ErrLogoUnreachable = errors.New("no strategy could load the image")

// diagnoseReport is the outcome of diagnose, also its JSON form.
type diagnoseReport struct {
	URL       string              `json:"url"`
	Loaded    bool                `json:"loaded"`
	Strategy  string              `json:"strategy,omitempty"`
	Width     int                 `json:"width,omitempty"`
	Height    int                 `json:"height,omitempty"`
	CORSReady bool                `json:"cors_ready"`
	Attempts  []attemptReport     `json:"attempts"`
	Diagnosis *corsdiag.Diagnosis `json:"diagnosis,omitempty"`
}

type attemptReport struct {
	Strategy string `json:"strategy"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Millis   int64  `json:"ms"`
}

// runDiagnose runs the acquisition cascade against one URL and reports
// every attempt.
func runDiagnose(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseDiagnoseFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: diagnose needs exactly one URL", ErrUsage)
	}
	rawURL := positional[0]
	if err := imagefetch.ValidateURL(rawURL); err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common.config, env)
	if err != nil {
		return err
	}
	if err := mergePipelineFlags(&flags.pipeline, cfg); err != nil {
		return err
	}
	// Caching would hide the attempts of a second diagnosis in the same run.
	cfg.Images.CacheTTL = "0s"

	engine, err := newEngine(cfg, newLogger(env.Stderr, flags.common))
	if err != nil {
		return err
	}

	report := diagnose(ctx, engine, rawURL)
	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printDiagnoseReport(env.Stdout, report)
	}

	if !report.Loaded {
		return ErrLogoUnreachable
	}
	return nil
}

// diagnose collects the cascade outcome, natural size and CORS readiness.
func diagnose(ctx context.Context, engine *imagefetch.Engine, rawURL string) *diagnoseReport {
	res := engine.Resolve(ctx, rawURL)
	report := &diagnoseReport{
		URL:      rawURL,
		Loaded:   res.Bitmap != nil,
		Strategy: res.Strategy,
		Attempts: make([]attemptReport, 0, len(res.Attempts)),
	}
	for _, a := range res.Attempts {
		ar := attemptReport{
			Strategy: a.Strategy,
			OK:       a.Err == nil,
			Millis:   a.Duration.Round(time.Millisecond).Milliseconds(),
		}
		if a.Err != nil {
			ar.Error = a.Err.Error()
		}
		report.Attempts = append(report.Attempts, ar)
	}

	if dims, ok := engine.Preload(ctx, rawURL); ok {
		report.Width, report.Height = dims.Width, dims.Height
	}
	report.CORSReady = engine.Probe(ctx, rawURL)
	if !report.CORSReady {
		d := corsdiag.Diagnose(rawURL)
		report.Diagnosis = &d
	}
	return report
}

// printDiagnoseReport outputs a human-readable report.
func printDiagnoseReport(w io.Writer, r *diagnoseReport) {
	fmt.Fprintln(w, "invoice diagnose")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "URL: %s\n", r.URL)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Attempts")
	for _, a := range r.Attempts {
		if a.OK {
			fmt.Fprintf(w, "  [OK]   %-20s %dms\n", a.Strategy, a.Millis)
		} else {
			fmt.Fprintf(w, "  [FAIL] %-20s %dms  %s\n", a.Strategy, a.Millis, a.Error)
		}
	}
	fmt.Fprintln(w)

	if r.Width > 0 {
		fmt.Fprintf(w, "Size: %dx%d\n", r.Width, r.Height)
	}
	if r.CORSReady {
		fmt.Fprintln(w, "Cross-origin: readable")
	} else {
		fmt.Fprintln(w, "Cross-origin: blocked")
		if d := r.Diagnosis; d != nil {
			fmt.Fprintf(w, "  Host: %s\n", d.Domain)
			for _, s := range d.Suggestions {
				fmt.Fprintf(w, "  - %s\n", s)
			}
			if len(d.AlternativeURLs) > 0 {
				fmt.Fprintln(w, "  Relay URLs to try:")
				for _, u := range d.AlternativeURLs {
					fmt.Fprintf(w, "    %s\n", u)
				}
			}
		}
	}
	fmt.Fprintln(w)

	if r.Loaded {
		fmt.Fprintf(w, "Status: Loaded via %s\n", r.Strategy)
	} else {
		fmt.Fprintln(w, "Status: Not loadable (see attempts above)")
	}
}
