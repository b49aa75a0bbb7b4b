package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/corsdiag"
	"github.com/alnah/go-invoice/internal/dateutil"
	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/alnah/go-invoice/internal/hints"
	"github.com/alnah/go-invoice/internal/imagefetch"
	"github.com/alnah/go-invoice/internal/profile"
	"github.com/alnah/go-invoice/internal/yamlutil"
)

// Sentinel errors for generate.
var (
	ErrNoInput    = errors.New("no invoice file specified")
	ErrReadForm   = errors.New("failed to read invoice file")
	ErrWritePDF   = errors.New("failed to write PDF file")
	ErrSomeFailed = errors.New("some invoices failed")
	ErrDuplicate  = errors.New("duplicate invoice number")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// formExtensions are the invoice file extensions picked up from directories.
var formExtensions = []string{".yaml", ".yml"}

// job is one invoice file on its way to a PDF.
type job struct {
	InputPath string
	Doc       *invoice.Document
}

// ExportResult holds the outcome of a single export.
type ExportResult struct {
	InputPath  string
	OutputPath string
	Path       string // which assembly produced the PDF
	Pages      int
	Err        error
	Duration   time.Duration
}

// runGenerate exports every invoice file named in args.
func runGenerate(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseGenerateFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return ErrNoInput
	}

	cfg, err := loadConfig(flags.common.config, env)
	if err != nil {
		return err
	}
	mergeGenerateFlags(flags, cfg)
	if err := mergePipelineFlags(&flags.pipeline, cfg); err != nil {
		return err
	}
	logger := newLogger(env.Stderr, flags.common)

	files, err := discoverForms(positional)
	if err != nil {
		return err
	}

	store, err := openProfiles(cfg, env)
	if err != nil {
		return err
	}
	saved, hasSaved, err := store.Load()
	if err != nil {
		logger.Warn("ignoring unreadable company profile", "error", err)
		hasSaved = false
	}
	useProfile := hasSaved && !flags.noProfile

	now := env.Now()
	jobs := make([]job, 0, len(files))
	outputs := make(map[string]string, len(files))
	for i, path := range files {
		// Distinct timestamps keep generated invoice numbers apart within a batch.
		form, err := readForm(path, cfg, now.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			return err
		}
		if useProfile {
			form.Company = profile.Merge(saved, form.Company)
		}
		doc, err := invoice.NewDocument(form, now.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if prev, ok := outputs[doc.Filename()]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", ErrDuplicate, prev, path, doc.Filename())
		}
		outputs[doc.Filename()] = path
		jobs = append(jobs, job{InputPath: path, Doc: doc})
	}

	if flags.saveProfile {
		if err := store.Save(jobs[0].Doc.Company); err != nil {
			return err
		}
		if !flags.common.quiet {
			fmt.Fprintln(env.Stdout, "Saved company profile")
		}
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	if !flags.common.quiet {
		checkLogos(ctx, engine, jobs, env)
	}

	pool := invoice.NewExporterPool(invoice.ResolvePoolSize(cfg.Export.Workers), func() (*invoice.Exporter, error) {
		return invoice.NewExporter(exporterOptions(cfg, engine, logger)...)
	})
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn("closing exporters", "error", err)
		}
	}()
	logger.Debug("exporting", "invoices", len(jobs), "workers", pool.Size())

	results := exportBatch(ctx, pool, jobs, cfg.Output.DefaultDir)
	if failed := printResults(results, flags.common, env); failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrSomeFailed, failed, len(results))
	}
	return nil
}

// mergeGenerateFlags applies generate-only flags over cfg.
func mergeGenerateFlags(f *generateFlags, cfg *config.Config) {
	if f.output != "" {
		cfg.Output.DefaultDir = f.output
	}
	if f.workers > 0 {
		cfg.Export.Workers = f.workers
	}
	if f.templateOnly {
		cfg.Export.SkipVisual = true
	}
}

// discoverForms expands directories into their YAML files, sorted by name.
func discoverForms(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadForm, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadForm, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && hasFormExtension(e.Name()) {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, ErrNoInput
	}
	return files, nil
}

func hasFormExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range formExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// readForm decodes an invoice file over the configured defaults.
func readForm(path string, cfg *config.Config, now time.Time) (invoice.FormData, error) {
	form := invoice.DefaultForm(now)
	form.TaxRate = cfg.Invoice.TaxRate
	form.DueDate = dateutil.DueDate(now, cfg.Invoice.DueDays)
	form.Notes = cfg.Invoice.Notes
	form.Items = nil

	if err := yamlutil.ReadFile(path, &form); err != nil {
		return invoice.FormData{}, fmt.Errorf("%w: %v", ErrReadForm, err)
	}
	return form, nil
}

// newEngine builds the image engine shared by every exporter of a run.
func newEngine(cfg *config.Config, logger *slog.Logger) (*imagefetch.Engine, error) {
	fetcher, err := imagefetch.NewHTTPFetcher(cfg.App.Origin)
	if err != nil {
		return nil, fmt.Errorf("%w: app.origin: %v", config.ErrInvalidValue, err)
	}

	opts := []imagefetch.Option{
		imagefetch.WithTimeout(cfg.StrategyTimeout()),
		imagefetch.WithLogger(logger),
		imagefetch.WithCacheTTL(cfg.CacheTTL()),
	}
	if cfg.Images.MaxDimension > 0 {
		opts = append(opts, imagefetch.WithRasterizer(imagefetch.NewImageRasterizer(cfg.Images.MaxDimension)))
	}
	if len(cfg.Images.Relays) > 0 {
		opts = append(opts, imagefetch.WithRelays(imagefetch.RelaysFromTemplates(cfg.Images.Relays)))
	}
	if cfg.Images.RelayRate > 0 {
		opts = append(opts, imagefetch.WithRelayLimiter(rate.NewLimiter(rate.Limit(cfg.Images.RelayRate), 1)))
	}
	return imagefetch.New(fetcher, opts...), nil
}

// exporterOptions turns cfg into Exporter options.
func exporterOptions(cfg *config.Config, engine *imagefetch.Engine, logger *slog.Logger) []invoice.Option {
	return []invoice.Option{
		invoice.WithEngine(engine),
		invoice.WithLogger(logger),
		invoice.WithOrigin(cfg.App.Origin),
		invoice.WithSettleDelay(cfg.SettleDelay()),
		invoice.WithStrategyTimeout(cfg.StrategyTimeout()),
		invoice.WithAssetPath(cfg.Assets.Path),
		invoice.WithSkipVisual(cfg.Export.SkipVisual),
	}
}

// checkLogos warns, once per URL, about logos an anonymous cross-origin
// request cannot read. Acquisition still tries the other strategies.
func checkLogos(ctx context.Context, engine *imagefetch.Engine, jobs []job, env *Environment) {
	var tracker corsdiag.Tracker
	seen := make(map[string]bool)
	for _, j := range jobs {
		logo := j.Doc.Company.Logo
		if logo == "" || seen[logo] || strings.HasPrefix(logo, "data:") {
			continue
		}
		seen[logo] = true

		tracker.SetURL(logo)
		if !imagefetch.IsValidImageURL(logo) {
			fmt.Fprintf(env.Stderr, "warning: logo %s is not a supported image URL%s\n", logo, hints.ForLogoURL())
			continue
		}
		if engine.Probe(ctx, logo) {
			continue
		}
		d := tracker.Report(logo)
		fmt.Fprintf(env.Stderr, "warning: logo on %s blocks cross-origin reads, trying relays%s\n", d.Domain, hints.ForCORS(d))
	}
}

// exportBatch exports jobs on at most pool.Size() goroutines. Results keep
// the order of jobs.
func exportBatch(ctx context.Context, pool *invoice.ExporterPool, jobs []job, outDir string) []ExportResult {
	results := make([]ExportResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(pool.Size())
	var mu sync.Mutex

	for i, j := range jobs {
		g.Go(func() error {
			r := exportOne(ctx, pool, j, outDir)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// exportOne exports a single job and writes its PDF.
func exportOne(ctx context.Context, pool *invoice.ExporterPool, j job, outDir string) (result ExportResult) {
	start := time.Now()
	result.InputPath = j.InputPath
	defer func() { result.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	exp, err := pool.Acquire(ctx)
	if err != nil {
		result.Err = err
		return result
	}
	defer pool.Release(exp)

	res, err := exp.Export(ctx, j.Doc)
	if err != nil {
		result.Err = err
		return result
	}

	out := filepath.Join(outDir, res.Filename)
	if err := fileutil.WriteFileAtomic(out, res.PDF, filePermissions, dirPermissions); err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrWritePDF, err)
		return result
	}
	result.OutputPath = out
	result.Path = res.Path
	result.Pages = res.Pages
	return result
}

// printResults reports each export and returns the number of failures.
func printResults(results []ExportResult, f commonFlags, env *Environment) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			msg := r.Err.Error()
			var ee *invoice.ExportError
			if errors.As(r.Err, &ee) {
				msg = ee.UserMessage()
			}
			fmt.Fprintf(env.Stderr, "FAILED %s: %s\n", r.InputPath, msg)
			continue
		}

		if f.quiet {
			continue
		}
		if f.verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%s, %d page(s), %v)\n",
				r.InputPath, r.OutputPath, r.Path, r.Pages, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !f.quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", len(results)-failed, failed)
	}
	return failed
}
