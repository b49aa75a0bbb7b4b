package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-invoice/internal/assets"
	"github.com/alnah/go-invoice/internal/imagefetch"
)

// Exporter turns a Document into a PDF. It tries, in order, a capture of
// the rendered preview, a capture of a sanitized clone of it, and a
// template drawn without a browser. Only when all three fail does Export
// return an *ExportError.
//
// An Exporter owns one browser and is not safe for concurrent use; use an
// ExporterPool for batches.
type Exporter struct {
	cfg      exporterConfig
	logger   *slog.Logger
	logos    logoSource
	preview  *PreviewRenderer
	capturer capturer
	template *TemplateAssembler
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExporter creates an Exporter. Options override the defaults: 1s
// settle delay, 8s per image load attempt, embedded preview assets.
func NewExporter(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		cfg: exporterConfig{
			settleDelay:     DefaultSettleDelay,
			strategyTimeout: DefaultStrategyTimeout,
			captureTimeout:  DefaultCaptureTimeout,
			origin:          imagefetch.DefaultOrigin,
		},
		logger: discardLogger(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logos == nil {
		fetcher, err := imagefetch.NewHTTPFetcher(e.cfg.origin)
		if err != nil {
			return nil, fmt.Errorf("creating image fetcher: %w", err)
		}
		e.logos = imagefetch.New(fetcher,
			imagefetch.WithTimeout(e.cfg.strategyTimeout),
			imagefetch.WithLogger(e.logger),
		)
	}

	loader, err := assets.NewAssetResolver(e.cfg.assetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewRender, err)
	}
	if e.preview, err = NewPreviewRenderer(loader); err != nil {
		return nil, err
	}

	if e.capturer == nil {
		e.capturer = newRodCapturer(e.cfg.captureTimeout)
	}
	e.template = NewTemplateAssembler(e.logos, e.logger)
	return e, nil
}

// Close releases the browser.
func (e *Exporter) Close() error {
	if e.capturer != nil {
		return e.capturer.Close()
	}
	return nil
}

// BrowserVersion launches the browser if needed and reports its version.
func (e *Exporter) BrowserVersion(ctx context.Context) (string, error) {
	v, ok := e.capturer.(interface {
		Version(ctx context.Context) (string, error)
	})
	if !ok {
		return "", errors.New("capturer does not report a version")
	}
	return v.Version(ctx)
}

// Preview renders the HTML preview of doc, embedding the logo when it can
// be acquired.
func (e *Exporter) Preview(ctx context.Context, doc *Document) (string, error) {
	return e.preview.Render(ctx, doc, e.acquireLogo(ctx, doc.Company.Logo, e.logger))
}

// Export runs the fallback chain for doc. The context is checked between
// stages only; a started stage runs to completion or to its own timeout.
// A panic while capturing falls back like any capture failure; a panic
// anywhere else becomes an *ExportError.
func (e *Exporter) Export(ctx context.Context, doc *Document) (res *Result, err error) {
	if doc == nil {
		return nil, &ExportError{Err: fmt.Errorf("%w: nil document", ErrValidation)}
	}

	log := e.logger.With("run", uuid.NewString(), "invoice", doc.Number)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &ExportError{Number: doc.Number, Err: fmt.Errorf("internal error: %v", r)}
		}
		if err != nil {
			log.Error("export failed", "error", err, "elapsed", time.Since(start))
		}
	}()

	if err := doc.Verify(); err != nil {
		return nil, &ExportError{Number: doc.Number, Err: err}
	}

	if !e.cfg.skipVisual {
		res, err := e.exportVisual(ctx, doc, log)
		if err == nil {
			log.Info("exported", "path", res.Path, "elapsed", time.Since(start))
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ExportError{Number: doc.Number, Err: ctxErr}
		}
		log.Warn("visual export failed, drawing template", "error", err)
	}

	data, pages, err := e.template.AssembleFromData(ctx, doc)
	if err != nil {
		return nil, &ExportError{Number: doc.Number, Err: err}
	}
	log.Info("exported", "path", PathTemplate, "pages", pages, "elapsed", time.Since(start))
	return &Result{PDF: data, Filename: doc.Filename(), Path: PathTemplate, Pages: pages}, nil
}

// exportVisual acquires the logo, waits for the settle delay, renders the
// preview and tries the live capture, then the sanitized clone.
func (e *Exporter) exportVisual(ctx context.Context, doc *Document, log *slog.Logger) (*Result, error) {
	logo := e.acquireLogo(ctx, doc.Company.Logo, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.sleep(ctx, e.cfg.settleDelay); err != nil {
		return nil, err
	}

	markup, err := e.preview.Render(ctx, doc, logo)
	if err != nil {
		return nil, err
	}

	attempts := []struct {
		path    string
		capture func(context.Context, *CaptureRegion) (*Raster, error)
	}{
		{PathVisual, e.capturer.Capture},
		{PathClone, e.capturer.CaptureClone},
	}

	var errs []error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		region := &CaptureRegion{HTML: markup, Selector: RegionSelector}
		data, err := captureAndAssemble(ctx, a.capture, region, doc)
		if err == nil {
			return &Result{PDF: data, Filename: doc.Filename(), Path: a.path, Pages: 1}, nil
		}
		log.Warn("capture attempt failed", "path", a.path, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", a.path, err))
	}
	return nil, errors.Join(errs...)
}

// captureAndAssemble runs one capture attempt. A renderer panic is reported
// as ErrCapture so the caller moves on to the next path.
func captureAndAssemble(
	ctx context.Context,
	capture func(context.Context, *CaptureRegion) (*Raster, error),
	region *CaptureRegion,
	doc *Document,
) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("%w: renderer panic: %v", ErrCapture, r)
		}
	}()

	raster, err := capture(ctx, region)
	if err != nil {
		return nil, err
	}
	return AssembleVisual(raster, "Invoice "+doc.Number)
}

// acquireLogo resolves the logo for embedding. Invalid URLs and failed
// acquisitions mean "no logo"; they are logged, never returned.
func (e *Exporter) acquireLogo(ctx context.Context, logoURL string, log *slog.Logger) *imagefetch.Bitmap {
	if logoURL == "" {
		return nil
	}
	if !imagefetch.IsValidImageURL(logoURL) {
		log.Warn("logo URL is not a supported image URL, continuing without logo", "url", logoURL)
		return nil
	}

	res := e.logos.Resolve(ctx, logoURL)
	if res.Bitmap == nil {
		log.Warn("logo acquisition failed, continuing without logo", "url", logoURL, "error", acquisitionErr(res))
		return nil
	}
	log.Debug("logo acquired", "strategy", res.Strategy, "cached", res.Cached)
	return res.Bitmap
}

// acquisitionErr summarizes a failed cascade as ErrAcquisitionTimeout or
// ErrAcquisitionFailure.
func acquisitionErr(res imagefetch.Result) error {
	if res.TimedOut() {
		return ErrAcquisitionTimeout
	}
	if n := len(res.Attempts); n > 0 {
		return fmt.Errorf("%w: %s: %v", ErrAcquisitionFailure, res.Attempts[n-1].Strategy, res.Attempts[n-1].Err)
	}
	return ErrAcquisitionFailure
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
