// Package invoice builds invoices and exports them as A4 PDFs.
//
// # Quick Start
//
// Build a Document from a form, create an exporter, export, and close:
//
//	doc, err := invoice.NewDocument(form, time.Now())
//	if err != nil {
//	    log.Fatal(err) // *invoice.ValidationError
//	}
//
//	exp, err := invoice.NewExporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exp.Close()
//
//	res, err := exp.Export(ctx, doc)
//	if err != nil {
//	    var ee *invoice.ExportError
//	    if errors.As(err, &ee) {
//	        fmt.Println(ee.UserMessage())
//	    }
//	    return
//	}
//	os.WriteFile(res.Filename, res.PDF, 0o644)
//
// # Export Pipeline
//
// Export tries each path in turn and stops at the first that succeeds:
//
//  1. Logo acquisition through the image engine (failure means no logo)
//  2. Preview rendering to HTML after a settle delay
//  3. Visual path: headless Chrome screenshot of #invoice-preview, fitted
//     onto one A4 page
//  4. Clone path: the same capture from a sanitized copy of the markup
//  5. Template path: the invoice drawn with PDF primitives, paginated
//
// Result.Path reports which one produced the PDF. When all fail, Export
// returns an *ExportError.
//
// # Configuration
//
//	exp, err := invoice.NewExporter(
//	    invoice.WithSettleDelay(500*time.Millisecond),
//	    invoice.WithStrategyTimeout(5*time.Second),
//	    invoice.WithAssetPath("/path/to/assets"),
//	    invoice.WithLogger(slog.Default()),
//	)
//
// # Parallel Processing
//
// Each Exporter owns a browser. For batches, use ExporterPool:
//
//	pool := invoice.NewExporterPool(invoice.ResolvePoolSize(0), nil)
//	defer pool.Close()
//
//	exp, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release(exp)
//
// # Custom Assets
//
// Override the preview template and stylesheet with a directory:
//
//	assets/
//	├── styles/
//	│   └── invoice.css
//	└── templates/
//	    └── invoice.html
//
// Missing files fall back to the embedded defaults.
package invoice
