package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"

	"github.com/alnah/go-invoice/internal/assets"
	"github.com/alnah/go-invoice/internal/dateutil"
	"github.com/alnah/go-invoice/internal/imagefetch"
	"github.com/alnah/go-invoice/internal/pipeline"
)

// RegionID is the id of the element captured by the visual paths.
const RegionID = "invoice-preview"

// RegionSelector selects the captured element.
const RegionSelector = "#" + RegionID

// previewItem is an Item with display strings.
type previewItem struct {
	ID          string
	Name        string
	Description string
	Quantity    string
	Price       string
	Total       string
}

// previewData feeds the invoice template.
type previewData struct {
	RegionID     string
	Number       string
	LogoSrc      template.URL
	LogoEmbedded bool // LogoSrc is a data URI produced by the image engine
	Company      CompanyInfo
	Customer     Customer
	Date         string
	DueDate      string
	Items        []previewItem
	Subtotal     string
	TaxRate      string
	Tax          string
	Total        string
	Notes        template.HTML
}

// PreviewRenderer renders a Document as the printable HTML preview.
type PreviewRenderer struct {
	tmpl     *template.Template
	css      string
	notes    pipeline.NotesRenderer
	injector pipeline.CSSInjector
}

// NewPreviewRenderer loads the invoice template and stylesheet from loader.
// A nil loader uses the embedded assets.
func NewPreviewRenderer(loader assets.AssetLoader) (*PreviewRenderer, error) {
	if loader == nil {
		loader = assets.NewEmbeddedLoader()
	}

	src, err := loader.LoadTemplate(assets.DefaultTemplateName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewRender, err)
	}
	tmpl, err := template.New("invoice").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing template: %v", ErrPreviewRender, err)
	}
	css, err := loader.LoadStyle(assets.DefaultStyleName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreviewRender, err)
	}

	return &PreviewRenderer{
		tmpl:     tmpl,
		css:      css,
		notes:    pipeline.NewGoldmarkNotes(),
		injector: &pipeline.CSSInjection{},
	}, nil
}

// Render returns the full HTML document for doc. When logo is non-nil its
// data URI is embedded; otherwise a valid logo URL is referenced directly
// and hidden by the page if it fails to load.
func (r *PreviewRenderer) Render(ctx context.Context, doc *Document, logo *imagefetch.Bitmap) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	notes, err := r.notes.RenderNotes(ctx, doc.Notes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPreviewRender, err)
	}

	data := previewData{
		RegionID: RegionID,
		Number:   doc.Number,
		Company:  doc.Company,
		Customer: doc.Customer,
		Date:     dateutil.ReformatISO(doc.Date, dateutil.FormatLong),
		DueDate:  dateutil.ReformatISO(doc.DueDate, dateutil.FormatLong),
		Items:    make([]previewItem, len(doc.Items)),
		Subtotal: FormatRupiah(doc.Subtotal),
		TaxRate:  FormatPercent(doc.TaxRate),
		Tax:      FormatRupiah(doc.Tax),
		Total:    FormatRupiah(doc.Total),
		// #nosec G203 -- goldmark output with raw HTML disabled
		Notes: template.HTML(notes),
	}
	switch {
	case logo != nil:
		data.LogoSrc = template.URL(logo.DataURI) // #nosec G203 -- produced by the engine
		data.LogoEmbedded = true
	case imagefetch.IsValidImageURL(doc.Company.Logo):
		data.LogoSrc = template.URL(doc.Company.Logo) // #nosec G203 -- http(s) or data: only
	}
	for i, it := range doc.Items {
		data.Items[i] = previewItem{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Quantity:    strconv.Itoa(it.Quantity),
			Price:       FormatRupiah(it.Price),
			Total:       FormatRupiah(it.Total),
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPreviewRender, err)
	}
	return r.injector.InjectCSS(ctx, buf.String(), r.css), nil
}
