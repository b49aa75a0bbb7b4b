package invoice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/alnah/go-invoice/internal/dateutil"
	"github.com/alnah/go-invoice/internal/imagefetch"
)

// Template page geometry, in millimetres.
const (
	tplMargin         = 20.0
	tplBreakAt        = 40.0 // distance from the bottom that forces a new page
	tplLogoW          = 40.0
	tplLogoH          = 20.0
	tplItemRow        = 12.0
	tplLineHeight     = 5.0
	tplFooterFromEdge = 20.0
	tplTotalsHeight   = 39.0 // separator to grand total baseline
	tplFont           = "helvetica"
	tplLogoImage      = "company-logo"
)

// logoSource runs the acquisition cascade for a logo URL.
// *imagefetch.Engine satisfies it.
type logoSource interface {
	Resolve(ctx context.Context, rawURL string) imagefetch.Result
	PNG(bm *imagefetch.Bitmap) ([]byte, error)
}

var _ logoSource = (*imagefetch.Engine)(nil)

// TemplateAssembler draws an invoice with PDF primitives, without a browser.
type TemplateAssembler struct {
	logos  logoSource
	logger *slog.Logger
}

// NewTemplateAssembler creates a TemplateAssembler acquiring logos through
// logos. A nil logos draws every invoice without its logo.
func NewTemplateAssembler(logos logoSource, logger *slog.Logger) *TemplateAssembler {
	if logger == nil {
		logger = discardLogger()
	}
	return &TemplateAssembler{logos: logos, logger: logger}
}

// AssembleFromData renders doc to PDF. The logo is acquired again through
// the image engine; a logo that cannot be acquired is left out.
func (a *TemplateAssembler) AssembleFromData(ctx context.Context, doc *Document) ([]byte, int, error) {
	if doc == nil {
		return nil, 0, fmt.Errorf("%w: nil document", ErrAssembly)
	}

	logo := a.logoPNG(ctx, doc.Company.Logo)
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	pdf := drawTemplate(doc, logo)
	data, err := output(pdf)
	if err != nil {
		return nil, 0, err
	}
	return data, pdf.PageCount(), nil
}

func (a *TemplateAssembler) logoPNG(ctx context.Context, logoURL string) []byte {
	if a.logos == nil || logoURL == "" || !imagefetch.IsValidImageURL(logoURL) {
		return nil
	}
	res := a.logos.Resolve(ctx, logoURL)
	if res.Bitmap == nil {
		a.logger.Warn("template path continues without logo", "url", logoURL, "error", acquisitionErr(res))
		return nil
	}
	data, err := a.logos.PNG(res.Bitmap)
	if err != nil {
		a.logger.Warn("logo not convertible to PNG", "error", err)
		return nil
	}
	return data
}

// templateWriter tracks the cursor while drawing.
type templateWriter struct {
	pdf        *fpdf.Fpdf
	tr         func(string) string
	pageWidth  float64
	pageHeight float64
	y          float64
}

func (w *templateWriter) text(s string, x, y, size float64, bold bool) {
	w.setFont(size, bold)
	w.pdf.Text(x, y, w.tr(s))
}

func (w *templateWriter) textRight(s string, right, y, size float64, bold bool) {
	w.setFont(size, bold)
	s = w.tr(s)
	w.pdf.Text(right-w.pdf.GetStringWidth(s), y, s)
}

func (w *templateWriter) textCenter(s string, center, y, size float64, bold bool) {
	w.setFont(size, bold)
	s = w.tr(s)
	w.pdf.Text(center-w.pdf.GetStringWidth(s)/2, y, s)
}

func (w *templateWriter) line(x1, y1, x2, y2 float64) {
	w.pdf.Line(x1, y1, x2, y2)
}

func (w *templateWriter) setFont(size float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	w.pdf.SetFont(tplFont, style, size)
}

// breakIfNeeded starts a new page when the cursor is too low.
func (w *templateWriter) breakIfNeeded() {
	w.breakBefore(0)
}

// breakBefore starts a new page unless height more millimetres fit above
// the break line.
func (w *templateWriter) breakBefore(height float64) {
	if w.y+height > w.pageHeight-tplBreakAt {
		w.pdf.AddPage()
		w.y = tplMargin
	}
}

// wrap splits s into lines no wider than width at the given size.
func (w *templateWriter) wrap(s string, width, size float64) []string {
	w.setFont(size, false)
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if para == "" {
			lines = append(lines, "")
			continue
		}
		for _, l := range w.pdf.SplitLines([]byte(w.tr(para)), width) {
			lines = append(lines, string(l))
		}
	}
	return lines
}

// block draws a heading followed by wrapped text, breaking pages per line.
func (w *templateWriter) block(heading, body string) {
	w.y += 20
	w.breakIfNeeded()
	w.text(heading, tplMargin, w.y, 11, true)
	w.y += 8
	for _, l := range w.wrap(body, w.pageWidth-2*tplMargin, 10) {
		w.breakIfNeeded()
		w.setFont(10, false)
		w.pdf.Text(tplMargin, w.y, l)
		w.y += tplLineHeight
	}
}

// drawTemplate lays out doc on as many A4 pages as the items need.
func drawTemplate(doc *Document, logoPNG []byte) *fpdf.Fpdf {
	pdf := newA4("Invoice " + doc.Number)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pw, ph := pdf.GetPageSize()

	w := &templateWriter{
		pdf:        pdf,
		tr:         pdf.UnicodeTranslatorFromDescriptor(""),
		pageWidth:  pw,
		pageHeight: ph,
		y:          tplMargin,
	}

	// Header
	w.text("INVOICE", tplMargin, w.y, 24, true)
	w.text("#"+doc.Number, tplMargin, w.y+10, 12, false)

	logoHeight := 0.0
	if len(logoPNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(tplLogoImage, opts, bytes.NewReader(logoPNG))
		if pdf.Ok() {
			pdf.ImageOptions(tplLogoImage, pw-60, w.y, tplLogoW, tplLogoH, false, opts, 0, "")
			logoHeight = tplLogoH
			w.y += logoHeight + 5
		} else {
			pdf.ClearError()
		}
	}

	// Company, right aligned below the logo
	right := pw - tplMargin
	companyY := w.y + logoHeight
	c := doc.Company
	w.textRight(c.Name, right, companyY, 14, true)
	w.textRight(c.Address, right, companyY+8, 10, false)
	w.textRight(c.City, right, companyY+16, 10, false)
	w.textRight(c.Phone, right, companyY+24, 10, false)
	w.textRight(c.Email, right, companyY+32, 10, false)
	w.y = max(w.y+50, companyY+40)

	w.line(tplMargin, w.y, right, w.y)
	w.y += 10

	// Bill To
	cu := doc.Customer
	w.text("Bill To:", tplMargin, w.y, 12, true)
	w.y += 8
	w.text(cu.Name, tplMargin, w.y, 11, true)
	w.y += 6
	w.text(cu.Address, tplMargin, w.y, 10, false)
	w.y += 6
	w.text(strings.TrimSpace(cu.City+" "+cu.PostalCode), tplMargin, w.y, 10, false)
	w.y += 6
	w.text("Phone: "+cu.Phone, tplMargin, w.y, 10, false)
	w.y += 6
	w.text("Email: "+cu.Email, tplMargin, w.y, 10, false)

	// Invoice details, beside the customer block
	detailY := w.y - 30
	w.text("Invoice Details:", pw-80, detailY, 12, true)
	detailY += 8
	w.text("Invoice Date: "+dateutil.ReformatISO(doc.Date, dateutil.FormatShort), pw-80, detailY, 10, false)
	detailY += 6
	w.text("Due Date: "+dateutil.ReformatISO(doc.DueDate, dateutil.FormatShort), pw-80, detailY, 10, false)
	w.y += 30

	// Items
	w.line(tplMargin, w.y, right, w.y)
	w.y += 8
	w.text("Item", tplMargin, w.y, 11, true)
	w.text("Qty", pw-100, w.y, 11, true)
	w.text("Price", pw-70, w.y, 11, true)
	w.text("Total", pw-40, w.y, 11, true)
	w.y += 5
	w.line(tplMargin, w.y, right, w.y)
	w.y += 8

	descWidth := pw - 100 - tplMargin - 5
	for _, it := range doc.Items {
		w.breakIfNeeded()
		w.text(it.Name, tplMargin, w.y, 10, false)
		if it.Description != "" {
			for _, l := range w.wrap(it.Description, descWidth, 8) {
				w.y += tplLineHeight
				w.breakIfNeeded()
				w.setFont(8, false)
				pdf.Text(tplMargin, w.y, l)
			}
		}
		w.textCenter(strconv.Itoa(it.Quantity), pw-95, w.y, 10, false)
		w.textRight(FormatRupiah(it.Price), pw-65, w.y, 10, false)
		w.textRight(FormatRupiah(it.Total), right, w.y, 10, false)
		w.y += tplItemRow
	}

	// Totals
	w.y += 5
	w.breakBefore(tplTotalsHeight)
	w.line(tplMargin, w.y, right, w.y)
	w.y += 15
	w.textRight("Subtotal: "+FormatRupiah(doc.Subtotal), right, w.y, 10, false)
	w.y += 8
	w.textRight(fmt.Sprintf("Tax (%s%%): %s", FormatPercent(doc.TaxRate), FormatRupiah(doc.Tax)), right, w.y, 10, false)
	w.y += 8
	w.line(pw-80, w.y, right, w.y)
	w.y += 8
	w.textRight("Total: "+FormatRupiah(doc.Total), right, w.y, 12, true)

	if doc.Notes != "" {
		w.block("Notes:", doc.Notes)
	}
	if c.BankInfo != "" {
		w.block("Payment Information:", c.BankInfo)
	}

	w.textCenter("Thank you for your business!", pw/2, ph-tplFooterFromEdge, 10, false)
	return pdf
}
