package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// pdfCreator is written into the document metadata.
const pdfCreator = "go-invoice"

// previewImage names the registered capture inside the PDF.
const previewImage = "invoice-preview"

// newA4 returns an empty A4 portrait document measured in millimetres.
func newA4(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreator(pdfCreator, true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.SetCompression(true)
	return pdf
}

// output serializes pdf, surfacing any error recorded while drawing.
func output(pdf *fpdf.Fpdf) ([]byte, error) {
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return buf.Bytes(), nil
}

// AssembleVisual places raster on a single A4 page as described by
// A4Layout().Fit.
func AssembleVisual(raster *Raster, title string) ([]byte, error) {
	if raster == nil || len(raster.PNG) == 0 {
		return nil, fmt.Errorf("%w: empty raster", ErrAssembly)
	}
	if raster.Width <= 0 || raster.Height <= 0 {
		return nil, fmt.Errorf("%w: raster size %dx%d", ErrAssembly, raster.Width, raster.Height)
	}

	pdf := newA4(title)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(previewImage, opts, bytes.NewReader(raster.PNG))
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: registering capture: %v", ErrAssembly, err)
	}

	p := A4Layout().Fit(raster.Width, raster.Height)
	pdf.ImageOptions(previewImage, p.X, p.Y, p.W, p.H, false, opts, 0, "")

	return output(pdf)
}
