package invoice

import (
	"time"

	"github.com/alnah/go-invoice/internal/dateutil"
)

// Defaults applied by DefaultForm.
const (
	DefaultTaxRate = 11.0 // PPN
	DefaultDueDays = 30
)

// CompanyInfo identifies the issuer. It is also the saved profile.
type CompanyInfo struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	City     string `yaml:"city"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email"`
	Logo     string `yaml:"logo,omitempty"`     // http(s) or data: URL
	BankInfo string `yaml:"bankInfo,omitempty"` // free text, printed under the totals
}

// Customer is the billed party.
type Customer struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Address    string `yaml:"address"`
	City       string `yaml:"city"`
	PostalCode string `yaml:"postalCode,omitempty"`
}

// ItemInput is a line item as entered, before totals.
type ItemInput struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Quantity    int     `yaml:"quantity"`
	Price       float64 `yaml:"price"`
}

// Item is a priced line of a Document.
type Item struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Quantity    int     `yaml:"quantity"`
	Price       float64 `yaml:"price"`
	Total       float64 `yaml:"total"`
}

// FormData is the invoice as a person fills it in.
// Number and Date are generated by NewDocument when empty.
type FormData struct {
	Number   string      `yaml:"number,omitempty"`
	Date     string      `yaml:"date,omitempty"` // YYYY-MM-DD
	DueDate  string      `yaml:"dueDate"`        // YYYY-MM-DD
	TaxRate  float64     `yaml:"taxRate"`        // percent
	Notes    string      `yaml:"notes,omitempty"`
	Company  CompanyInfo `yaml:"company"`
	Customer Customer    `yaml:"customer"`
	Items    []ItemInput `yaml:"items"`
}

// DefaultForm returns an empty form with one blank item, the default tax
// rate and a due date DefaultDueDays after now.
func DefaultForm(now time.Time) FormData {
	return FormData{
		DueDate: dateutil.DueDate(now, DefaultDueDays),
		TaxRate: DefaultTaxRate,
		Items:   []ItemInput{{Quantity: 1}},
	}
}

// Document is the validated invoice snapshot handed to the exporter.
// Build it with NewDocument; its totals are consistent with its items.
type Document struct {
	Number   string      `yaml:"number"`
	Date     string      `yaml:"date"`
	DueDate  string      `yaml:"dueDate"`
	Company  CompanyInfo `yaml:"company"`
	Customer Customer    `yaml:"customer"`
	Items    []Item      `yaml:"items"`
	Subtotal float64     `yaml:"subtotal"`
	TaxRate  float64     `yaml:"taxRate"`
	Tax      float64     `yaml:"tax"`
	Total    float64     `yaml:"total"`
	Notes    string      `yaml:"notes,omitempty"`
}

// Filename is the conventional output name, "invoice-<number>.pdf".
func (d *Document) Filename() string {
	return "invoice-" + d.Number + ".pdf"
}

// Placement is an image rectangle on a page, in millimetres.
type Placement struct {
	X, Y, W, H float64
}

// Raster is a captured image of the preview.
type Raster struct {
	PNG    []byte
	Width  int // pixels
	Height int // pixels
}

// CaptureRegion is the markup to capture and the element to clip to.
// Width and Height are filled in by the capturer, in CSS pixels.
type CaptureRegion struct {
	HTML     string
	Selector string
	Width    int
	Height   int
}

// Result is a finished export.
type Result struct {
	PDF      []byte
	Filename string
	Path     string // which assembly produced PDF, one of the Path* constants
	Pages    int
}

// Export paths, in fallback order.
const (
	PathVisual   = "visual"
	PathClone    = "clone"
	PathTemplate = "template"
)
