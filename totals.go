package invoice

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-invoice/internal/dateutil"
)

// totalsTolerance absorbs float rounding when re-checking totals.
const totalsTolerance = 0.005

// Field limits enforced by NewDocument.
const (
	MaxItems       = 500
	MaxFieldLength = 500
	MaxNotesLength = 2000
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// numberPattern keeps invoice numbers usable as file names.
var numberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// MaxNumberLength bounds the invoice number, which ends up in the file name.
const MaxNumberLength = 64

// ItemTotal is quantity × price.
func ItemTotal(quantity int, price float64) float64 {
	return float64(quantity) * price
}

// CalculateTotals sums item totals and applies taxRate (percent).
func CalculateTotals(items []Item, taxRate float64) (subtotal, tax, total float64) {
	for _, it := range items {
		subtotal += ItemTotal(it.Quantity, it.Price)
	}
	tax = subtotal * (taxRate / 100)
	return subtotal, tax, subtotal + tax
}

// InvoiceNumber returns "INV-YYYYMMDD-NNNN", NNNN being the last four
// digits of now in Unix milliseconds.
func InvoiceNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 4 {
		ms = ms[len(ms)-4:]
	}
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), ms)
}

// NewDocument validates form and builds the export snapshot. Item ids are
// "item-1", "item-2", ...; a missing number or date is generated from now.
// Returns a *ValidationError listing every failed field, including totals
// that fail Verify.
func NewDocument(form FormData, now time.Time) (*Document, error) {
	if err := ValidateForm(form); err != nil {
		return nil, err
	}

	items := make([]Item, len(form.Items))
	for i, in := range form.Items {
		items[i] = Item{
			ID:          "item-" + strconv.Itoa(i+1),
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			Price:       in.Price,
			Total:       ItemTotal(in.Quantity, in.Price),
		}
	}
	subtotal, tax, total := CalculateTotals(items, form.TaxRate)

	doc := &Document{
		Number:   form.Number,
		Date:     form.Date,
		DueDate:  form.DueDate,
		Company:  form.Company,
		Customer: form.Customer,
		Items:    items,
		Subtotal: subtotal,
		TaxRate:  form.TaxRate,
		Tax:      tax,
		Total:    total,
		Notes:    form.Notes,
	}
	if doc.Number == "" {
		doc.Number = InvoiceNumber(now)
	}
	if doc.Date == "" {
		doc.Date = dateutil.FormatISO(now)
	}
	if err := doc.Verify(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ValidateForm runs every field check and returns a *ValidationError, or nil.
func ValidateForm(form FormData) error {
	var v validator

	if n := form.Number; n != "" {
		switch {
		case len(n) > MaxNumberLength:
			v.add("number", fmt.Sprintf("Invoice number exceeds %d characters", MaxNumberLength))
		case !numberPattern.MatchString(n) || strings.Contains(n, ".."):
			v.add("number", "Invoice number may only contain letters, digits, '.', '_' and '-'")
		}
	}

	c := form.Company
	v.required("company.name", c.Name, "Company name is required")
	v.email("company.email", c.Email, "Company email is required")
	v.required("company.phone", c.Phone, "Company phone is required")
	v.required("company.city", c.City, "City is required")
	v.required("company.address", c.Address, "Company address is required")
	if c.Logo != "" {
		if u, err := url.Parse(c.Logo); err != nil || u.Scheme == "" {
			v.add("company.logo", "Please enter a valid URL")
		}
	}

	cu := form.Customer
	v.required("customer.name", cu.Name, "Customer name is required")
	v.email("customer.email", cu.Email, "Email is required")
	v.required("customer.phone", cu.Phone, "Phone number is required")
	v.required("customer.city", cu.City, "City is required")
	v.required("customer.address", cu.Address, "Address is required")

	if len(form.Items) == 0 {
		v.add("items", "At least one item is required")
	}
	if len(form.Items) > MaxItems {
		v.add("items", fmt.Sprintf("At most %d items are allowed", MaxItems))
	}
	for i, it := range form.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		v.required(prefix+"name", it.Name, "Item name is required")
		if it.Quantity < 1 {
			v.add(prefix+"quantity", "Quantity must be at least 1")
		}
		if it.Price < 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			v.add(prefix+"price", "Price must be positive")
		}
	}

	if strings.TrimSpace(form.DueDate) == "" {
		v.add("dueDate", "Due date is required")
	} else if _, err := dateutil.ParseISO(form.DueDate); err != nil {
		v.add("dueDate", "Due date must be YYYY-MM-DD")
	}
	if form.Date != "" {
		if _, err := dateutil.ParseISO(form.Date); err != nil {
			v.add("date", "Invoice date must be YYYY-MM-DD")
		}
	}

	switch {
	case form.TaxRate < 0 || math.IsNaN(form.TaxRate):
		v.add("taxRate", "Tax rate must be positive")
	case form.TaxRate > 100:
		v.add("taxRate", "Tax rate cannot exceed 100%")
	}

	if len(form.Notes) > MaxNotesLength {
		v.add("notes", fmt.Sprintf("Notes exceed %d characters", MaxNotesLength))
	}

	return v.err()
}

// Verify re-checks the totals invariants of d.
func (d *Document) Verify() error {
	var v validator
	var subtotal float64
	for i, it := range d.Items {
		if !near(it.Total, ItemTotal(it.Quantity, it.Price)) {
			v.add(fmt.Sprintf("items[%d].total", i), fmt.Sprintf("%.2f != %d x %.2f", it.Total, it.Quantity, it.Price))
		}
		subtotal += it.Total
	}
	if !near(d.Subtotal, subtotal) {
		v.add("subtotal", fmt.Sprintf("%.2f != sum of items %.2f", d.Subtotal, subtotal))
	}
	if !near(d.Tax, d.Subtotal*d.TaxRate/100) {
		v.add("tax", fmt.Sprintf("%.2f != %.2f%% of subtotal", d.Tax, d.TaxRate))
	}
	if !near(d.Total, d.Subtotal+d.Tax) {
		v.add("total", fmt.Sprintf("%.2f != subtotal + tax", d.Total))
	}
	return v.err()
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= totalsTolerance
}

// validator collects field errors in check order.
type validator struct {
	fields []FieldError
}

func (v *validator) add(field, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: msg})
}

func (v *validator) required(field, value, msg string) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.add(field, msg)
	case len(value) > MaxFieldLength:
		v.add(field, fmt.Sprintf("exceeds %d characters", MaxFieldLength))
	}
}

func (v *validator) email(field, value, msg string) {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, msg)
		return
	}
	if !emailPattern.MatchString(value) {
		v.add(field, "Invalid email address")
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
