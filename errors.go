package invoice

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for library operations.
var (
	ErrValidation         = errors.New("invalid invoice")
	ErrAcquisitionTimeout = errors.New("image acquisition timed out")
	ErrAcquisitionFailure = errors.New("image acquisition failed")
	ErrCapture            = errors.New("capture failed")
	ErrAssembly           = errors.New("PDF assembly failed")
	ErrBrowserConnect     = errors.New("failed to connect to browser")
	ErrPageCreate         = errors.New("failed to create browser page")
	ErrPageLoad           = errors.New("failed to load page")
	ErrPreviewRender      = errors.New("preview rendering failed")
	ErrPoolClosed         = errors.New("exporter pool closed")
)

// FieldError is one failed form check.
type FieldError struct {
	Field   string // dotted path, e.g. "customer.email" or "items[0].price"
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError lists every failed check of a form.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// exportRetryAdvice is appended to terminal export failures.
const exportRetryAdvice = "Please try again. If the problem persists, run with --verbose for more details."

// ExportError is the terminal failure of an export: every path was tried.
type ExportError struct {
	Number string // invoice number, empty when validation failed first
	Err    error
}

func (e *ExportError) Error() string {
	if e.Number == "" {
		return "export: " + e.Err.Error()
	}
	return fmt.Sprintf("export %s: %v", e.Number, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to a person when the export gives up.
func (e *ExportError) UserMessage() string {
	return fmt.Sprintf("Error generating PDF: %v\n\n%s", e.Err, exportRetryAdvice)
}
