package invoice

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Fields: []FieldError{
		{Field: "company.name", Message: "Company name is required"},
		{Field: "items[0].price", Message: "Price must be positive"},
	}}

	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError does not match ErrValidation")
	}
	want := "invalid invoice: company.name: Company name is required; items[0].price: Price must be positive"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !err.Has("items[0].price") || err.Has("customer.email") {
		t.Error("Has() reports the wrong fields")
	}
}

func TestExportError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       *ExportError
		wantError string
	}{
		{
			name:      "with number",
			err:       &ExportError{Number: "INV-1", Err: ErrAssembly},
			wantError: "export INV-1: PDF assembly failed",
		},
		{
			name:      "without number",
			err:       &ExportError{Err: ErrValidation},
			wantError: "export: invalid invoice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.wantError {
				t.Errorf("Error() = %q, want %q", got, tt.wantError)
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("ExportError does not unwrap to its cause")
			}
			msg := tt.err.UserMessage()
			if !strings.HasPrefix(msg, "Error generating PDF: ") || !strings.HasSuffix(msg, "--verbose for more details.") {
				t.Errorf("UserMessage() = %q", msg)
			}
		})
	}
}
