package main

import (
	"errors"
	"os"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/imagefetch"
	"github.com/alnah/go-invoice/internal/profile"
)

// Exit codes for the invoice CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every invoice exported
	ExitGeneral = 1 // General/unexpected error, or some exports failed
	ExitUsage   = 2 // Invalid flags, config, or invoice data
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, invoice.ErrBrowserConnect) ||
		errors.Is(err, invoice.ErrPageCreate) ||
		errors.Is(err, invoice.ErrPageLoad) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadForm) ||
		errors.Is(err, ErrWritePDF) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, invoice.ErrValidation) ||
		errors.Is(err, imagefetch.ErrInvalidURL) ||
		errors.Is(err, profile.ErrIncomplete) ||
		errors.Is(err, invoice.ErrPreviewRender) {
		return ExitUsage
	}

	return ExitGeneral
}
