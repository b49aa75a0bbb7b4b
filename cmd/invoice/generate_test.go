package main

// Notes:
// - Every export here runs with --template-only, so no browser is launched.
//   The visual paths are covered by the root package tests with a fake capturer.

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-invoice/internal/config"
)

// ---------------------------------------------------------------------------
// TestRunGenerate - Template-only exports end to end
// ---------------------------------------------------------------------------

func TestRunGenerate_SingleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	in := writeFile(t, dir, "a.yaml", formYAML("INV-TEST-0001"))

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", out, in}, te.Environment)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr:\n%s", code, te.stderr.String())
	}

	pdf, err := os.ReadFile(filepath.Join(out, "invoice-INV-TEST-0001.pdf"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output is not a PDF: %q", pdf[:min(len(pdf), 8)])
	}
	if !strings.Contains(te.stdout.String(), "Created ") {
		t.Errorf("stdout = %q, want Created line", te.stdout.String())
	}
}

func TestRunGenerate_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "forms")
	if err := os.Mkdir(in, 0o750); err != nil {
		t.Fatal(err)
	}
	writeFile(t, in, "b.yaml", formYAML("INV-TEST-0002"))
	writeFile(t, in, "a.yml", formYAML("INV-TEST-0001"))
	writeFile(t, in, "readme.txt", "not an invoice")
	out := filepath.Join(dir, "out")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-w", "2", "-o", out, in}, te.Environment)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr:\n%s", code, te.stderr.String())
	}

	for _, name := range []string{"invoice-INV-TEST-0001.pdf", "invoice-INV-TEST-0002.pdf"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if !strings.Contains(te.stdout.String(), "2 succeeded, 0 failed") {
		t.Errorf("stdout = %q, want summary", te.stdout.String())
	}
}

func TestRunGenerate_GeneratedNumbersAreDistinct(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	form := companyYAML + customerAndItemsYAML
	a := writeFile(t, dir, "a.yaml", form)
	b := writeFile(t, dir, "b.yaml", form)
	out := filepath.Join(dir, "out")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-q", "-o", out, a, b}, te.Environment)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr:\n%s", code, te.stderr.String())
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d PDFs, want 2 with distinct numbers", len(entries))
	}
	if te.stdout.Len() != 0 {
		t.Errorf("quiet mode printed %q", te.stdout.String())
	}
}

func TestRunGenerate_ValidationError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeFile(t, dir, "a.yaml", companyYAML+"customer:\n  name: Budi\nitems: []\n")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", dir, in}, te.Environment)
	if code != ExitUsage {
		t.Fatalf("exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(te.stderr.String(), "customer.email") {
		t.Errorf("stderr should name the failing field:\n%s", te.stderr.String())
	}
}

func TestRunGenerate_DuplicateNumber(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", formYAML("INV-TEST-0001"))
	b := writeFile(t, dir, "b.yaml", formYAML("INV-TEST-0001"))
	out := filepath.Join(dir, "out")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", out, a, b}, te.Environment)
	if code != ExitUsage {
		t.Fatalf("exit code = %d, want %d\n%s", code, ExitUsage, te.stderr.String())
	}
	if !strings.Contains(te.stderr.String(), "invoice-INV-TEST-0001.pdf") {
		t.Errorf("stderr should name the clashing file:\n%s", te.stderr.String())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output dir created before the batch was rejected: %v", err)
	}
}

func TestRunGenerate_NumberEscapingOutputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeFile(t, dir, "a.yaml", formYAML(`"../../escaped"`))
	out := filepath.Join(dir, "nested", "out")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", out, in}, te.Environment)
	if code != ExitUsage {
		t.Fatalf("exit code = %d, want %d\n%s", code, ExitUsage, te.stderr.String())
	}
	if !strings.Contains(te.stderr.String(), "number") {
		t.Errorf("stderr should name the number field:\n%s", te.stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); !os.IsNotExist(err) {
		t.Errorf("rejected batch still wrote output: %v", err)
	}
}

func TestRunGenerate_UnknownField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeFile(t, dir, "a.yaml", formYAML("INV-TEST-0001")+"discount: 10\n")

	te := newTestEnv(t)
	code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", dir, in}, te.Environment)
	if code != ExitIO {
		t.Errorf("exit code = %d, want %d\n%s", code, ExitIO, te.stderr.String())
	}
}

// ---------------------------------------------------------------------------
// TestRunGenerate_Profile - Saved company merged into forms
// ---------------------------------------------------------------------------

func TestRunGenerate_Profile(t *testing.T) {
	t.Parallel()

	t.Run("saved profile fills the company", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "a.yaml", "number: INV-TEST-0003\n"+customerAndItemsYAML)
		te := newTestEnv(t)
		if err := te.store.Save(testCompany()); err != nil {
			t.Fatal(err)
		}

		code := run(context.Background(), []string{"invoice", "generate", "--template-only", "-o", dir, in}, te.Environment)
		if code != ExitSuccess {
			t.Fatalf("exit code = %d, stderr:\n%s", code, te.stderr.String())
		}
	})

	t.Run("no-profile ignores it", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "a.yaml", "number: INV-TEST-0003\n"+customerAndItemsYAML)
		te := newTestEnv(t)
		if err := te.store.Save(testCompany()); err != nil {
			t.Fatal(err)
		}

		code := run(context.Background(), []string{"invoice", "generate", "--template-only", "--no-profile", "-o", dir, in}, te.Environment)
		if code != ExitUsage {
			t.Fatalf("exit code = %d, want %d", code, ExitUsage)
		}
	})

	t.Run("save-profile stores the first company", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "a.yaml", formYAML("INV-TEST-0004"))
		te := newTestEnv(t)

		code := run(context.Background(), []string{"invoice", "generate", "--template-only", "--save-profile", "-o", dir, in}, te.Environment)
		if code != ExitSuccess {
			t.Fatalf("exit code = %d, stderr:\n%s", code, te.stderr.String())
		}
		saved, ok, err := te.store.Load()
		if err != nil || !ok {
			t.Fatalf("Load() = %v, %v", ok, err)
		}
		if saved.Name != "PT Maju Jaya" {
			t.Errorf("saved Name = %q", saved.Name)
		}
	})
}

// ---------------------------------------------------------------------------
// TestDiscoverForms - Input expansion
// ---------------------------------------------------------------------------

func TestDiscoverForms(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.YAML", "")
	writeFile(t, dir, "a.yml", "")
	writeFile(t, dir, "c.json", "")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o750); err != nil {
		t.Fatal(err)
	}

	files, err := discoverForms([]string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.YAML")}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	empty := t.TempDir()
	if _, err := discoverForms([]string{empty}); exitCodeFor(err) != ExitIO {
		t.Errorf("empty directory error = %v, want no-input", err)
	}
}

// ---------------------------------------------------------------------------
// TestReadForm - Config defaults under the file
// ---------------------------------------------------------------------------

func TestReadForm(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Invoice.TaxRate = 5
	cfg.Invoice.DueDays = 14
	cfg.Invoice.Notes = "Terima kasih"

	dir := t.TempDir()
	t.Run("defaults apply", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, dir, "defaults.yaml", companyYAML+customerAndItemsYAML)
		form, err := readForm(path, cfg, testClock)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if form.TaxRate != 5 {
			t.Errorf("TaxRate = %v, want 5", form.TaxRate)
		}
		if form.DueDate != "2026-11-02" {
			t.Errorf("DueDate = %q, want 2026-11-02", form.DueDate)
		}
		if form.Notes != "Terima kasih" {
			t.Errorf("Notes = %q", form.Notes)
		}
		if len(form.Items) != 2 {
			t.Errorf("Items = %d, want 2 (no blank default item)", len(form.Items))
		}
	})

	t.Run("file wins", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, dir, "override.yaml", "taxRate: 0\ndueDate: \"2026-12-01\"\n"+companyYAML+customerAndItemsYAML)
		form, err := readForm(path, cfg, testClock)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if form.TaxRate != 0 {
			t.Errorf("TaxRate = %v, want 0", form.TaxRate)
		}
		if form.DueDate != "2026-12-01" {
			t.Errorf("DueDate = %q", form.DueDate)
		}
	})
}
