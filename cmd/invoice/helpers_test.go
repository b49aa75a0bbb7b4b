package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/profile"
)

// ---------------------------------------------------------------------------
// Test Infrastructure
// ---------------------------------------------------------------------------

// testClock is the fixed "now" of CLI tests.
var testClock = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// testEnv bundles an Environment with its captured output and profile store.
type testEnv struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	store  *profile.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		store:  &profile.MemoryStore{},
	}
	cfg := config.DefaultConfig()
	cfg.Export.SettleDelay = "0s"
	te.Environment = &Environment{
		Now:    func() time.Time { return testClock },
		Stdout: te.stdout,
		Stderr: te.stderr,
		Config: cfg,
		Profiles: func(string) (profile.Store, error) {
			return te.store, nil
		},
	}
	return te
}

// testCompany is a complete company, valid as a profile.
func testCompany() invoice.CompanyInfo {
	return invoice.CompanyInfo{
		Name:     "PT Maju Jaya",
		Address:  "Jl. Sudirman 1",
		City:     "Jakarta",
		Phone:    "021-555-0100",
		Email:    "billing@majujaya.co.id",
		BankInfo: "BCA 123-456-7890",
	}
}

const customerAndItemsYAML = `customer:
  name: Budi Santoso
  email: budi@example.com
  phone: 0812-0000-0000
  address: Jl. Merdeka 17
  city: Bandung
items:
  - name: Design
    quantity: 2
    price: 10000
  - name: Hosting
    quantity: 1
    price: 5000
`

const companyYAML = `company:
  name: PT Maju Jaya
  address: Jl. Sudirman 1
  city: Jakarta
  phone: 021-555-0100
  email: billing@majujaya.co.id
`

// formYAML returns a complete invoice file with the given number.
func formYAML(number string) string {
	return "number: " + number + "\n" + companyYAML + customerAndItemsYAML
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}
