// Package profile persists the issuing company between runs.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/yamlutil"
)

// FileName is the profile file inside the user config directory.
const FileName = "company.yaml"

// ErrIncomplete is returned by Save when name or email is empty.
var ErrIncomplete = errors.New("profile needs a company name and email")

// Store loads, saves and clears the company profile.
type Store interface {
	// Load returns the saved profile. ok is false when none is saved.
	Load() (info invoice.CompanyInfo, ok bool, err error)
	// Save stores info. Returns ErrIncomplete without a name and email.
	Save(info invoice.CompanyInfo) error
	// Clear removes the saved profile. Clearing nothing is not an error.
	Clear() error
}

// FileStore keeps the profile in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. An empty path uses
// FileName inside config.UserDir().
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := config.UserDir()
		if err != nil {
			return nil, fmt.Errorf("locating profile: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}
	return &FileStore{path: path}, nil
}

// Path returns the profile file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load ignores fields it does not know, so a profile written by another
// version still loads.
func (s *FileStore) Load() (invoice.CompanyInfo, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return invoice.CompanyInfo{}, false, nil
	}
	if err != nil {
		return invoice.CompanyInfo{}, false, fmt.Errorf("loading profile: %w", err)
	}

	var info invoice.CompanyInfo
	if err := yamlutil.Unmarshal(data, &info); err != nil {
		return invoice.CompanyInfo{}, false, fmt.Errorf("loading profile %s: %w", s.path, err)
	}
	return info, true, nil
}

func (s *FileStore) Save(info invoice.CompanyInfo) error {
	if !complete(info) {
		return ErrIncomplete
	}
	if err := yamlutil.WriteFile(s.path, info); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing profile: %w", err)
	}
	return nil
}

// MemoryStore keeps the profile in memory.
type MemoryStore struct {
	mu   sync.Mutex
	info *invoice.CompanyInfo
}

func (s *MemoryStore) Load() (invoice.CompanyInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return invoice.CompanyInfo{}, false, nil
	}
	return *s.info, true, nil
}

func (s *MemoryStore) Save(info invoice.CompanyInfo) error {
	if !complete(info) {
		return ErrIncomplete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = &info
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = nil
	return nil
}

// Merge fills the empty fields of override from saved. Fields set in
// override win.
func Merge(saved, override invoice.CompanyInfo) invoice.CompanyInfo {
	pick := func(o, s string) string {
		if strings.TrimSpace(o) != "" {
			return o
		}
		return s
	}
	return invoice.CompanyInfo{
		Name:     pick(override.Name, saved.Name),
		Address:  pick(override.Address, saved.Address),
		City:     pick(override.City, saved.City),
		Phone:    pick(override.Phone, saved.Phone),
		Email:    pick(override.Email, saved.Email),
		Logo:     pick(override.Logo, saved.Logo),
		BankInfo: pick(override.BankInfo, saved.BankInfo),
	}
}

func complete(info invoice.CompanyInfo) bool {
	return strings.TrimSpace(info.Name) != "" && strings.TrimSpace(info.Email) != ""
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
