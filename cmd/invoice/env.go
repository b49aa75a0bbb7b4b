package main

import (
	"io"
	"os"
	"time"

	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/profile"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config // Replaced by --config when given

	// Profiles opens the company profile store. path is profile.path from
	// config, empty for the default location.
	Profiles func(path string) (profile.Store, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: config.DefaultConfig(),
		Profiles: func(path string) (profile.Store, error) {
			return profile.NewFileStore(path)
		},
	}
}
