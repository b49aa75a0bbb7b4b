//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop a running batch between invoices.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
