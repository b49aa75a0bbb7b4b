//go:build windows

package main

import "os"

// shutdownSignals stop a running batch between invoices.
// SIGTERM is not delivered on Windows.
var shutdownSignals = []os.Signal{os.Interrupt}
