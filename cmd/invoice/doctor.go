package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	invoice "github.com/alnah/go-invoice"
	"github.com/alnah/go-invoice/internal/config"
	"github.com/alnah/go-invoice/internal/fileutil"
)

// launchTimeout bounds doctor --launch.
const launchTimeout = 30 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo  `json:"chrome"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Profile  profileInfo `json:"profile"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
	Sandbox  bool   `json:"sandbox"`
	Launched bool   `json:"launched,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool   `json:"temp_writable"`
	ConfigDir    string `json:"config_dir,omitempty"`
}

// profileInfo reports the company profile used by generate.
type profileInfo struct {
	Saved bool   `json:"saved"`
	Name  string `json:"name,omitempty"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(ctx context.Context, args []string, env *Environment) int {
	flags, err := parseDoctorFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return ExitUsage
	}

	result := runDoctor()
	checkProfile(result, env)
	if flags.launch && result.Chrome.Found {
		checkLaunch(ctx, result)
	}
	result.finalize()

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs the browser, environment and system checks.
func runDoctor() *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkChrome(result)
	checkEnvironment(result)
	checkSystem(result)
	result.finalize()
	return result
}

// finalize derives Status from the collected warnings and errors.
func (r *doctorResult) finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Status = "errors"
	case len(r.Warnings) > 0:
		r.Status = "warnings"
	default:
		r.Status = "ready"
	}
}

// checkChrome detects Chrome/Chromium installation. A missing browser is
// a warning: generate still draws invoices from the template.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found: invoices use the drawn template. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkLaunch starts the browser through an exporter, as generate does.
func checkLaunch(ctx context.Context, result *doctorResult) {
	ctx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()

	exp, err := invoice.NewExporter()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Exporter setup failed: %v", err))
		return
	}
	defer func() { _ = exp.Close() }()

	version, err := exp.BrowserVersion(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Browser launch failed: %v", err))
		return
	}
	result.Chrome.Launched = true
	if version != "" {
		result.Chrome.Version = version
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("INVOICE_CONTAINER") == "1" {
		return true, "INVOICE_CONTAINER=1"
	}
	if fileutil.FileExists("/.dockerenv") {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp and config directories.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "invoice-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}

	if dir, err := config.UserDir(); err == nil {
		result.System.ConfigDir = dir
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("No user config directory: %v", err))
	}
}

// checkProfile reports whether a company profile is saved.
func checkProfile(result *doctorResult, env *Environment) {
	store, err := env.Profiles(env.Config.Profile.Path)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Company profile unavailable: %v", err))
		return
	}
	info, ok, err := store.Load()
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("Company profile unreadable: %v", err))
	case !ok:
		result.Warnings = append(result.Warnings,
			"No company profile saved. Run: invoice profile set --name NAME --email EMAIL")
	default:
		result.Profile.Saved = true
		result.Profile.Name = info.Name
	}
}

// Check marks used by printDoctorResult.
const (
	markOK    = "[OK]"
	markWarn  = "[WARN]"
	markError = "[ERROR]"
)

// doctorSection is a titled block of marked lines.
type doctorSection struct {
	title string
	lines [][2]string // mark, text
}

func (s *doctorSection) add(mark, format string, args ...any) {
	s.lines = append(s.lines, [2]string{mark, fmt.Sprintf(format, args...)})
}

// doctorSections lays out r as the human-readable report.
func doctorSections(r *doctorResult) []doctorSection {
	browser := doctorSection{title: "Chrome/Chromium"}
	if c := r.Chrome; c.Found {
		browser.add(markOK, "Found at %s", c.Path)
		if c.Version != "" {
			browser.add(markOK, "Version: %s", c.Version)
		}
		sandbox := "enabled"
		if !c.Sandbox {
			sandbox = "disabled (ROD_NO_SANDBOX=1)"
		}
		browser.add(markOK, "Sandbox: %s", sandbox)
		if c.Launched {
			browser.add(markOK, "Launch: succeeded")
		}
	} else {
		browser.add(markWarn, "Not found (template only)")
	}

	environment := doctorSection{title: "Environment"}
	environment.add(markOK, "Platform: %s/%s", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		environment.add(markOK, "Container: detected (%s)", r.Env.ContainerHint)
	}
	if r.Env.CI {
		environment.add(markOK, "CI: detected")
	}

	system := doctorSection{title: "System"}
	if r.System.TempWritable {
		system.add(markOK, "Temp directory: writable")
	} else {
		system.add(markError, "Temp directory: not writable")
	}
	if r.System.ConfigDir != "" {
		system.add(markOK, "Config directory: %s", r.System.ConfigDir)
	}

	company := doctorSection{title: "Profile"}
	if r.Profile.Saved {
		company.add(markOK, "Company: %s", r.Profile.Name)
	} else {
		company.add(markWarn, "No company saved")
	}

	sections := []doctorSection{browser, environment, system, company}
	if len(r.Warnings) > 0 {
		warnings := doctorSection{title: "Warnings:"}
		for _, msg := range r.Warnings {
			warnings.add(markWarn, "%s", msg)
		}
		sections = append(sections, warnings)
	}
	if len(r.Errors) > 0 {
		errs := doctorSection{title: "Errors:"}
		for _, msg := range r.Errors {
			errs.add(markError, "%s", msg)
		}
		sections = append(sections, errs)
	}
	return sections
}

// statusLines maps doctorResult.Status to the closing line.
var statusLines = map[string]string{
	"ready":    "Status: Ready to export",
	"warnings": "Status: Ready with warnings",
	"errors":   "Status: Not ready (see errors above)",
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintf(w, "invoice doctor\n\n")
	for _, s := range doctorSections(r) {
		fmt.Fprintln(w, s.title)
		for _, l := range s.lines {
			fmt.Fprintf(w, "  %s %s\n", l[0], l[1])
		}
		fmt.Fprintln(w)
	}
	if line, ok := statusLines[r.Status]; ok {
		fmt.Fprintln(w, line)
	}
}
