// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-invoice/internal/corsdiag"
	"github.com/alnah/go-invoice/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for browser connection errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use custom Chrome")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint for logo hosts that answer slowly.
func ForTimeout() string {
	return format("slow logo host: raise --strategy-timeout or host the logo elsewhere")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-invoice/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(filepathSlash(p), ".config/go-invoice") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForLogoURL returns hints for rejected logo URLs.
func ForLogoURL() string {
	return format("use an http(s) URL ending in .png, .jpg, .jpeg, .gif, .webp or .svg, or a data: URI")
}

// ForIncompleteProfile returns a hint when a company profile cannot be saved.
func ForIncompleteProfile() string {
	return format("company name and email are required: invoice profile set --name NAME --email EMAIL")
}

// ForCORS turns a cross-origin diagnosis into hints: the host to contact
// and the first relay URL worth trying.
func ForCORS(d corsdiag.Diagnosis) string {
	var hints []string
	if len(d.Suggestions) > 0 {
		hints = append(hints, strings.ToLower(d.Suggestions[0][:1])+d.Suggestions[0][1:])
	}
	if len(d.AlternativeURLs) > 0 {
		hints = append(hints, "try "+d.AlternativeURLs[0])
	}
	return formatHints(hints)
}

func filepathSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
