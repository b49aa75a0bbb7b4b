package hints

// Notes:
// - ForBrowserConnect tests cannot use t.Parallel() because they:
//   1. Use t.Setenv() which modifies process environment
//   2. Modify the package-level IsInContainer variable
// These are acceptable gaps: we test observable behavior through environment manipulation.

import (
	"strings"
	"testing"

	"github.com/alnah/go-invoice/internal/corsdiag"
)

// ---------------------------------------------------------------------------
// TestForBrowserConnect - Sandbox and binary suggestions
// ---------------------------------------------------------------------------

func TestForBrowserConnect(t *testing.T) {
	tests := []struct {
		name        string
		container   bool
		ci          string
		noSandbox   string
		browserBin  string
		wantSandbox bool
		wantBin     bool
	}{
		{"ci runner", false, "true", "", "", true, true},
		{"docker", true, "", "", "", true, true},
		{"sandbox already disabled", true, "", "1", "", false, true},
		{"custom binary set", false, "", "", "/usr/bin/chrome", false, false},
		{"desktop", false, "", "", "", false, true},
		{"fully configured", true, "true", "1", "/usr/bin/chrome", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := IsInContainer
			defer func() { IsInContainer = orig }()
			IsInContainer = func() bool { return tt.container }

			for _, v := range []string{"GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
				t.Setenv(v, "")
			}
			t.Setenv("CI", tt.ci)
			t.Setenv("ROD_NO_SANDBOX", tt.noSandbox)
			t.Setenv("ROD_BROWSER_BIN", tt.browserBin)

			hint := ForBrowserConnect()

			if got := strings.Contains(hint, "ROD_NO_SANDBOX"); got != tt.wantSandbox {
				t.Errorf("sandbox hint = %v, want %v (%q)", got, tt.wantSandbox, hint)
			}
			if got := strings.Contains(hint, "ROD_BROWSER_BIN"); got != tt.wantBin {
				t.Errorf("binary hint = %v, want %v (%q)", got, tt.wantBin, hint)
			}
			if (hint == "") != (!tt.wantSandbox && !tt.wantBin) {
				t.Errorf("hint = %q, want empty only without suggestions", hint)
			}
		})
	}
}

func TestForTimeout(t *testing.T) {
	hint := ForTimeout()

	if !strings.Contains(hint, "hint:") {
		t.Error("expected hint prefix")
	}
	if !strings.Contains(hint, "--strategy-timeout") {
		t.Error("expected --strategy-timeout flag mention")
	}
}

func TestForConfigNotFound(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		contains string
	}{
		{
			name:     "empty paths",
			paths:    []string{},
			contains: "--config",
		},
		{
			name:     "with user config path",
			paths:    []string{"./acme.yaml", "/home/u/.config/go-invoice/acme.yaml"},
			contains: "or create /home/u/.config/go-invoice/acme.yaml",
		},
		{
			name:     "windows user config path",
			paths:    []string{`C:\Users\u\.config\go-invoice\acme.yaml`},
			contains: "or create",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := ForConfigNotFound(tt.paths)

			if !strings.Contains(hint, "hint:") {
				t.Error("expected hint prefix")
			}
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("expected hint to contain %q, got %q", tt.contains, hint)
			}
		})
	}
}

func TestForOutputDirectory(t *testing.T) {
	hint := ForOutputDirectory()

	if !strings.Contains(hint, "parent directory") {
		t.Error("expected parent directory mention")
	}
}

func TestForLogoURL(t *testing.T) {
	hint := ForLogoURL()

	if !strings.Contains(hint, ".png") || !strings.Contains(hint, "data:") {
		t.Errorf("expected formats in hint, got %q", hint)
	}
}

func TestForIncompleteProfile(t *testing.T) {
	hint := ForIncompleteProfile()

	if !strings.Contains(hint, "--name") || !strings.Contains(hint, "--email") {
		t.Errorf("expected flags in hint, got %q", hint)
	}
}

func TestForCORS(t *testing.T) {
	d := corsdiag.Diagnose("https://cdn.example.com/logo.png")
	hint := ForCORS(d)

	if !strings.Contains(hint, "contact cdn.example.com administrator") {
		t.Errorf("expected domain contact hint, got %q", hint)
	}
	if !strings.Contains(hint, "try "+d.AlternativeURLs[0]) {
		t.Errorf("expected first alternative, got %q", hint)
	}

	if got := ForCORS(corsdiag.Diagnosis{}); got != "" {
		t.Errorf("ForCORS(empty) = %q, want empty", got)
	}
}

func TestFormat_Consistency(t *testing.T) {
	hints := []string{
		ForTimeout(),
		ForOutputDirectory(),
		ForLogoURL(),
		ForIncompleteProfile(),
		ForCORS(corsdiag.Diagnose("https://a.test/x.png")),
	}

	for _, h := range hints {
		if !strings.HasPrefix(h, "\n  hint: ") {
			t.Errorf("hint format inconsistent: %q", h)
		}
	}
}
