// Package corsdiag explains why a logo URL could not be read cross-origin
// and proposes relay URLs that usually can.
package corsdiag

import (
	"net/url"
	"sync"

	"github.com/alnah/go-invoice/internal/imagefetch"
)

// UnknownDomain is reported when the URL has no usable host.
const UnknownDomain = "unknown"

// alternativeCount is how many relay rewrites a diagnosis proposes.
const alternativeCount = 3

// Diagnosis describes a cross-origin failure for one URL.
type Diagnosis struct {
	Domain          string
	Suggestions     []string
	AlternativeURLs []string
}

// Diagnose builds the diagnosis for rawURL. It never fails: malformed
// input yields the UnknownDomain diagnosis.
func Diagnose(rawURL string) Diagnosis {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Diagnosis{
			Domain:          UnknownDomain,
			Suggestions:     []string{"Use a valid HTTPS URL", "Check image URL format"},
			AlternativeURLs: []string{},
		}
	}

	domain := u.Hostname()
	return Diagnosis{
		Domain: domain,
		Suggestions: []string{
			"Contact " + domain + " administrator to enable CORS headers",
			"Upload logo to same domain as your application",
			"Use a CDN service that supports CORS (like Cloudinary, AWS S3)",
			"Use our proxy services (automatic fallback)",
		},
		AlternativeURLs: AlternativeURLs(rawURL),
	}
}

// AlternativeURLs rewrites rawURL through the first relays of the
// acquisition cascade, in cascade order.
func AlternativeURLs(rawURL string) []string {
	relays := imagefetch.DefaultRelays[:min(alternativeCount, len(imagefetch.DefaultRelays))]
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		out = append(out, r.Rewrite(rawURL))
	}
	return out
}

// ProxyURL returns rawURL rewritten through the first relay.
func ProxyURL(rawURL string) string {
	return imagefetch.DefaultRelays[0].Rewrite(rawURL)
}

// Tracker holds the diagnosis for the logo URL currently in use and drops
// it as soon as the URL changes. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	url  string
	diag *Diagnosis
}

// SetURL records the URL in use, discarding any diagnosis made for a
// different one.
func (t *Tracker) SetURL(rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rawURL != t.url {
		t.url = rawURL
		t.diag = nil
	}
}

// Report diagnoses a failure for rawURL and keeps the result.
func (t *Tracker) Report(rawURL string) Diagnosis {
	d := Diagnose(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = rawURL
	t.diag = &d
	return d
}

// Current returns the diagnosis kept for rawURL, if any.
func (t *Tracker) Current(rawURL string) (Diagnosis, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.diag == nil || t.url != rawURL {
		return Diagnosis{}, false
	}
	return *t.diag, true
}
