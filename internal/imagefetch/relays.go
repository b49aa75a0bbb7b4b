package imagefetch

import (
	"net/url"
	"strings"
)

// Relay is a public CORS relay that re-serves a URL with permissive
// cross-origin headers.
type Relay struct {
	Name string
	// Template contains "{url}" (percent-encoded original, see
	// EscapeComponent) or "{raw}" (original appended verbatim).
	Template string
}

// Rewrite applies the relay template to target.
func (r Relay) Rewrite(target string) string {
	out := strings.ReplaceAll(r.Template, "{url}", EscapeComponent(target))
	return strings.ReplaceAll(out, "{raw}", target)
}

// EscapeComponent percent-encodes every byte of s except ASCII letters,
// digits and -_.!~*'(). Spaces become %20, never '+'.
func EscapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if componentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// DefaultRelays is the ordered relay list tried by the relay strategy.
var DefaultRelays = []Relay{
	{Name: "corsproxy", Template: "https://corsproxy.io/{url}"},
	{Name: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest={url}"},
	{Name: "weserv", Template: "https://images.weserv.nl/?url={url}"},
	{Name: "cors-anywhere", Template: "https://cors-anywhere.herokuapp.com/{raw}"},
	{Name: "allorigins", Template: "https://api.allorigins.win/raw?url={url}"},
	{Name: "thingproxy", Template: "https://thingproxy.freeboard.io/fetch/{raw}"},
}

// RelaysFromTemplates builds a relay list from bare templates, naming each
// by its host.
func RelaysFromTemplates(templates []string) []Relay {
	relays := make([]Relay, 0, len(templates))
	for _, t := range templates {
		name := t
		if u, err := url.Parse(strings.NewReplacer("{url}", "", "{raw}", "").Replace(t)); err == nil && u.Host != "" {
			name = u.Host
		}
		relays = append(relays, Relay{Name: name, Template: t})
	}
	return relays
}
