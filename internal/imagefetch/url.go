package imagefetch

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Accepted protocols and path extensions for logo URLs.
var (
	validSchemes    = []string{"http", "https", "data"}
	validExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}
)

// IsValidImageURL reports whether rawURL may be used as an image source.
// Data URIs are always accepted. http(s) URLs must point at a path ending
// in a known image extension (query and fragment are ignored).
func IsValidImageURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(validSchemes, scheme) {
		return false
	}
	if scheme == "data" {
		return true
	}
	if u.Host == "" {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range validExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// ValidateURL returns ErrInvalidURL wrapped with the offending value when
// rawURL is not an acceptable image source.
func ValidateURL(rawURL string) error {
	if !IsValidImageURL(rawURL) {
		return fmt.Errorf("%w: %q (use http, https or data with .jpg, .jpeg, .png, .gif, .webp or .svg)", ErrInvalidURL, rawURL)
	}
	return nil
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a data URI into its media type and payload.
// Both base64 and percent-encoded payloads are supported.
func DecodeDataURI(dataURI string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		// Case-insensitive scheme
		if len(dataURI) < 5 || !strings.EqualFold(dataURI[:5], "data:") {
			return "", nil, fmt.Errorf("%w: not a data URI", ErrInvalidURL)
		}
		rest = dataURI[5:]
	}

	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, fmt.Errorf("%w: data URI missing comma", ErrInvalidURL)
	}

	isBase64 := false
	params := strings.Split(header, ";")
	mediaType = params[0]
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some producers strip padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrDecode, err)
			}
		}
		return mediaType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return mediaType, []byte(unescaped), nil
}
