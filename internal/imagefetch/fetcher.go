package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/gabriel-vasile/mimetype"
)

// Mode mirrors the request mode of a browser fetch.
type Mode string

// Request modes.
const (
	ModeCORS       Mode = "cors"
	ModeNoCORS     Mode = "no-cors"
	ModeSameOrigin Mode = "same-origin"
)

// Credentials mirrors the credentials mode of a browser fetch.
// The zero value behaves like "same-origin".
type Credentials string

// Credential modes.
const (
	CredentialsOmit       Credentials = "omit"
	CredentialsSameOrigin Credentials = "same-origin"
	CredentialsInclude    Credentials = "include"
)

// CachePolicy mirrors the cache mode of a browser fetch.
type CachePolicy string

// Cache policies.
const (
	CacheDefault CachePolicy = ""
	CacheNoCache CachePolicy = "no-cache"
)

// DefaultOrigin is the application origin used when none is configured.
const DefaultOrigin = "http://localhost"

// DefaultMaxBytes caps a single image payload (10MB).
const DefaultMaxBytes int64 = 10 << 20

// Request describes one fetch.
type Request struct {
	URL         string
	Mode        Mode
	Credentials Credentials
	Cache       CachePolicy
	Accept      string
}

// Response is the readable part of a fetch result.
// Opaque responses carry no body and no status, as in a browser.
type Response struct {
	Body        []byte
	ContentType string
	Status      int
	Opaque      bool
}

// OK reports whether the response is readable and has a 2xx status.
func (r *Response) OK() bool {
	return r != nil && !r.Opaque && r.Status >= 200 && r.Status < 300
}

// NetworkFetcher performs mode-aware fetches. Implementations must honour
// ctx cancellation.
type NetworkFetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// HTTPFetcher implements NetworkFetcher over net/http. It applies browser
// cross-origin rules relative to its configured origin: CORS responses need
// a matching Access-Control-Allow-Origin header, no-cors responses from other
// origins are opaque, and same-origin requests to other origins are refused.
// data: and file: URLs are served locally and treated as same-origin.
type HTTPFetcher struct {
	client   *http.Client
	origin   *url.URL
	jar      http.CookieJar
	maxBytes int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithCookieJar sets the jar consulted when credentials are sent.
func WithCookieJar(jar http.CookieJar) FetcherOption {
	return func(f *HTTPFetcher) {
		f.jar = jar
	}
}

// WithMaxBytes caps the payload size read from a response.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher acting on behalf of origin
// (scheme://host[:port]). An empty origin uses DefaultOrigin.
func NewHTTPFetcher(origin string, opts ...FetcherOption) (*HTTPFetcher, error) {
	if origin == "" {
		origin = DefaultOrigin
	}
	o, err := url.Parse(origin)
	if err != nil || o.Scheme == "" || o.Host == "" {
		return nil, fmt.Errorf("%w: origin %q", ErrInvalidURL, origin)
	}

	f := &HTTPFetcher{
		// Per-attempt deadlines come from the context; this is a backstop.
		client:   &http.Client{Timeout: 60 * time.Second},
		origin:   &url.URL{Scheme: strings.ToLower(o.Scheme), Host: strings.ToLower(o.Host)},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Origin returns the serialized application origin.
func (f *HTTPFetcher) Origin() string {
	return f.origin.String()
}

// Fetch performs req according to its mode.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "data":
		return f.fetchData(req.URL)
	case "file":
		return f.fetchFile(u)
	case "http", "https":
		return f.fetchHTTP(ctx, u, req)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
}

func (f *HTTPFetcher) fetchData(raw string) (*Response, error) {
	mediaType, data, err := DecodeDataURI(raw)
	if err != nil {
		return nil, err
	}
	return &Response{Body: data, ContentType: mediaType, Status: http.StatusOK}, nil
}

// fetchFile serves temporary local references created during acquisition.
func (f *HTTPFetcher) fetchFile(u *url.URL) (*Response, error) {
	file, err := os.Open(fileutil.PathFromFileURL(u)) // #nosec G304 -- only temp references reach here
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer file.Close()

	data, err := readLimited(file, f.maxBytes)
	if err != nil {
		return nil, err
	}
	return &Response{
		Body:        data,
		ContentType: mimetype.Detect(data).String(),
		Status:      http.StatusOK,
	}, nil
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL, req Request) (*Response, error) {
	sameOrigin := f.isSameOrigin(u)
	mode := req.Mode
	if mode == "" {
		mode = ModeCORS
	}

	if mode == ModeSameOrigin && !sameOrigin {
		return nil, fmt.Errorf("%w: same-origin request to %s", ErrCORS, u.Host)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.Cache == CacheNoCache {
		httpReq.Header.Set("Cache-Control", "no-cache")
		httpReq.Header.Set("Pragma", "no-cache")
	}
	if !sameOrigin && mode == ModeCORS {
		httpReq.Header.Set("Origin", f.Origin())
	}
	if f.jar != nil && sendsCredentials(req.Credentials, sameOrigin) {
		for _, c := range f.jar.Cookies(u) {
			httpReq.AddCookie(c)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()

	if !sameOrigin {
		switch mode {
		case ModeNoCORS:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBytes))
			return &Response{Opaque: true}, nil
		case ModeCORS:
			if !corsAllowed(resp.Header, f.Origin(), req.Credentials) {
				return nil, fmt.Errorf("%w: %s sent no matching Access-Control-Allow-Origin", ErrCORS, u.Host)
			}
		}
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
	}, nil
}

func (f *HTTPFetcher) isSameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, f.origin.Scheme) && strings.EqualFold(u.Host, f.origin.Host)
}

// sendsCredentials applies the browser credentials rules.
func sendsCredentials(c Credentials, sameOrigin bool) bool {
	switch c {
	case CredentialsInclude:
		return true
	case CredentialsOmit:
		return false
	default:
		return sameOrigin
	}
}

// corsAllowed checks a cross-origin response against origin.
// A wildcard is not acceptable for credentialed requests.
func corsAllowed(h http.Header, origin string, c Credentials) bool {
	allow := strings.TrimSpace(h.Get("Access-Control-Allow-Origin"))
	switch {
	case allow == "*":
		return c != CredentialsInclude
	case strings.EqualFold(allow, origin):
		if c == CredentialsInclude {
			return strings.EqualFold(h.Get("Access-Control-Allow-Credentials"), "true")
		}
		return true
	default:
		return false
	}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFailed, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// isTimeout reports whether err came from an expired deadline.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
