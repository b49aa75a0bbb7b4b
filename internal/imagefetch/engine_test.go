package imagefetch_test

// Notes:
// - fakeFetcher scripts responses per URL and mode, recording every request,
//   so cascade order can be asserted without network access.
// - file:// requests are served from disk, as the blob strategy writes a real
//   temp file and reads it back.

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/alnah/go-invoice/internal/imagefetch"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fetchFunc func(ctx context.Context, req imagefetch.Request) (*imagefetch.Response, error)

type fakeFetcher struct {
	mu       sync.Mutex
	handlers map[string]fetchFunc
	requests []imagefetch.Request
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{handlers: make(map[string]fetchFunc)}
}

func (f *fakeFetcher) on(rawURL string, fn fetchFunc) {
	f.handlers[rawURL] = fn
}

func (f *fakeFetcher) Fetch(ctx context.Context, req imagefetch.Request) (*imagefetch.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn, ok := f.handlers[req.URL]
	f.mu.Unlock()

	if strings.HasPrefix(req.URL, "file://") {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(fileutil.PathFromFileURL(u))
		if err != nil {
			return nil, imagefetch.ErrFailed
		}
		return &imagefetch.Response{Body: data, ContentType: "image/png", Status: 200}, nil
	}
	if !ok {
		return nil, imagefetch.ErrFailed
	}
	return fn(ctx, req)
}

func (f *fakeFetcher) requestsFor(rawURL string) []imagefetch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []imagefetch.Request
	for _, r := range f.requests {
		if r.URL == rawURL {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeFetcher) fileRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if strings.HasPrefix(r.URL, "file://") {
			out = append(out, r.URL)
		}
	}
	return out
}

// browserLike answers like a server without CORS headers: CORS requests are
// refused, no-cors requests come back opaque.
func browserLike(_ context.Context, req imagefetch.Request) (*imagefetch.Response, error) {
	if req.Mode == imagefetch.ModeNoCORS {
		return &imagefetch.Response{Opaque: true}, nil
	}
	return nil, imagefetch.ErrCORS
}

func servePNG(body []byte) fetchFunc {
	return func(context.Context, imagefetch.Request) (*imagefetch.Response, error) {
		return &imagefetch.Response{Body: body, ContentType: "image/png", Status: 200}, nil
	}
}

func blockUntilDone(ctx context.Context, _ imagefetch.Request) (*imagefetch.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type panicRasterizer struct{}

func (panicRasterizer) Rasterize([]byte, string) (*imagefetch.Bitmap, error) {
	panic("boom")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

var testRelay = imagefetch.Relay{Name: "test", Template: "https://relay.test/?u={url}"}

func newTestEngine(f imagefetch.NetworkFetcher, opts ...imagefetch.Option) *imagefetch.Engine {
	base := []imagefetch.Option{
		imagefetch.WithRelays([]imagefetch.Relay{testRelay}),
		imagefetch.WithRelayLimiter(nil),
		imagefetch.WithCacheTTL(0),
	}
	return imagefetch.New(f, append(base, opts...)...)
}

// ---------------------------------------------------------------------------
// TestEngine_Acquire - Strategy cascade
// ---------------------------------------------------------------------------

func TestEngine_Acquire_AnonymousFirst(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	f := newFakeFetcher()
	f.on(logo, servePNG(pngBytes(t, 40, 20)))

	res := newTestEngine(f).Resolve(context.Background(), logo)

	if res.Bitmap == nil {
		t.Fatal("Resolve() bitmap = nil, want non-nil")
	}
	if res.Strategy != imagefetch.StrategyAnonymous {
		t.Errorf("Strategy = %q, want %q", res.Strategy, imagefetch.StrategyAnonymous)
	}
	if res.Bitmap.Width != 40 || res.Bitmap.Height != 20 {
		t.Errorf("size = %dx%d, want 40x20", res.Bitmap.Width, res.Bitmap.Height)
	}
	if !strings.HasPrefix(res.Bitmap.DataURI, "data:image/png;base64,") {
		t.Errorf("DataURI prefix = %q", res.Bitmap.DataURI[:min(30, len(res.Bitmap.DataURI))])
	}

	reqs := f.requestsFor(logo)
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Mode != imagefetch.ModeCORS || reqs[0].Credentials != imagefetch.CredentialsOmit {
		t.Errorf("first request = %+v, want cors/omit", reqs[0])
	}
}

func TestEngine_Acquire_RelayWinsWithoutDirect(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	f := newFakeFetcher()
	f.on(logo, browserLike)
	f.on(testRelay.Rewrite(logo), servePNG(pngBytes(t, 10, 10)))

	res := newTestEngine(f).Resolve(context.Background(), logo)

	if res.Bitmap == nil {
		t.Fatal("Resolve() bitmap = nil, want relay result")
	}
	if res.Strategy != imagefetch.StrategyRelay {
		t.Errorf("Strategy = %q, want %q", res.Strategy, imagefetch.StrategyRelay)
	}

	wantOrder := []string{
		imagefetch.StrategyAnonymous,
		imagefetch.StrategyDefaultCredentials,
		imagefetch.StrategyBlob,
		imagefetch.StrategyRelay,
	}
	if len(res.Attempts) != len(wantOrder) {
		t.Fatalf("attempts = %d, want %d", len(res.Attempts), len(wantOrder))
	}
	for i, want := range wantOrder {
		if res.Attempts[i].Strategy != want {
			t.Errorf("attempt[%d] = %q, want %q", i, res.Attempts[i].Strategy, want)
		}
	}
	if !errors.Is(res.Attempts[1].Err, imagefetch.ErrTainted) {
		t.Errorf("default-credentials error = %v, want ErrTainted", res.Attempts[1].Err)
	}

	// anonymous, default-credentials and blob touch the original URL;
	// the direct strategy would add a same-origin request.
	for _, r := range f.requestsFor(logo) {
		if r.Mode == imagefetch.ModeSameOrigin {
			t.Error("direct strategy was invoked after a relay success")
		}
	}
	if n := len(f.requestsFor(logo)); n != 3 {
		t.Errorf("requests to original URL = %d, want 3", n)
	}
}

func TestEngine_Acquire_BlobStrategyCleansUp(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	body := pngBytes(t, 8, 8)
	f := newFakeFetcher()
	// Only the blob request (Accept: image/*) is answered.
	f.on(logo, func(_ context.Context, req imagefetch.Request) (*imagefetch.Response, error) {
		if req.Accept == "image/*" {
			return &imagefetch.Response{Body: body, ContentType: "image/png", Status: 200}, nil
		}
		return nil, imagefetch.ErrCORS
	})

	res := newTestEngine(f).Resolve(context.Background(), logo)

	if res.Strategy != imagefetch.StrategyBlob {
		t.Fatalf("Strategy = %q, want %q (attempts %+v)", res.Strategy, imagefetch.StrategyBlob, res.Attempts)
	}

	files := f.fileRequests()
	if len(files) != 1 {
		t.Fatalf("file requests = %d, want 1", len(files))
	}
	u, err := url.Parse(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fileutil.PathFromFileURL(u)); !os.IsNotExist(err) {
		t.Errorf("temp reference still exists: %v", err)
	}
}

func TestEngine_Acquire_DirectKeepsOriginalEncoding(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	body := pngBytes(t, 12, 6)
	f := newFakeFetcher()
	f.on(logo, func(_ context.Context, req imagefetch.Request) (*imagefetch.Response, error) {
		if req.Mode == imagefetch.ModeSameOrigin {
			return &imagefetch.Response{Body: body, ContentType: "image/png", Status: 200}, nil
		}
		return browserLike(context.Background(), req)
	})

	res := newTestEngine(f).Resolve(context.Background(), logo)

	if res.Strategy != imagefetch.StrategyDirect {
		t.Fatalf("Strategy = %q, want %q", res.Strategy, imagefetch.StrategyDirect)
	}
	_, data, err := imagefetch.DecodeDataURI(res.Bitmap.DataURI)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Error("direct strategy re-encoded the payload")
	}
	if res.Bitmap.Width != 12 || res.Bitmap.Height != 6 {
		t.Errorf("size = %dx%d, want 12x6", res.Bitmap.Width, res.Bitmap.Height)
	}
}

func TestEngine_Acquire_UnreachableHost(t *testing.T) {
	t.Parallel()

	const logo = "https://unreachable.invalid/logo.png"
	const timeout = 20 * time.Millisecond
	f := newFakeFetcher()
	f.on(logo, blockUntilDone)
	f.on(testRelay.Rewrite(logo), blockUntilDone)

	e := newTestEngine(f, imagefetch.WithTimeout(timeout))

	start := time.Now()
	res := e.Resolve(context.Background(), logo)
	elapsed := time.Since(start)

	if res.Bitmap != nil {
		t.Fatal("Resolve() bitmap != nil, want nil")
	}
	if !res.TimedOut() {
		t.Errorf("TimedOut() = false, attempts %+v", res.Attempts)
	}
	// anonymous, default, blob, one relay, three direct modes
	if limit := 7*timeout + 2*time.Second; elapsed > limit {
		t.Errorf("elapsed %v, want <= %v", elapsed, limit)
	}
	for _, a := range res.Attempts {
		if !errors.Is(a.Err, imagefetch.ErrTimeout) {
			t.Errorf("%s error = %v, want ErrTimeout", a.Strategy, a.Err)
		}
	}
}

func TestEngine_Acquire_InvalidURL(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	e := newTestEngine(f)

	for _, raw := range []string{"", "ftp://x.com/a.png", "https://x.com/a.pdf", "not a url"} {
		if bm := e.Acquire(context.Background(), raw); bm != nil {
			t.Errorf("Acquire(%q) = %+v, want nil", raw, bm)
		}
	}
	if len(f.requests) != 0 {
		t.Errorf("requests = %d, want 0", len(f.requests))
	}
}

func TestEngine_Acquire_RecoversPanic(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	f := newFakeFetcher()
	f.on(logo, servePNG([]byte("png")))

	e := newTestEngine(f, imagefetch.WithRasterizer(panicRasterizer{}))

	var bm *imagefetch.Bitmap
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Acquire panicked: %v", r)
			}
		}()
		bm = e.Acquire(context.Background(), logo)
	}()
	if bm != nil {
		t.Errorf("Acquire() = %+v, want nil", bm)
	}
}

func TestEngine_Acquire_CachesSuccess(t *testing.T) {
	t.Parallel()

	const logo = "https://cdn.example.com/logo.png"
	f := newFakeFetcher()
	f.on(logo, servePNG(pngBytes(t, 4, 4)))

	e := newTestEngine(f, imagefetch.WithCacheTTL(time.Minute))

	first := e.Resolve(context.Background(), logo)
	second := e.Resolve(context.Background(), logo)

	if first.Cached {
		t.Error("first result marked cached")
	}
	if !second.Cached {
		t.Error("second result not marked cached")
	}
	if n := len(f.requestsFor(logo)); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}

	e.Forget(logo)
	_ = e.Resolve(context.Background(), logo)
	if n := len(f.requestsFor(logo)); n != 2 {
		t.Errorf("requests after Forget = %d, want 2", n)
	}
}

func TestEngine_Acquire_DataURI(t *testing.T) {
	t.Parallel()

	uri := imagefetch.EncodeDataURI("image/png", pngBytes(t, 3, 2))
	f := newFakeFetcher()
	f.on(uri, servePNG(pngBytes(t, 3, 2)))

	res := newTestEngine(f).Resolve(context.Background(), uri)
	if res.Bitmap == nil || res.Bitmap.Width != 3 {
		t.Fatalf("Resolve(data URI) = %+v", res)
	}
}

// ---------------------------------------------------------------------------
// TestEngine_PNG
// ---------------------------------------------------------------------------

func TestEngine_PNG(t *testing.T) {
	t.Parallel()

	e := newTestEngine(newFakeFetcher())
	body := pngBytes(t, 5, 5)

	got, err := e.PNG(&imagefetch.Bitmap{DataURI: imagefetch.EncodeDataURI("image/png", body)})
	if err != nil {
		t.Fatalf("PNG() error: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("PNG() changed an already-PNG payload")
	}

	if _, err := e.PNG(nil); !errors.Is(err, imagefetch.ErrDecode) {
		t.Errorf("PNG(nil) error = %v, want ErrDecode", err)
	}
}

func TestWithTimeout_PanicsOnNonPositive(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("WithTimeout(0) did not panic")
		}
	}()
	_ = imagefetch.WithTimeout(0)
}

// ---------------------------------------------------------------------------
// TestRelay_Rewrite
// ---------------------------------------------------------------------------

func TestRelay_Rewrite(t *testing.T) {
	t.Parallel()

	target := "https://cdn.example.com/a b.png?x=1"
	tests := []struct {
		relay imagefetch.Relay
		want  string
	}{
		{imagefetch.DefaultRelays[0], "https://corsproxy.io/https%3A%2F%2Fcdn.example.com%2Fa%20b.png%3Fx%3D1"},
		{imagefetch.Relay{Template: "https://p.test/{raw}"}, "https://p.test/" + target},
	}
	for _, tt := range tests {
		if got := tt.relay.Rewrite(target); got != tt.want {
			t.Errorf("Rewrite() = %q, want %q", got, tt.want)
		}
	}
}

func TestEscapeComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"AZaz09-_.!~*'()", "AZaz09-_.!~*'()"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"https://x.com/a.png?w=1&h=2#top", "https%3A%2F%2Fx.com%2Fa.png%3Fw%3D1%26h%3D2%23top"},
		{"logo-é.png", "logo-%C3%A9.png"},
	}
	for _, tt := range tests {
		if got := imagefetch.EscapeComponent(tt.in); got != tt.want {
			t.Errorf("EscapeComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelaysFromTemplates(t *testing.T) {
	t.Parallel()

	relays := imagefetch.RelaysFromTemplates([]string{"https://proxy.test/?u={url}"})
	if len(relays) != 1 || relays[0].Name != "proxy.test" {
		t.Errorf("RelaysFromTemplates() = %+v", relays)
	}
}
