package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single load attempt.
const DefaultTimeout = 8 * time.Second

// Cache lifetimes for successful acquisitions.
const (
	defaultCacheTTL     = 30 * time.Minute
	defaultCacheCleanup = time.Hour
)

// Strategy names, in cascade order.
const (
	StrategyAnonymous          = "anonymous"
	StrategyDefaultCredentials = "default-credentials"
	StrategyBlob               = "blob"
	StrategyRelay              = "relay"
	StrategyDirect             = "direct"
)

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// Result is the full outcome of a cascade run.
type Result struct {
	Bitmap   *Bitmap
	Strategy string // winning strategy, empty on failure
	Attempts []Attempt
	Cached   bool
}

// TimedOut reports whether the last failed attempt hit its deadline.
func (r Result) TimedOut() bool {
	if r.Bitmap != nil || len(r.Attempts) == 0 {
		return false
	}
	return errors.Is(r.Attempts[len(r.Attempts)-1].Err, ErrTimeout)
}

// strategy is one step of the cascade.
type strategy struct {
	name string
	run  func(ctx context.Context, rawURL string) (*Bitmap, error)
}

// Engine resolves image URLs to embeddable bitmaps.
// Safe for concurrent use; concurrent acquisitions of the same URL share
// one cascade run.
type Engine struct {
	fetcher    NetworkFetcher
	rasterizer Rasterizer
	relays     []Relay
	timeout    time.Duration
	logger     *slog.Logger
	cache      *cache.Cache
	limiter    *rate.Limiter
	group      singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithRasterizer replaces the default ImageRasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(e *Engine) {
		if r != nil {
			e.rasterizer = r
		}
	}
}

// WithRelays replaces DefaultRelays. An empty list disables the relay strategy.
func WithRelays(relays []Relay) Option {
	return func(e *Engine) {
		e.relays = relays
	}
}

// WithTimeout sets the per-attempt timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("imagefetch: WithTimeout duration must be positive")
	}
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the logger used for per-strategy diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCacheTTL sets how long successful results are reused.
// A zero ttl disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl <= 0 {
			e.cache = nil
			return
		}
		e.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRelayLimiter throttles requests sent to relays. Nil disables throttling.
func WithRelayLimiter(l *rate.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// New creates an Engine fetching through f.
func New(f NetworkFetcher, opts ...Option) *Engine {
	if f == nil {
		panic("imagefetch: nil NetworkFetcher")
	}
	e := &Engine{
		fetcher:    f,
		rasterizer: NewImageRasterizer(DefaultMaxDimension),
		relays:     DefaultRelays,
		timeout:    DefaultTimeout,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:      cache.New(defaultCacheTTL, defaultCacheCleanup),
		limiter:    rate.NewLimiter(rate.Limit(10), 3),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-attempt timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Acquire returns an embeddable bitmap for rawURL, or nil when no strategy
// succeeds. It never returns an error and never panics.
func (e *Engine) Acquire(ctx context.Context, rawURL string) *Bitmap {
	return e.Resolve(ctx, rawURL).Bitmap
}

// Resolve runs the cascade and reports every attempt.
func (e *Engine) Resolve(ctx context.Context, rawURL string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("image acquisition panicked", "url", redact(rawURL), "panic", r)
			res = Result{Attempts: append(res.Attempts, Attempt{Err: fmt.Errorf("%w: internal error: %v", ErrFailed, r)})}
		}
	}()

	if err := ValidateURL(rawURL); err != nil {
		e.logger.Debug("image URL rejected", "url", redact(rawURL), "error", err)
		return Result{Attempts: []Attempt{{Err: err}}}
	}

	if e.cache != nil {
		if v, ok := e.cache.Get(rawURL); ok {
			if cached, ok := v.(Result); ok {
				cached.Cached = true
				return cached
			}
		}
	}

	v, _, _ := e.group.Do(rawURL, func() (any, error) {
		return e.cascade(ctx, rawURL), nil
	})
	res, _ = v.(Result)

	if res.Bitmap != nil && e.cache != nil {
		e.cache.SetDefault(rawURL, res)
	}
	return res
}

// Forget drops a cached result, e.g. when the logo behind a URL changed.
func (e *Engine) Forget(rawURL string) {
	if e.cache != nil {
		e.cache.Delete(rawURL)
	}
}

// cascade runs strategies in order until one succeeds.
func (e *Engine) cascade(ctx context.Context, rawURL string) Result {
	var res Result
	steps := e.strategies()

	for i, s := range steps {
		if ctx.Err() != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.name, Err: ctx.Err()})
			break
		}

		e.logger.Debug("trying image strategy",
			"strategy", s.name, "step", i+1, "of", len(steps), "url", redact(rawURL))

		start := time.Now()
		bm, err := s.run(ctx, rawURL)
		attempt := Attempt{Strategy: s.name, Err: err, Duration: time.Since(start)}
		if err == nil && bm == nil {
			attempt.Err = ErrFailed
		}
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Err == nil {
			e.logger.Debug("image strategy succeeded", "strategy", s.name, "width", bm.Width, "height", bm.Height)
			res.Bitmap = bm
			res.Strategy = s.name
			return res
		}
		e.logger.Debug("image strategy failed", "strategy", s.name, "error", attempt.Err)
	}

	e.logger.Warn("all image strategies failed", "url", redact(rawURL), "attempts", len(res.Attempts))
	return res
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{name: StrategyAnonymous, run: func(ctx context.Context, u string) (*Bitmap, error) {
			return e.loadImage(ctx, u, CredentialsOmit, ModeCORS)
		}},
		{name: StrategyDefaultCredentials, run: func(ctx context.Context, u string) (*Bitmap, error) {
			return e.loadImage(ctx, u, CredentialsSameOrigin, ModeNoCORS)
		}},
		{name: StrategyBlob, run: e.loadViaBlob},
		{name: StrategyRelay, run: e.loadViaRelays},
		{name: StrategyDirect, run: e.loadDirect},
	}
}

// loadImage fetches and rasterizes one URL under the per-attempt timeout.
// Opaque responses cannot be exported, as with a tainted canvas.
func (e *Engine) loadImage(ctx context.Context, rawURL string, creds Credentials, mode Mode) (*Bitmap, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(ctx, Request{URL: rawURL, Mode: mode, Credentials: creds})
	if err != nil {
		return nil, e.attemptErr(ctx, err)
	}
	if resp.Opaque {
		return nil, ErrTainted
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: HTTP status %d", ErrFailed, resp.Status)
	}

	bm, err := e.rasterizer.Rasterize(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// loadViaBlob copies the payload to a temporary local reference and
// rasterizes from it. The reference is removed whatever the outcome.
func (e *Engine) loadViaBlob(ctx context.Context, rawURL string) (*Bitmap, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	resp, err := e.fetcher.Fetch(fetchCtx, Request{
		URL:         rawURL,
		Mode:        ModeCORS,
		Credentials: CredentialsOmit,
		Accept:      "image/*",
	})
	if err != nil {
		err = e.attemptErr(fetchCtx, err)
		cancel()
		return nil, err
	}
	cancel()
	if !resp.OK() {
		return nil, fmt.Errorf("%w: HTTP status %d", ErrFailed, resp.Status)
	}

	ext := strings.TrimPrefix(mimetype.Detect(resp.Body).Extension(), ".")
	if ext == "" {
		ext = "bin"
	}
	path, cleanup, err := fileutil.WriteTempFile(resp.Body, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer cleanup()

	return e.loadImage(ctx, fileutil.FileURL(path), CredentialsSameOrigin, ModeCORS)
}

// loadViaRelays repeats the anonymous strategy through each relay.
func (e *Engine) loadViaRelays(ctx context.Context, rawURL string) (*Bitmap, error) {
	if strings.HasPrefix(strings.ToLower(rawURL), "data:") {
		return nil, fmt.Errorf("%w: data URIs are not relayed", ErrFailed)
	}
	if len(e.relays) == 0 {
		return nil, fmt.Errorf("%w: no relays configured", ErrFailed)
	}

	var errs []error
	for _, relay := range e.relays {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}

		bm, err := e.loadImage(ctx, relay.Rewrite(rawURL), CredentialsOmit, ModeCORS)
		if err == nil {
			e.logger.Debug("relay succeeded", "relay", relay.Name)
			return bm, nil
		}
		e.logger.Debug("relay failed", "relay", relay.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", relay.Name, err))
	}
	return nil, errors.Join(errs...)
}

// directModes are tried in decreasing strictness.
var directModes = []Request{
	{Mode: ModeCORS, Credentials: CredentialsOmit},
	{Mode: ModeNoCORS, Cache: CacheNoCache},
	{Mode: ModeSameOrigin},
}

// loadDirect returns the first readable response as a data URI without
// rasterizing it.
func (e *Engine) loadDirect(ctx context.Context, rawURL string) (*Bitmap, error) {
	var errs []error
	for _, m := range directModes {
		req := m
		req.URL = rawURL

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		resp, err := e.fetcher.Fetch(attemptCtx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.Mode, e.attemptErr(attemptCtx, err)))
			cancel()
			continue
		}
		cancel()

		if !resp.OK() || len(resp.Body) == 0 {
			errs = append(errs, fmt.Errorf("%s: %w", req.Mode, ErrOpaque))
			continue
		}

		mediaType := mimetype.Detect(resp.Body).String()
		if ct := resp.ContentType; strings.HasPrefix(ct, "image/") {
			mediaType = strings.TrimSpace(strings.Split(ct, ";")[0])
		}
		bm := &Bitmap{DataURI: EncodeDataURI(mediaType, resp.Body)}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(resp.Body)); err == nil {
			bm.Width, bm.Height = cfg.Width, cfg.Height
		}
		return bm, nil
	}
	return nil, errors.Join(errs...)
}

// attemptErr classifies a fetch error, turning expired deadlines into
// ErrTimeout.
func (e *Engine) attemptErr(ctx context.Context, err error) error {
	if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w (%s)", ErrTimeout, e.timeout)
	}
	return err
}

// PNG returns PNG bytes for bm, rasterizing when the payload is another
// format (direct strategy results keep their original encoding).
func (e *Engine) PNG(bm *Bitmap) ([]byte, error) {
	if bm == nil {
		return nil, fmt.Errorf("%w: nil bitmap", ErrDecode)
	}
	mediaType, data, err := DecodeDataURI(bm.DataURI)
	if err != nil {
		return nil, err
	}
	if mediaType == "image/png" {
		return data, nil
	}

	converted, err := e.rasterizer.Rasterize(data, mediaType)
	if err != nil {
		return nil, err
	}
	_, pngData, err := DecodeDataURI(converted.DataURI)
	return pngData, err
}

// redact trims data URIs so logs stay readable.
func redact(rawURL string) string {
	if len(rawURL) > 64 && strings.HasPrefix(strings.ToLower(rawURL), "data:") {
		return rawURL[:48] + "..."
	}
	return rawURL
}
