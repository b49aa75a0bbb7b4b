package invoice

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // DecodeConfig of screenshots
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-invoice/internal/fileutil"
	"github.com/alnah/go-invoice/internal/pipeline"
	"github.com/alnah/go-invoice/internal/process"
)

// captureScale is the device pixel ratio of screenshots.
const captureScale = 1.5

// DefaultCaptureTimeout bounds page load and screenshot of one capture.
const DefaultCaptureTimeout = 30 * time.Second

// capturer renders preview markup to a raster. Implementations need not be
// safe for concurrent use; each Exporter owns one.
type capturer interface {
	// Capture loads region.HTML and screenshots region.Selector.
	Capture(ctx context.Context, region *CaptureRegion) (*Raster, error)
	// CaptureClone does the same from a sanitized copy of region.HTML.
	CaptureClone(ctx context.Context, region *CaptureRegion) (*Raster, error)
	Close() error
}

var _ capturer = (*rodCapturer)(nil)

// prepareRegionJS forces white/black on the region, optionally hides the
// elements a canvas renderer would skip, and reports the region geometry.
const prepareRegionJS = `(sel, hide) => {
  const region = document.querySelector(sel);
  if (!region) return null;
  document.documentElement.style.background = '#ffffff';
  document.body.style.background = '#ffffff';
  region.style.backgroundColor = '#ffffff';
  region.style.color = '#000000';
  if (hide) {
    for (const el of region.querySelectorAll('*')) {
      const tag = el.tagName.toLowerCase();
      const cls = el.getAttribute('class') || '';
      const cs = window.getComputedStyle(el);
      if (tag === 'script' || tag === 'style' ||
          cls.includes('animate-') || cls.includes('transition-') ||
          cs.position === 'fixed' || cs.position === 'sticky' ||
          cs.transform !== 'none') {
        el.style.setProperty('visibility', 'hidden', 'important');
      }
    }
  }
  const rect = region.getBoundingClientRect();
  return {
    x: rect.left + window.scrollX,
    y: rect.top + window.scrollY,
    width: region.scrollWidth,
    height: region.scrollHeight
  };
}`

// rodCapturer captures with headless Chrome through go-rod.
// Chrome is downloaded by rod on first use when not installed.
type rodCapturer struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
}

func newRodCapturer(timeout time.Duration) *rodCapturer {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &rodCapturer{timeout: timeout}
}

// ensureBrowser lazily launches and connects to the browser.
func (c *rodCapturer) ensureBrowser() error {
	if c.browser != nil {
		return nil
	}

	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// Containers and CI runners have no user namespace for the sandbox.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" || os.Getenv("ROD_NO_SANDBOX") == "true" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	c.launcher = l
	c.browser = browser
	return nil
}

// Close shuts the browser down and removes its profile directory.
func (c *rodCapturer) Close() error {
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil

	if c.launcher != nil {
		// Renderer children can outlive a browser that did not exit cleanly.
		_ = process.KillTree(c.launcher.PID())
		c.launcher.Cleanup()
		c.launcher = nil
	}
	return err
}

// Version reports the connected browser's product string, launching it
// if needed.
func (c *rodCapturer) Version(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.ensureBrowser(); err != nil {
		return "", err
	}
	v, err := c.browser.Version()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return v.Product, nil
}

// Capture loads the live preview and screenshots the region.
func (c *rodCapturer) Capture(ctx context.Context, region *CaptureRegion) (*Raster, error) {
	return c.capture(ctx, region, region.HTML, true)
}

// CaptureClone sanitizes a copy of the preview markup, loads it into a
// separate page and screenshots the region. The page is closed afterwards.
func (c *rodCapturer) CaptureClone(ctx context.Context, region *CaptureRegion) (*Raster, error) {
	clone, err := pipeline.SanitizeClone(region.HTML, strings.TrimPrefix(region.Selector, "#"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return c.capture(ctx, region, clone, false)
}

func (c *rodCapturer) capture(ctx context.Context, region *CaptureRegion, markup string, hide bool) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	path, cleanup, err := fileutil.WriteTempFile([]byte(markup), "html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	defer cleanup()

	page, err := c.browser.Page(proto.TargetCreateTarget{URL: fileutil.FileURL(path)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrCapture, ErrPageCreate, err)
	}
	defer page.Close()

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	p := page.Timeout(timeout)

	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrCapture, ErrPageLoad, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.Eval(prepareRegionJS, region.Selector, hide)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing region: %v", ErrCapture, err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("%w: selector %q not found", ErrCapture, region.Selector)
	}

	x := res.Value.Get("x").Num()
	y := res.Value.Get("y").Num()
	region.Width = res.Value.Get("width").Int()
	region.Height = res.Value.Get("height").Int()
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("%w: region %q has no size", ErrCapture, region.Selector)
	}

	data, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      x,
			Y:      y,
			Width:  float64(region.Width),
			Height: float64(region.Height),
			Scale:  captureScale,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", ErrCapture, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: reading screenshot: %v", ErrCapture, err)
	}
	return &Raster{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
}
