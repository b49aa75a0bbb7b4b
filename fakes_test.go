package invoice

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-invoice/internal/imagefetch"
)

// pngBytes encodes a w × h white PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding PNG: %v", err)
	}
	return buf.Bytes()
}

// testDocument builds a valid Document from validForm.
func testDocument(t *testing.T) *Document {
	t.Helper()

	doc, err := NewDocument(validForm(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDocument() unexpected error: %v", err)
	}
	return doc
}

// ---------------------------------------------------------------------------
// fakeCapturer
// ---------------------------------------------------------------------------

type fakeCapturer struct {
	mu         sync.Mutex
	raster     *Raster
	captureErr error
	cloneErr   error
	captures   int
	clones     int
	closed     int
	lastRegion *CaptureRegion
	onCapture  func()
}

func (f *fakeCapturer) Capture(_ context.Context, region *CaptureRegion) (*Raster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	f.lastRegion = region
	if f.onCapture != nil {
		f.onCapture()
	}
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.raster, nil
}

func (f *fakeCapturer) CaptureClone(_ context.Context, region *CaptureRegion) (*Raster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clones++
	f.lastRegion = region
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	return f.raster, nil
}

func (f *fakeCapturer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

var _ capturer = (*fakeCapturer)(nil)

// ---------------------------------------------------------------------------
// fakeLogos
// ---------------------------------------------------------------------------

type fakeLogos struct {
	mu     sync.Mutex
	result imagefetch.Result
	png    []byte
	calls  int
}

func (f *fakeLogos) Resolve(_ context.Context, _ string) imagefetch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

func (f *fakeLogos) PNG(bm *imagefetch.Bitmap) ([]byte, error) {
	if bm == nil || f.png == nil {
		return nil, errors.New("no bitmap")
	}
	return f.png, nil
}

var _ logoSource = (*fakeLogos)(nil)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
