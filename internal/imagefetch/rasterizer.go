package imagefetch

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultMaxDimension bounds the longer side of a rasterized image.
const DefaultMaxDimension = 2048

// Fallback size for SVG documents without a usable viewBox.
const (
	defaultSVGWidth  = 300
	defaultSVGHeight = 150
)

// Bitmap is an embeddable raster image.
type Bitmap struct {
	DataURI string
	Width   int
	Height  int
}

// Rasterizer converts image bytes to a PNG bitmap.
type Rasterizer interface {
	Rasterize(data []byte, contentType string) (*Bitmap, error)
}

// ImageRasterizer decodes PNG, JPEG, GIF, WebP, BMP and SVG, downsizes to
// MaxDimension preserving aspect ratio, and re-encodes as compressed PNG.
type ImageRasterizer struct {
	MaxDimension int
}

// NewImageRasterizer creates an ImageRasterizer. maxDimension <= 0 uses
// DefaultMaxDimension.
func NewImageRasterizer(maxDimension int) *ImageRasterizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &ImageRasterizer{MaxDimension: maxDimension}
}

// Rasterize implements Rasterizer.
func (r *ImageRasterizer) Rasterize(data []byte, contentType string) (*Bitmap, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	var src image.Image
	var err error
	if isSVG(data, contentType) {
		src, err = decodeSVG(data)
	} else {
		src, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	if err != nil {
		return nil, err
	}

	img := downscale(src, r.maxDimension())

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding PNG: %v", ErrDecode, err)
	}

	b := img.Bounds()
	return &Bitmap{
		DataURI: EncodeDataURI("image/png", buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

func (r *ImageRasterizer) maxDimension() int {
	if r == nil || r.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return r.MaxDimension
}

// ScaledSize returns the dimensions after fitting w×h inside max×max.
// Images already inside the bound are unchanged.
func ScaledSize(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	ratio := min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	sw := max(int(float64(w)*ratio), 1)
	sh := max(int(float64(h)*ratio), 1)
	return sw, sh
}

func downscale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func isSVG(data []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "svg") {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

func decodeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: svg: %v", ErrDecode, err)
	}

	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = defaultSVGWidth, defaultSVGHeight
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}

// Compile-time interface check.
var _ Rasterizer = (*ImageRasterizer)(nil)
