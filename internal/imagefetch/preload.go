package imagefetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
)

// Dimensions are the natural pixel size of an image.
type Dimensions struct {
	Width  int
	Height int
}

// preloadCredentials are tried in order by Preload.
var preloadCredentials = []Credentials{
	CredentialsOmit,
	CredentialsSameOrigin,
	CredentialsInclude,
}

// Preload loads rawURL with anonymous, default and then credentialed CORS
// requests and reports the natural size of the first image that decodes.
// Each attempt is bounded by the engine timeout.
func (e *Engine) Preload(ctx context.Context, rawURL string) (Dimensions, bool) {
	if !IsValidImageURL(rawURL) {
		return Dimensions{}, false
	}

	for _, creds := range preloadCredentials {
		dim, err := e.measure(ctx, rawURL, creds)
		if err == nil {
			return dim, true
		}
		e.logger.Debug("preload attempt failed", "credentials", creds, "url", redact(rawURL), "error", err)
	}
	return Dimensions{}, false
}

// Probe reports whether rawURL can be read with an anonymous CORS request,
// i.e. whether the first acquisition strategy would see its bytes.
func (e *Engine) Probe(ctx context.Context, rawURL string) bool {
	if !IsValidImageURL(rawURL) {
		return false
	}
	_, err := e.measure(ctx, rawURL, CredentialsOmit)
	return err == nil
}

func (e *Engine) measure(ctx context.Context, rawURL string, creds Credentials) (Dimensions, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(ctx, Request{URL: rawURL, Mode: ModeCORS, Credentials: creds})
	if err != nil {
		return Dimensions{}, e.attemptErr(ctx, err)
	}
	if !resp.OK() {
		return Dimensions{}, fmt.Errorf("%w: HTTP status %d", ErrFailed, resp.Status)
	}
	return dimensionsOf(resp.Body, resp.ContentType)
}

// dimensionsOf reads the size from the image header, rendering SVG
// documents to find their viewBox size.
func dimensionsOf(data []byte, contentType string) (Dimensions, error) {
	if isSVG(data, contentType) {
		img, err := decodeSVG(data)
		if err != nil {
			return Dimensions{}, err
		}
		b := img.Bounds()
		return Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
