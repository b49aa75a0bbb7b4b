package invoice

// A4 page size in millimetres.
const (
	A4Width  = 210.0
	A4Height = 297.0
)

// visualFitHeight keeps a 1mm margin top and bottom when a tall capture is
// scaled down to fit the page.
const visualFitHeight = 295.0

// PageLayout places a captured raster on one page.
type PageLayout struct {
	Width     float64 // page width, mm
	Height    float64 // page height, mm
	FitHeight float64 // tallest image allowed before scaling down
}

// A4Layout is the layout used by the visual path.
func A4Layout() PageLayout {
	return PageLayout{Width: A4Width, Height: A4Height, FitHeight: visualFitHeight}
}

// Fit places a pxW × pxH image. The image takes the full page width; when
// that makes it taller than FitHeight it is scaled to FitHeight and centred
// horizontally, otherwise it is centred vertically.
// Non-positive sizes yield a zero Placement.
func (l PageLayout) Fit(pxW, pxH int) Placement {
	if pxW <= 0 || pxH <= 0 {
		return Placement{}
	}

	w := l.Width
	h := float64(pxH) * l.Width / float64(pxW)

	if h > l.FitHeight {
		w = l.Width * l.FitHeight / h
		h = l.FitHeight
		return Placement{X: (l.Width - w) / 2, Y: 0, W: w, H: h}
	}

	return Placement{X: 0, Y: (l.FitHeight - h) / 2, W: w, H: h}
}
