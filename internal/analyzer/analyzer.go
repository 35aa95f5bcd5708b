package analyzer

import (
	"fmt"
	"image"
)

// Region is a connected area of strong edges.
type Region struct {
	Rect image.Rectangle
	// Weight is the share of the image area covered by the region, 0..1.
	Weight float64
}

// Detector finds regions of interest in an illustration.
type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// NewDetector returns the detector registered under variant.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "edges", "":
		return NewEdgeDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// Focus returns the square of side size (clamped to the image) that is centred on the
// largest detected region. Without regions it is centred on the image.
func Focus(d Detector, img image.Image, size int) (image.Rectangle, error) {
	b := img.Bounds()
	if size <= 0 || size > b.Dx() {
		size = b.Dx()
	}
	if size > b.Dy() {
		size = b.Dy()
	}

	center := image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	regions, err := d.Detect(img)
	if err != nil {
		return image.Rectangle{}, err
	}
	if len(regions) > 0 {
		best := regions[0]
		for _, r := range regions[1:] {
			if r.Weight > best.Weight {
				best = r
			}
		}
		center = image.Pt((best.Rect.Min.X+best.Rect.Max.X)/2, (best.Rect.Min.Y+best.Rect.Max.Y)/2)
	}

	origin := image.Pt(center.X-size/2, center.Y-size/2)
	if origin.X < b.Min.X {
		origin.X = b.Min.X
	}
	if origin.Y < b.Min.Y {
		origin.Y = b.Min.Y
	}
	if origin.X+size > b.Max.X {
		origin.X = b.Max.X - size
	}
	if origin.Y+size > b.Max.Y {
		origin.Y = b.Max.Y - size
	}
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}, nil
}
