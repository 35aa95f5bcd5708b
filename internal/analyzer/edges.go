package analyzer

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// EdgeDetector finds regions with Sobel gradients, dilation and flood fill.
// Large images are downscaled to MaxSide before analysis.
type EdgeDetector struct {
	MinArea   int     // pixels, at analysis scale
	Threshold float64 // gradient magnitude
	MaxSide   int
}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{
		MinArea:   120,
		Threshold: 40.0,
		MaxSide:   256,
	}
}

func (d *EdgeDetector) Detect(img image.Image) ([]Region, error) {
	src := img.Bounds()
	gray, scale := d.downscale(img)

	edges := sobel(gray, d.Threshold)
	dilated := dilate(edges, 3, 2)

	b := gray.Bounds()
	total := float64(b.Dx() * b.Dy())
	var regions []Region
	for _, rect := range components(dilated) {
		area := rect.Dx() * rect.Dy()
		if area < d.MinArea {
			continue
		}
		// back to source coordinates
		full := image.Rect(
			src.Min.X+int(float64(rect.Min.X)*scale),
			src.Min.Y+int(float64(rect.Min.Y)*scale),
			src.Min.X+int(math.Ceil(float64(rect.Max.X)*scale)),
			src.Min.Y+int(math.Ceil(float64(rect.Max.Y)*scale)),
		).Intersect(src)
		regions = append(regions, Region{Rect: full, Weight: float64(area) / total})
	}
	return regions, nil
}

// downscale converts to grayscale at most MaxSide pixels on the long edge and
// returns the source-to-analysis ratio.
func (d *EdgeDetector) downscale(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	scale := 1.0
	w, h := b.Dx(), b.Dy()
	if d.MaxSide > 0 && long > d.MaxSide {
		scale = float64(long) / float64(d.MaxSide)
		w = max(1, int(float64(b.Dx())/scale))
		h = max(1, int(float64(b.Dy())/scale))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, xdraw.Src, nil)
	return gray, scale
}

var (
	kernelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	kernelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

func sobel(gray *image.Gray, threshold float64) *image.Gray {
	b := gray.Bounds()
	edges := image.NewGray(b)
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			var sx, sy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					p := float64(gray.GrayAt(x+kx, y+ky).Y)
					sx += p * kernelX[ky+1][kx+1]
					sy += p * kernelY[ky+1][kx+1]
				}
			}
			if math.Hypot(sx, sy) > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return edges
}

func dilate(img *image.Gray, kernel, iterations int) *image.Gray {
	b := img.Bounds()
	half := kernel / 2
	result := img
	for i := 0; i < iterations; i++ {
		next := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				var v uint8
				for ky := max(b.Min.Y, y-half); ky <= min(b.Max.Y-1, y+half) && v == 0; ky++ {
					for kx := max(b.Min.X, x-half); kx <= min(b.Max.X-1, x+half); kx++ {
						if result.GrayAt(kx, ky).Y > 128 {
							v = 255
							break
						}
					}
				}
				next.SetGray(x, y, color.Gray{Y: v})
			}
		}
		result = next
	}
	return result
}

// components returns bounding rectangles of 4-connected white areas.
func components(img *image.Gray) []image.Rectangle {
	b := img.Bounds()
	visited := make([]bool, b.Dx()*b.Dy())
	idx := func(x, y int) int { return (y-b.Min.Y)*b.Dx() + (x - b.Min.X) }

	var rects []image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if visited[idx(x, y)] || img.GrayAt(x, y).Y <= 128 {
				continue
			}
			rect := image.Rect(x, y, x+1, y+1)
			stack := []image.Point{{X: x, Y: y}}
			visited[idx(x, y)] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				rect = rect.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for _, n := range [4]image.Point{{X: p.X + 1, Y: p.Y}, {X: p.X - 1, Y: p.Y}, {X: p.X, Y: p.Y + 1}, {X: p.X, Y: p.Y - 1}} {
					if !n.In(b) || visited[idx(n.X, n.Y)] || img.GrayAt(n.X, n.Y).Y <= 128 {
						continue
					}
					visited[idx(n.X, n.Y)] = true
					stack = append(stack, n)
				}
			}
			rects = append(rects, rect)
		}
	}
	return rects
}
