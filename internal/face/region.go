package face

import (
	"fmt"
	"image"
)

// Region is a rectangular face hypothesis in pixel coordinates.
// X, Y is the top-left corner.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// RegionFromRect converts an image.Rectangle to a Region.
func RegionFromRect(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns the region area in pixels.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Validate checks the region is non-empty and lies within an image of the given size.
func (r Region) Validate(width, height int) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %s has empty extent", r)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region %s has negative offset", r)
	}
	if r.X+r.Width > width || r.Y+r.Height > height {
		return fmt.Errorf("region %s exceeds image %dx%d", r, width, height)
	}
	return nil
}

// ToRelative converts the region to relative [x, y, w, h] coordinates (0-1).
func (r Region) ToRelative(width, height int) []float64 {
	if width <= 0 || height <= 0 {
		return nil
	}
	return []float64{
		float64(r.X) / float64(width),
		float64(r.Y) / float64(height),
		float64(r.Width) / float64(width),
		float64(r.Height) / float64(height),
	}
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
