// Package face locates the face to embed in a decoded image.
//
// Selection is first-in-scan-order: the first region the detector reports
// is used and the rest are discarded. What "first" means depends on the
// detector; the cascade detector enumerates OpenCV detectMultiScale results
// as returned.
package face

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-vector/internal/imaging"
)

// ErrNoFace is returned when the detector finds no region.
var ErrNoFace = errors.New("no face found in the image")

// Detector finds face regions in an image, in its native scan order.
type Detector interface {
	Detect(ctx context.Context, img *imaging.Image) ([]Region, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img *imaging.Image) ([]Region, error)

func (f DetectorFunc) Detect(ctx context.Context, img *imaging.Image) ([]Region, error) {
	return f(ctx, img)
}

// Detection is the outcome of a successful scan.
type Detection struct {
	Region     Region // selected region
	Candidates int    // regions the detector reported
	Face       *imaging.Image
}

// Locator runs a Detector and applies the selection policy.
type Locator struct {
	detector Detector
}

// NewLocator creates a Locator around a detector.
func NewLocator(detector Detector) *Locator {
	return &Locator{detector: detector}
}

// Locate scans img and crops the first detected region.
func (l *Locator) Locate(ctx context.Context, img *imaging.Image) (*Detection, error) {
	regions, err := l.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(regions) == 0 {
		return nil, ErrNoFace
	}

	selected := regions[0]
	if err := selected.Validate(img.Width, img.Height); err != nil {
		return nil, fmt.Errorf("detector returned invalid region: %w", err)
	}

	crop, err := img.Crop(selected.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to crop face: %w", err)
	}

	return &Detection{
		Region:     selected,
		Candidates: len(regions),
		Face:       crop,
	}, nil
}
