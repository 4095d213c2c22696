// Package cascade implements face.Detector with an OpenCV Haar cascade.
package cascade

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-vector/internal/config"
	"github.com/kozaktomas/face-vector/internal/face"
	"github.com/kozaktomas/face-vector/internal/imaging"
)

// Detector scans images with a Haar cascade loaded once at construction.
// Results are in detectMultiScale order, which is what face.Locator
// treats as scan order.
type Detector struct {
	mu           sync.Mutex
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
}

// New loads the cascade file named in cfg.
func New(cfg *config.DetectorConfig) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s", cfg.CascadePath)
	}

	return &Detector{
		classifier:   classifier,
		scaleFactor:  cfg.ScaleFactor,
		minNeighbors: cfg.MinNeighbors,
		minSize:      image.Pt(cfg.MinSize, cfg.MinSize),
	}, nil
}

// Detect implements face.Detector.
func (d *Detector) Detect(ctx context.Context, img *imaging.Image) ([]face.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Channels != 3 {
		return nil, fmt.Errorf("expected 3-channel image, got %d", img.Channels)
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap image: %w", err)
	}
	defer mat.Close()

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(mat, d.scaleFactor, d.minNeighbors, 0, d.minSize, image.Point{})
	d.mu.Unlock()

	regions := make([]face.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, face.RegionFromRect(r))
	}
	return regions, nil
}

// Close releases the classifier.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
