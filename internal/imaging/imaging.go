// Package imaging decodes raw image bytes into an 8-bit BGR pixel matrix
// and provides the crop and encode helpers the pipeline needs around it.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when bytes are not a recognizable or intact image.
var ErrDecode = errors.New("unable to decode image")

// MaxPixels bounds the decoded size to keep a hostile header from
// allocating gigabytes before detection even starts.
const MaxPixels = 64 << 20

// Image is a decoded pixel matrix. Pix holds Height rows of
// Width*Channels bytes each, channels in BGR order.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// Stride returns the number of bytes per row.
func (m *Image) Stride() int {
	return m.Width * m.Channels
}

// Bounds returns the image rectangle anchored at the origin.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Decode decodes JPEG, PNG, GIF, BMP, TIFF or WebP data into a 3-channel image.
// Alpha is dropped, as a colour read in OpenCV does.
func Decode(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %s image of %dx%d exceeds %d pixels", ErrDecode, format, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image.Image into a BGR Image.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	nrgba, ok := src.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	}

	w, h := b.Dx(), b.Dy()
	out := &Image{Width: w, Height: h, Channels: 3, Pix: make([]uint8, w*h*3)}
	for y := range h {
		in := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		row := out.Pix[y*w*3 : (y+1)*w*3]
		for x := range w {
			row[x*3] = in[x*4+2]
			row[x*3+1] = in[x*4+1]
			row[x*3+2] = in[x*4]
		}
	}
	return out
}

// Crop returns a copy of the pixels inside r.
func (m *Image) Crop(r image.Rectangle) (*Image, error) {
	if r.Empty() {
		return nil, fmt.Errorf("crop %v is empty", r)
	}
	if !r.In(m.Bounds()) {
		return nil, fmt.Errorf("crop %v outside image %v", r, m.Bounds())
	}

	w, h := r.Dx(), r.Dy()
	out := &Image{Width: w, Height: h, Channels: m.Channels, Pix: make([]uint8, w*h*m.Channels)}
	stride := m.Stride()
	rowLen := w * m.Channels
	for y := range h {
		src := (r.Min.Y+y)*stride + r.Min.X*m.Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], m.Pix[src:src+rowLen])
	}
	return out, nil
}

// ToNRGBA converts the image back to a standard library image.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(m.Bounds())
	for y := range m.Height {
		row := m.Pix[y*m.Stride() : (y+1)*m.Stride()]
		dst := out.Pix[y*out.Stride : y*out.Stride+m.Width*4]
		for x := range m.Width {
			switch m.Channels {
			case 1:
				v := row[x]
				dst[x*4], dst[x*4+1], dst[x*4+2] = v, v, v
			default:
				dst[x*4] = row[x*m.Channels+2]
				dst[x*4+1] = row[x*m.Channels+1]
				dst[x*4+2] = row[x*m.Channels]
			}
			dst[x*4+3] = 0xFF
		}
	}
	return out
}

// EncodePNG encodes the image losslessly so a crop survives transport bit for bit.
func EncodePNG(m *Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.ToNRGBA()); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
