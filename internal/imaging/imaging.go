// Package imaging normalizes uploaded listing photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the longest edge of stored photos.
	DefaultMaxDimension = 1024
	// DefaultQuality is the JPEG quality used for re-encoding.
	DefaultQuality = 85
	// DefaultMaxPixels bounds the decoded size of an upload.
	DefaultMaxPixels = 40_000_000
	// OutputMIME is the content type of every processed image.
	OutputMIME = "image/jpeg"
)

var (
	// ErrUnsupportedFormat is returned when the sniffed type is not an accepted photo format.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned when the declared dimensions exceed the pixel budget.
	ErrTooLarge = errors.New("image dimensions too large")
)

type codec struct {
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var codecs = map[string]codec{
	"image/jpeg": {config: jpeg.DecodeConfig, decode: jpeg.Decode},
	"image/png":  {config: png.DecodeConfig, decode: png.Decode},
	"image/webp": {config: webp.DecodeConfig, decode: webp.Decode},
}

// Processor downsizes and re-encodes photos. A zero MaxPixels uses
// DefaultMaxPixels.
type Processor struct {
	MaxDimension int
	Quality      int
	MaxPixels    int
}

// NewProcessor returns a processor with the default limits.
func NewProcessor() *Processor {
	return &Processor{MaxDimension: DefaultMaxDimension, Quality: DefaultQuality, MaxPixels: DefaultMaxPixels}
}

// Result is a processed photo ready for storage.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process sniffs the real content type, rejects anything but JPEG, PNG and
// WebP, scales the photo to fit MaxDimension and re-encodes it as JPEG.
// Dimensions are checked from the header before any pixels are decoded.
func (p *Processor) Process(data []byte) (*Result, error) {
	detected := http.DetectContentType(data)
	c, ok := codecs[detected]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", detected, err)
	}
	maxPixels := p.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", detected, err)
	}

	img = fit(img, p.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	bounds := img.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		MIME:   OutputMIME,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// fit scales img so neither edge exceeds maxDim, keeping the aspect ratio.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
