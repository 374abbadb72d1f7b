// Package photo bounds contact photos to a fixed box and re-encodes them as
// base64 JPEG so they can be inlined into a vCard PHOTO line.
package photo

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	// Decoders accepted for uploaded or fetched photos.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"qrcode-workers/internal/common/config"
	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
)

const (
	DefaultMaxWidth  = 200
	DefaultMaxHeight = 200
	DefaultQuality   = 70

	// DefaultMaxSourcePixels caps decoded source images at 40 megapixels.
	DefaultMaxSourcePixels = 40_000_000
)

// NormalizedImage is a bounded JPEG, base64 encoded without any data URI prefix.
type NormalizedImage struct {
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DataURI returns the image as an inline data URI, for previews.
func (n *NormalizedImage) DataURI() string {
	return "data:image/jpeg;base64," + n.Data
}

// DecodeError reports source bytes that are not a decodable image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("photo decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodePhotoDecodeFailed }

// Normalizer scales images into a bounding box and re-encodes them.
type Normalizer struct {
	maxWidth  int
	maxHeight int
	quality   int
	maxPixels int
	logger    logger.Logger
}

// NewNormalizer builds a Normalizer from the photo config section. Zero values
// fall back to the 200x200 / quality 70 defaults.
func NewNormalizer(cfg config.PhotoConfig, log logger.Logger) *Normalizer {
	n := &Normalizer{
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		quality:   cfg.JPEGQuality,
		maxPixels: cfg.MaxSourcePixels,
		logger:    log,
	}
	if n.maxWidth <= 0 {
		n.maxWidth = DefaultMaxWidth
	}
	if n.maxHeight <= 0 {
		n.maxHeight = DefaultMaxHeight
	}
	if n.quality <= 0 || n.quality > 100 {
		n.quality = DefaultQuality
	}
	if n.maxPixels <= 0 {
		n.maxPixels = DefaultMaxSourcePixels
	}
	if n.logger == nil {
		n.logger = logger.NewNoOpLogger()
	}
	return n
}

// Bounds returns the configured bounding box.
func (n *Normalizer) Bounds() (int, int) {
	return n.maxWidth, n.maxHeight
}

// Normalize bounds src to the configured box.
func (n *Normalizer) Normalize(src []byte) (*NormalizedImage, error) {
	return n.NormalizeTo(src, n.maxWidth, n.maxHeight)
}

// NormalizeTo bounds src to an explicit box using the configured quality.
func (n *Normalizer) NormalizeTo(src []byte, maxWidth, maxHeight int) (*NormalizedImage, error) {
	start := time.Now()
	defer func() { metrics.PhotoNormalizeDuration.Observe(time.Since(start).Seconds()) }()

	out, format, err := normalize(src, maxWidth, maxHeight, n.quality, n.maxPixels)
	if err != nil {
		n.logger.Warn("Photo normalization failed", map[string]interface{}{
			"sourceBytes": len(src),
			"error":       err.Error(),
		})
		return nil, err
	}

	n.logger.Debug("Photo normalized", map[string]interface{}{
		"sourceFormat": format,
		"sourceBytes":  len(src),
		"width":        out.Width,
		"height":       out.Height,
	})
	return out, nil
}

// Normalize decodes src and bounds it to maxWidth x maxHeight at quality 70,
// rejecting sources above DefaultMaxSourcePixels.
func Normalize(src []byte, maxWidth, maxHeight int) (*NormalizedImage, error) {
	out, _, err := normalize(src, maxWidth, maxHeight, DefaultQuality, DefaultMaxSourcePixels)
	return out, err
}

func normalize(src []byte, maxWidth, maxHeight, quality, maxPixels int) (*NormalizedImage, string, error) {
	if maxWidth < 1 || maxHeight < 1 {
		return nil, "", fmt.Errorf("invalid bounds %dx%d", maxWidth, maxHeight)
	}
	if len(src) == 0 {
		return nil, "", &DecodeError{Err: fmt.Errorf("empty image data")}
	}

	// Check the header before decoding; small files can declare huge canvases.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	if cfg.Width < 1 || cfg.Height < 1 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, &DecodeError{Err: fmt.Errorf("%s image is %dx%d, limit is %d pixels", format, cfg.Width, cfg.Height, maxPixels)}
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}

	b := img.Bounds()
	width, height := ScaledSize(b.Dx(), b.Dy(), maxWidth, maxHeight)

	// JPEG has no alpha; transparent areas become white.
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, format, fmt.Errorf("encode jpeg: %w", err)
	}

	return &NormalizedImage{
		Data:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  width,
		Height: height,
	}, format, nil
}

// ScaledSize returns the output dimensions for a width x height source. When
// width >= height the width bound drives the scale, otherwise the height
// bound does; a square source takes the width branch. Images already inside
// the box keep their size. Dimensions never drop below one pixel.
func ScaledSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width >= height {
		if width > maxWidth {
			height = scale(height, maxWidth, width)
			width = maxWidth
		}
		// Only reachable when the box is narrower in height than in width.
		if height > maxHeight {
			width = scale(width, maxHeight, height)
			height = maxHeight
		}
	} else {
		if height > maxHeight {
			width = scale(width, maxHeight, height)
			height = maxHeight
		}
		if width > maxWidth {
			height = scale(height, maxWidth, width)
			width = maxWidth
		}
	}
	return width, height
}

// scale computes round(v * num / den), rounding halves up.
func scale(v, num, den int) int {
	s := int(math.Floor(float64(v)*float64(num)/float64(den) + 0.5))
	if s < 1 {
		return 1
	}
	return s
}
