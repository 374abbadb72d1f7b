// Package qrrender turns a payload and a foreground color into a QR symbol,
// as SVG markup or PNG, and prepares SVG markup for download.
package qrrender

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"qrcode-workers/internal/common/config"
	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
)

const (
	DefaultSize       = 256
	DefaultBackground = "#FFFFFF"
)

// RenderInput is what the renderer encodes.
type RenderInput struct {
	Value string `json:"value"`
	Color Color  `json:"color"`
}

// Renderer encodes payloads with github.com/skip2/go-qrcode.
type Renderer struct {
	size       int
	background Color
	level      qrcode.RecoveryLevel
	margin     bool
	maxPayload int
	logger     logger.Logger
}

func NewRenderer(cfg config.RenderConfig, log logger.Logger) *Renderer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &Renderer{
		size:       cfg.Size,
		background: Color(strings.ToUpper(cfg.Background)),
		level:      recoveryLevel(cfg.RecoveryLevel),
		margin:     cfg.IncludeMargin,
		maxPayload: cfg.MaxPayloadBytes,
		logger:     log,
	}
	if r.size <= 0 {
		r.size = DefaultSize
	}
	if _, err := parseHex(string(r.background)); err != nil {
		r.background = DefaultBackground
	}
	return r
}

// Size returns the default rendering size in pixels.
func (r *Renderer) Size() int { return r.size }

func recoveryLevel(s string) qrcode.RecoveryLevel {
	switch strings.ToUpper(s) {
	case "M":
		return qrcode.Medium
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Low
	}
}

func (r *Renderer) encode(in RenderInput) (*qrcode.QRCode, error) {
	if in.Value == "" {
		return nil, apperrors.NewQRRenderError(fmt.Errorf("empty value"))
	}
	if r.maxPayload > 0 && len(in.Value) > r.maxPayload {
		return nil, apperrors.NewQRPayloadTooLargeError(len(in.Value))
	}

	q, err := qrcode.New(in.Value, r.level)
	if err != nil {
		if strings.Contains(err.Error(), "too long") {
			return nil, apperrors.NewQRPayloadTooLargeError(len(in.Value))
		}
		return nil, apperrors.NewQRRenderError(err)
	}
	q.DisableBorder = !r.margin
	return q, nil
}

// Bitmap returns the module matrix, true for dark modules.
func (r *Renderer) Bitmap(in RenderInput) ([][]bool, error) {
	q, err := r.encode(in)
	if err != nil {
		return nil, err
	}
	return q.Bitmap(), nil
}

// SVG renders in as SVG markup at the default size. Like a DOM-rendered
// <svg> element, the markup carries no namespace declarations; pass it
// through Export before writing it to a file.
func (r *Renderer) SVG(in RenderInput) (string, error) {
	return r.SVGSize(in, r.size)
}

// SVGSize renders in as SVG markup scaled to size pixels.
func (r *Renderer) SVGSize(in RenderInput, size int) (string, error) {
	fg, err := ParseColor(string(in.Color))
	if err != nil {
		metrics.QRCodesRendered.WithLabelValues("svg", "error").Inc()
		return "", err
	}
	bitmap, err := r.Bitmap(in)
	if err != nil {
		metrics.QRCodesRendered.WithLabelValues("svg", "error").Inc()
		r.logger.Warn("QR render failed", map[string]interface{}{
			"format":       "svg",
			"payloadBytes": len(in.Value),
			"error":        err.Error(),
		})
		return "", err
	}
	if size <= 0 {
		size = r.size
	}

	n := len(bitmap)
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg height="%d" width="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, n, n)
	fmt.Fprintf(&sb, `<path fill="%s" d="M0,0 h%dv%dH0z"></path>`, r.background, n, n)
	fmt.Fprintf(&sb, `<path fill="%s" d="%s"></path>`, fg, modulePath(bitmap))
	sb.WriteString(`</svg>`)

	metrics.QRCodesRendered.WithLabelValues("svg", "ok").Inc()
	r.logger.Debug("QR rendered", map[string]interface{}{
		"format":       "svg",
		"modules":      n,
		"payloadBytes": len(in.Value),
		"color":        string(fg),
	})
	return sb.String(), nil
}

// modulePath draws each horizontal run of dark modules as one rectangle.
func modulePath(bitmap [][]bool) string {
	var sb strings.Builder
	for y, row := range bitmap {
		start := -1
		for x := 0; x <= len(row); x++ {
			dark := x < len(row) && row[x]
			switch {
			case dark && start < 0:
				start = x
			case !dark && start >= 0:
				fmt.Fprintf(&sb, "M%d %dh%dv1H%dz", start, y, x-start, start)
				start = -1
			}
		}
	}
	return sb.String()
}

// PNG renders in as a size x size PNG. A non-positive size uses the default.
func (r *Renderer) PNG(in RenderInput, size int) ([]byte, error) {
	fg, err := ParseColor(string(in.Color))
	if err != nil {
		metrics.QRCodesRendered.WithLabelValues("png", "error").Inc()
		return nil, err
	}
	q, err := r.encode(in)
	if err != nil {
		metrics.QRCodesRendered.WithLabelValues("png", "error").Inc()
		return nil, err
	}
	if size <= 0 {
		size = r.size
	}

	q.ForegroundColor = fg.RGBA()
	q.BackgroundColor = r.background.RGBA()

	out, err := q.PNG(size)
	if err != nil {
		metrics.QRCodesRendered.WithLabelValues("png", "error").Inc()
		return nil, apperrors.NewQRRenderError(err)
	}
	metrics.QRCodesRendered.WithLabelValues("png", "ok").Inc()
	return out, nil
}

// Modules returns the symbol width in modules, excluding any quiet zone.
func (r *Renderer) Modules(in RenderInput) (int, error) {
	q, err := r.encode(in)
	if err != nil {
		return 0, err
	}
	q.DisableBorder = true
	return len(q.Bitmap()), nil
}

func parseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
