package qrrender

import (
	"image/color"
	"strings"

	apperrors "qrcode-workers/internal/common/errors"
)

// Color is a foreground color in #RRGGBB form.
type Color string

const (
	Black Color = "#000000"
	Red   Color = "#FF0000"
	Blue  Color = "#0000FF"
)

// PaletteEntry is a selectable color and its display label.
type PaletteEntry struct {
	Color Color
	Label string
}

// Palette lists the selectable foreground colors in display order.
var Palette = []PaletteEntry{
	{Black, "Black"},
	{Red, "Red"},
	{Blue, "Blue"},
}

// ParseColor accepts a palette hex value or its label, case-insensitively.
// An empty string selects Black.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Black, nil
	}
	for _, p := range Palette {
		if strings.EqualFold(s, string(p.Color)) || strings.EqualFold(s, p.Label) {
			return p.Color, nil
		}
	}
	return "", apperrors.NewInvalidColorError(s)
}

// RGBA converts the color for raster output. Invalid values yield opaque black.
func (c Color) RGBA() color.RGBA {
	rgba, err := parseHex(string(c))
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return rgba
}

// Label returns the display label of a palette color.
func (c Color) Label() string {
	for _, p := range Palette {
		if p.Color == c {
			return p.Label
		}
	}
	return string(c)
}
