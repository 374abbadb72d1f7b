package qrrender

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ExportFilename    = "qrcode.svg"
	ExportContentType = "image/svg+xml;charset=utf-8"

	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
)

var (
	hasSVGNamespace   = regexp.MustCompile(`^<svg[^>]+xmlns="http://www\.w3\.org/2000/svg"`)
	hasXLinkNamespace = regexp.MustCompile(`^<svg[^>]+"http://www\.w3\.org/1999/xlink"`)
)

// Export turns serialized <svg> markup into a standalone document by adding
// the SVG and XLink namespace declarations when they are missing. Markup that
// already declares them is returned unchanged.
func Export(markup string) (string, error) {
	source := strings.TrimSpace(markup)
	if !strings.HasPrefix(source, "<svg") {
		return "", fmt.Errorf("markup does not start with an <svg> element")
	}

	if !hasSVGNamespace.MatchString(source) {
		source = `<svg xmlns="` + svgNamespace + `"` + strings.TrimPrefix(source, "<svg")
	}
	if !hasXLinkNamespace.MatchString(source) {
		source = `<svg xmlns:xlink="` + xlinkNamespace + `"` + strings.TrimPrefix(source, "<svg")
	}
	return source, nil
}

// RenderExport renders in and returns the downloadable SVG document.
func (r *Renderer) RenderExport(in RenderInput) (string, error) {
	markup, err := r.SVG(in)
	if err != nil {
		return "", err
	}
	return Export(markup)
}
