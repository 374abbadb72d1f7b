package renderqrcode

type Input struct {
	Value  string `json:"qrValue"`
	Color  string `json:"qrColor"`
	Size   int    `json:"size,omitempty"`
	Format string `json:"format,omitempty"`
}

// Output holds the rendered symbol. SVGDocument is set for the svg format
// and PNGData, base64 encoded, for png.
type Output struct {
	SVGDocument string `json:"svgDocument,omitempty"`
	PNGData     string `json:"pngData,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Modules     int    `json:"modules"`
}
