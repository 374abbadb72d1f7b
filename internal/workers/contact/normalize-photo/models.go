package normalizephoto

type Input struct {
	PhotoData string `json:"photoData"`
	MaxWidth  int    `json:"maxWidth,omitempty"`
	MaxHeight int    `json:"maxHeight,omitempty"`
}

// Output carries the JPEG as base64 without a data URI prefix.
type Output struct {
	Photo  string `json:"photo"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
