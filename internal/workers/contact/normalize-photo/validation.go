package normalizephoto

import "qrcode-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"photoData"},
		Properties: map[string]validation.Property{
			"photoData": {
				Type:        "string",
				Description: "Base64 encoded image file (JPEG, PNG, GIF, BMP or WebP)",
				MinLength:   validation.IntPtr(1),
			},
			"maxWidth": {
				Type:        "integer",
				Description: "Bounding box width, defaults to the configured maximum",
				Minimum:     validation.FloatPtr(1),
				Maximum:     validation.FloatPtr(4096),
			},
			"maxHeight": {
				Type:        "integer",
				Description: "Bounding box height, defaults to the configured maximum",
				Minimum:     validation.FloatPtr(1),
				Maximum:     validation.FloatPtr(4096),
			},
		},
		AdditionalProperties: true,
	}
}
