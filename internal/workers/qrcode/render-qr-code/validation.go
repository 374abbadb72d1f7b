package renderqrcode

import "qrcode-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"qrValue"},
		Properties: map[string]validation.Property{
			"qrValue": {
				Type:        "string",
				Description: "Value to encode, usually the output of contact.payload.build",
				MinLength:   validation.IntPtr(1),
			},
			"qrColor": {
				Type:        "string",
				Description: "Foreground color hex or label",
			},
			"size": {
				Type:        "integer",
				Description: "Rendered size in pixels",
				Minimum:     validation.FloatPtr(21),
				Maximum:     validation.FloatPtr(4096),
			},
			"format": {
				Type:        "string",
				Description: "Output format",
				Enum:        []string{"svg", "png"},
			},
		},
		AdditionalProperties: true,
	}
}
