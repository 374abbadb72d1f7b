package buildcontactpayload

import "qrcode-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"mode": {
				Type:        "string",
				Description: "vcard or url",
			},
			"name":     {Type: "string", Description: "Full name", MaxLength: validation.IntPtr(200)},
			"jobTitle": {Type: "string", Description: "Job title", MaxLength: validation.IntPtr(200)},
			"taxId":    {Type: "string", Description: "Collected but never encoded", MaxLength: validation.IntPtr(50)},
			"phone":    {Type: "string", Description: "Phone number", MaxLength: validation.IntPtr(50)},
			"email":    {Type: "string", Description: "Email address", MaxLength: validation.IntPtr(255)},
			"website":  {Type: "string", Description: "Website", MaxLength: validation.IntPtr(2048)},
			"url":      {Type: "string", Description: "Link encoded in url mode", MaxLength: validation.IntPtr(4096)},
			"photoUrl": {
				Type:        "string",
				Description: "Remote photo, fetched once",
				Pattern:     validation.StringPtr(`^https?://`),
			},
			"photoData": {Type: "string", Description: "Base64 encoded photo file"},
			"color":     {Type: "string", Description: "Foreground color hex or label"},
		},
		// Zeebe hands over every process variable in scope.
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"qrValue", "qrColor", "hasPhoto", "mode"},
		Properties: map[string]validation.Property{
			"qrValue":  {Type: "string", Description: "Value to encode in the QR symbol"},
			"qrColor":  {Type: "string", Description: "Foreground color, #RRGGBB"},
			"hasPhoto": {Type: "boolean", Description: "Whether the vCard embeds a PHOTO line"},
			"mode":     {Type: "string", Description: "Resolved mode"},
		},
		AdditionalProperties: false,
	}
}
