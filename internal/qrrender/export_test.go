package qrrender

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcode-workers/internal/common/config"
)

func TestExport(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "adds both namespaces",
			markup: `<svg height="256" width="256"><path d="M0 0h1v1H0z"></path></svg>`,
			want:   `<svg xmlns:xlink="http://www.w3.org/1999/xlink" xmlns="http://www.w3.org/2000/svg" height="256" width="256"><path d="M0 0h1v1H0z"></path></svg>`,
		},
		{
			name:   "keeps existing svg namespace",
			markup: `<svg xmlns="http://www.w3.org/2000/svg" width="10"></svg>`,
			want:   `<svg xmlns:xlink="http://www.w3.org/1999/xlink" xmlns="http://www.w3.org/2000/svg" width="10"></svg>`,
		},
		{
			name:   "already standalone",
			markup: `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"></svg>`,
			want:   `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"></svg>`,
		},
		{
			name:   "bare element",
			markup: `<svg></svg>`,
			want:   `<svg xmlns:xlink="http://www.w3.org/1999/xlink" xmlns="http://www.w3.org/2000/svg"></svg>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Export(tt.markup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Export(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestExport_RejectsNonSVG(t *testing.T) {
	_, err := Export(`<div></div>`)
	assert.Error(t, err)
}

func TestRenderExport_IsWellFormedSVG(t *testing.T) {
	r := NewRenderer(config.RenderConfig{}, nil)

	doc, err := r.RenderExport(RenderInput{Value: "https://example.com", Color: Black})
	require.NoError(t, err)

	var root struct {
		XMLName xml.Name
		Width   string `xml:"width,attr"`
	}
	require.NoError(t, xml.NewDecoder(strings.NewReader(doc)).Decode(&root))
	assert.Equal(t, "svg", root.XMLName.Local)
	assert.Equal(t, "http://www.w3.org/2000/svg", root.XMLName.Space)
	assert.Equal(t, "256", root.Width)
}
