package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Link(t *testing.T) {
	out := filepath.Join(t.TempDir(), "link.svg")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"link", "-url", "https://example.com", "-color", "red", "-out", out}, &stdout, &stderr)

	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<svg xmlns:xlink="))
	assert.Contains(t, string(data), `fill="#FF0000"`)
	assert.Contains(t, stderr.String(), "Wrote "+out)
}

func TestRun_VCardWithPhotoToStdout(t *testing.T) {
	photoPath := filepath.Join(t.TempDir(), "me.png")
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 12, 8))))
	require.NoError(t, os.WriteFile(photoPath, img.Bytes(), 0o600))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"vcard", "-name", "Ana", "-photo", photoPath, "-format", "png", "-out", "-"}, &stdout, &stderr)

	require.NoError(t, err)
	decoded, err := png.Decode(&stdout)
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"sms"}, "unknown command"},
		{"bad color", []string{"link", "-url", "x", "-color", "green"}, "Color is not part of the palette"},
		{"empty link", []string{"link", "-out", "-"}, "nothing to encode"},
		{"both photos", []string{"vcard", "-photo", "a.png", "-photo-url", "https://x"}, "mutually exclusive"},
		{"bad format", []string{"link", "-url", "x", "-format", "gif", "-out", "-"}, "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "qrcard vcard")
	require.NoError(t, run(context.Background(), []string{"link", "-h"}, &stdout, &stderr))
}
