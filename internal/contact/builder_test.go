package contact

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qrcode-workers/internal/common/config"
	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/photo"
)

// ==========================
// Mock Implementations
// ==========================

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	args := m.Called(ctx, rawURL)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func createTestBuilder(t *testing.T, fetcher Fetcher) *Builder {
	t.Helper()
	log := logger.NewTestLogger(t)
	return NewBuilder(photo.NewNormalizer(config.PhotoConfig{}, log), fetcher, log)
}

// ==========================
// Assemble
// ==========================

func TestAssemble_ExactPayloadWithoutPhoto(t *testing.T) {
	fields := Fields{Name: "Ana", Phone: "+551199999999", Email: "ana@x.com"}

	got := Assemble(fields, "")

	want := "BEGIN:VCARD\nVERSION:3.0\nFN:Ana\nTITLE:\nTEL;TYPE=voice,work,pref:+551199999999\nEMAIL:ana@x.com\nURL:\nEND:VCARD"
	assert.Equal(t, want, got.String())
	assert.False(t, HasPhoto(got))
}

func TestAssemble_PhotoLineBeforeEnd(t *testing.T) {
	got := Assemble(Fields{Name: "Bo", JobTitle: "CTO", Website: "https://bo.dev"}, "QUJD")

	lines := strings.Split(got.String(), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "TITLE:CTO", lines[3])
	assert.Equal(t, "URL:https://bo.dev", lines[6])
	assert.Equal(t, "PHOTO;ENCODING=b;TYPE=JPEG:QUJD", lines[7])
	assert.Equal(t, "END:VCARD", lines[8])
	assert.True(t, HasPhoto(got))
}

func TestAssemble_TaxIDNeverEmitted(t *testing.T) {
	got := Assemble(Fields{Name: "Ana", TaxID: "123.456.789-00"}, "")
	assert.NotContains(t, got.String(), "123.456.789-00")
}

func TestAssemble_FieldsCopiedVerbatim(t *testing.T) {
	got := Assemble(Fields{Name: "Ana; Maria", Email: "not-an-email"}, "")
	assert.Contains(t, got.String(), "FN:Ana; Maria\n")
	assert.Contains(t, got.String(), "EMAIL:not-an-email\n")
}

// ==========================
// Build
// ==========================

func TestBuild_NoPhotoOmitsPhotoLine(t *testing.T) {
	fetcher := new(MockFetcher)
	b := createTestBuilder(t, fetcher)

	for _, src := range []PhotoSource{nil, NoPhoto{}} {
		payload, err := b.Build(context.Background(), Fields{Name: "Ana"}, src)
		require.NoError(t, err)
		assert.NotContains(t, payload.String(), "PHOTO")
	}
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestBuild_LocalFileInlinesBoundedPhoto(t *testing.T) {
	b := createTestBuilder(t, new(MockFetcher))

	payload, err := b.Build(context.Background(), Fields{Name: "Ana"}, LocalFile{Data: createTestImage(t, 600, 300)})
	require.NoError(t, err)
	assert.True(t, HasPhoto(payload))

	img, err := b.ResolvePhoto(context.Background(), LocalFile{Data: createTestImage(t, 600, 300)})
	require.NoError(t, err)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.Contains(t, payload.String(), "PHOTO;ENCODING=b;TYPE=JPEG:"+img.Data+"\nEND:VCARD")
}

func TestBuild_DeterministicForIdenticalInput(t *testing.T) {
	b := createTestBuilder(t, new(MockFetcher))
	src := createTestImage(t, 321, 123)
	fields := Fields{Name: "Ana", Phone: "1"}

	first, err := b.Build(context.Background(), fields, LocalFile{Data: src})
	require.NoError(t, err)
	second, err := b.Build(context.Background(), fields, &LocalFile{Data: append([]byte(nil), src...)})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_RemoteURLFetchedOnce(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://cdn.example/ana.png").
		Return(createTestImage(t, 100, 400), nil).Once()
	b := createTestBuilder(t, fetcher)

	payload, err := b.Build(context.Background(), Fields{Name: "Ana"}, RemoteURL{URL: "https://cdn.example/ana.png"})
	require.NoError(t, err)
	assert.True(t, HasPhoto(payload))
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestBuild_RemoteFetchFailureEmitsNothing(t *testing.T) {
	fetchErr := &FetchError{URL: "https://cdn.example/missing.png", StatusCode: 404}
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://cdn.example/missing.png").Return(nil, fetchErr).Once()
	b := createTestBuilder(t, fetcher)

	payload, err := b.Build(context.Background(), Fields{Name: "Ana"}, RemoteURL{URL: "https://cdn.example/missing.png"})
	require.Error(t, err)
	assert.Empty(t, payload)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 404, fe.StatusCode)
	assert.Equal(t, apperrors.ErrCodePhotoFetchFailed, apperrors.FromError(err).Code)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestBuild_RemoteNonImageIsDecodeError(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return([]byte("<html></html>"), nil)
	b := createTestBuilder(t, fetcher)

	_, err := b.Build(context.Background(), Fields{}, RemoteURL{URL: "https://example.com/page"})
	require.Error(t, err)

	var decodeErr *photo.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	var fe *FetchError
	assert.False(t, errors.As(err, &fe))
}

func TestBuild_LocalDecodeFailure(t *testing.T) {
	b := createTestBuilder(t, new(MockFetcher))

	payload, err := b.Build(context.Background(), Fields{Name: "Ana"}, LocalFile{Data: []byte{0x00, 0x01}})
	require.Error(t, err)
	assert.Empty(t, payload)

	var decodeErr *photo.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

// ==========================
// Value / Mode
// ==========================

func TestValue_URLModeReturnsRawURLVerbatim(t *testing.T) {
	fetcher := new(MockFetcher)
	b := createTestBuilder(t, fetcher)

	raw := "  https://example.com/a?b=c&d=e#frag "
	got, err := b.Value(context.Background(), ModeURL, Fields{Name: "Ana"}, RemoteURL{URL: "https://x/y.png"}, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got.String())
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestValue_VCardMode(t *testing.T) {
	b := createTestBuilder(t, new(MockFetcher))

	got, err := b.Value(context.Background(), ModeVCard, Fields{Name: "Ana"}, NoPhoto{}, "https://ignored")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.String(), "BEGIN:VCARD\n"))
	assert.NotContains(t, got.String(), "https://ignored")
}

func TestValue_UnknownMode(t *testing.T) {
	b := createTestBuilder(t, new(MockFetcher))

	_, err := b.Value(context.Background(), Mode("sms"), Fields{}, NoPhoto{}, "")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"vCard", ModeVCard, false},
		{"VCARD", ModeVCard, false},
		{"", ModeVCard, false},
		{"URL", ModeURL, false},
		{" url ", ModeURL, false},
		{"wifi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInvalidMode, apperrors.FromError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceKind(t *testing.T) {
	assert.Equal(t, "none", SourceKind(nil))
	assert.Equal(t, "none", SourceKind(NoPhoto{}))
	assert.Equal(t, "local", SourceKind(LocalFile{}))
	assert.Equal(t, "remote", SourceKind(RemoteURL{}))
}
