package contact

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
	"qrcode-workers/internal/common/observability"
	"qrcode-workers/internal/photo"
)

// vCard line markers, in emission order.
const (
	lineBegin   = "BEGIN:VCARD"
	lineVersion = "VERSION:3.0"
	prefixName  = "FN:"
	prefixTitle = "TITLE:"
	prefixPhone = "TEL;TYPE=voice,work,pref:"
	prefixEmail = "EMAIL:"
	prefixURL   = "URL:"
	prefixPhoto = "PHOTO;ENCODING=b;TYPE=JPEG:"
	lineEnd     = "END:VCARD"
)

// PhotoNormalizer is the part of *photo.Normalizer the builder needs.
type PhotoNormalizer interface {
	Normalize(src []byte) (*photo.NormalizedImage, error)
}

// Builder turns contact fields and a photo source into a QR payload.
type Builder struct {
	normalizer PhotoNormalizer
	fetcher    Fetcher
	logger     logger.Logger
	obs        *observability.Observability
}

// BuilderOption configures optional collaborators.
type BuilderOption func(*Builder)

// WithObservability traces builds on the given provider.
func WithObservability(obs *observability.Observability) BuilderOption {
	return func(b *Builder) { b.obs = obs }
}

func NewBuilder(normalizer PhotoNormalizer, fetcher Fetcher, log logger.Logger, opts ...BuilderOption) *Builder {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	b := &Builder{
		normalizer: normalizer,
		fetcher:    fetcher,
		logger:     log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the vCard payload for fields. A remote photo is fetched
// exactly once; fetch failures return a *FetchError and undecodable bytes a
// *photo.DecodeError. On error no payload is returned.
func (b *Builder) Build(ctx context.Context, fields Fields, source PhotoSource) (Payload, error) {
	kind := SourceKind(source)
	ctx, span := b.obs.StartSpan(ctx, "contact.Build", attribute.String("photo.source", kind))
	defer span.End()

	img, err := b.ResolvePhoto(ctx, source)
	if err != nil {
		span.RecordError(err)
		metrics.PayloadBuilds.WithLabelValues(kind, "error").Inc()
		return "", err
	}

	var photoData string
	if img != nil {
		photoData = img.Data
	}
	payload := Assemble(fields, photoData)

	metrics.PayloadBuilds.WithLabelValues(kind, "ok").Inc()
	b.obs.RecordPayloadSize(ctx, string(ModeVCard), len(payload))
	b.logger.Debug("Contact payload built", map[string]interface{}{
		"photoSource":  kind,
		"hasPhoto":     photoData != "",
		"payloadBytes": len(payload),
	})
	return payload, nil
}

// Value returns the render value for mode: the vCard in ModeVCard, or
// rawURL verbatim in ModeURL without touching the photo source.
func (b *Builder) Value(ctx context.Context, mode Mode, fields Fields, source PhotoSource, rawURL string) (Payload, error) {
	switch mode {
	case ModeURL:
		b.obs.RecordPayloadSize(ctx, string(ModeURL), len(rawURL))
		return Payload(rawURL), nil
	case ModeVCard, "":
		return b.Build(ctx, fields, source)
	default:
		return "", fmt.Errorf("unsupported mode %q", mode)
	}
}

// ResolvePhoto normalizes the photo selected by source. It returns nil for
// NoPhoto or a nil source.
func (b *Builder) ResolvePhoto(ctx context.Context, source PhotoSource) (*photo.NormalizedImage, error) {
	switch src := source.(type) {
	case nil, NoPhoto, *NoPhoto:
		return nil, nil
	case LocalFile:
		return b.normalizer.Normalize(src.Data)
	case *LocalFile:
		return b.normalizer.Normalize(src.Data)
	case RemoteURL:
		return b.fetchAndNormalize(ctx, src.URL)
	case *RemoteURL:
		return b.fetchAndNormalize(ctx, src.URL)
	default:
		return nil, fmt.Errorf("unknown photo source %T", source)
	}
}

func (b *Builder) fetchAndNormalize(ctx context.Context, rawURL string) (*photo.NormalizedImage, error) {
	data, err := b.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return b.normalizer.Normalize(data)
}

// Assemble writes the vCard text. Lines are joined with "\n" and the PHOTO
// line is present only when photoData is non-empty. Field values are copied
// verbatim.
func Assemble(fields Fields, photoData string) Payload {
	lines := []string{
		lineBegin,
		lineVersion,
		prefixName + fields.Name,
		prefixTitle + fields.JobTitle,
		prefixPhone + fields.Phone,
		prefixEmail + fields.Email,
		prefixURL + fields.Website,
	}
	if photoData != "" {
		lines = append(lines, prefixPhoto+photoData)
	}
	lines = append(lines, lineEnd)
	return Payload(strings.Join(lines, "\n"))
}

// HasPhoto reports whether payload carries an inline photo.
func HasPhoto(payload Payload) bool {
	for _, line := range strings.Split(string(payload), "\n") {
		if strings.HasPrefix(line, prefixPhoto) {
			return true
		}
	}
	return false
}
