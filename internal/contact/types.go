// Package contact assembles vCard 3.0 payloads for QR codes, inlining a
// normalized contact photo when one is supplied.
package contact

import (
	"fmt"
	"strings"

	apperrors "qrcode-workers/internal/common/errors"
)

// Fields are the contact details collected by the form. Every field is
// optional. TaxID is collected but never written into the payload.
type Fields struct {
	Name     string `json:"name"`
	JobTitle string `json:"jobTitle"`
	TaxID    string `json:"taxId"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Website  string `json:"website"`
}

// PhotoSource selects where the contact photo comes from. The concrete
// types are LocalFile, RemoteURL and NoPhoto.
type PhotoSource interface {
	sourceKind() string
}

// LocalFile holds uploaded image bytes.
type LocalFile struct {
	Data []byte
}

// RemoteURL is fetched once when the payload is built.
type RemoteURL struct {
	URL string
}

// NoPhoto omits the PHOTO line.
type NoPhoto struct{}

func (LocalFile) sourceKind() string { return "local" }
func (RemoteURL) sourceKind() string { return "remote" }
func (NoPhoto) sourceKind() string   { return "none" }

// SourceKind returns "local", "remote" or "none". A nil source is "none".
func SourceKind(src PhotoSource) string {
	if src == nil {
		return "none"
	}
	return src.sourceKind()
}

// Mode selects what the QR code encodes.
type Mode string

const (
	ModeVCard Mode = "vcard"
	ModeURL   Mode = "url"
)

// ParseMode accepts the mode names used by the form ("vCard", "URL") in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vcard":
		return ModeVCard, nil
	case "url":
		return ModeURL, nil
	default:
		return "", apperrors.NewInvalidModeError(s)
	}
}

// Payload is the text handed to the QR renderer.
type Payload string

func (p Payload) String() string { return string(p) }

// FetchError reports a remote photo that could not be retrieved. StatusCode
// is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("photo fetch %s: timed out", e.URL)
	case e.Err != nil:
		return fmt.Sprintf("photo fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("photo fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) ErrorCode() apperrors.ErrorCode {
	if e.Timeout {
		return apperrors.ErrCodePhotoFetchTimeout
	}
	return apperrors.ErrCodePhotoFetchFailed
}
