// Package form keeps the state of interactive QR forms. Every input change
// bumps a generation counter and starts an asynchronous payload build; a
// build result is applied only if no newer change arrived in the meantime.
package form

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/qrrender"
)

// ValueBuilder produces the render value for the current inputs.
// *contact.Builder implements it.
type ValueBuilder interface {
	Value(ctx context.Context, mode contact.Mode, fields contact.Fields, source contact.PhotoSource, rawURL string) (contact.Payload, error)
}

// Update carries a partial change. Nil pointers leave the field as is.
// Photo replaces the current photo source; RemovePhoto clears it and wins
// over Photo.
type Update struct {
	Mode        *contact.Mode
	Name        *string
	JobTitle    *string
	TaxID       *string
	Phone       *string
	Email       *string
	Website     *string
	RawURL      *string
	Color       *qrrender.Color
	Photo       contact.PhotoSource
	RemovePhoto bool
}

func (u Update) rebuilds() bool {
	return u.Mode != nil || u.Name != nil || u.JobTitle != nil || u.TaxID != nil ||
		u.Phone != nil || u.Email != nil || u.Website != nil || u.RawURL != nil ||
		u.Photo != nil || u.RemovePhoto
}

// State is a point-in-time copy of a session.
type State struct {
	ID                string                `json:"id"`
	Mode              contact.Mode          `json:"mode"`
	Fields            contact.Fields        `json:"fields"`
	PhotoSource       string                `json:"photoSource"`
	PhotoURL          string                `json:"photoUrl,omitempty"`
	PhotoPreview      string                `json:"photoPreview,omitempty"`
	RawURL            string                `json:"url"`
	Color             qrrender.Color        `json:"color"`
	Generation        uint64                `json:"generation"`
	AppliedGeneration uint64                `json:"appliedGeneration"`
	Building          bool                  `json:"building"`
	Value             string                `json:"value"`
	HasPhoto          bool                  `json:"hasPhoto"`
	DownloadVisible   bool                  `json:"downloadVisible"`
	LastError         *errors.StandardError `json:"lastError,omitempty"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// RenderInput returns what the renderer should draw for this state.
func (s State) RenderInput() qrrender.RenderInput {
	return qrrender.RenderInput{Value: s.Value, Color: s.Color}
}

// Session is one form instance. It is safe for concurrent use.
type Session struct {
	id           string
	builder      ValueBuilder
	logger       logger.Logger
	buildTimeout time.Duration

	mu        sync.Mutex
	mode      contact.Mode
	fields    contact.Fields
	source    contact.PhotoSource
	preview   string
	rawURL    string
	color     qrrender.Color
	gen       uint64
	applied   uint64
	settled   uint64
	value     contact.Payload
	lastErr   error
	cancel    context.CancelFunc
	updatedAt time.Time
	closed    bool

	// idle is closed once the latest generation settles; nil while idle.
	idle chan struct{}

	// builds tracks running goroutines for close only. Add happens under mu
	// and never after closed is set.
	builds sync.WaitGroup
}

func newSession(id string, builder ValueBuilder, log logger.Logger, buildTimeout time.Duration) *Session {
	return &Session{
		id:           id,
		builder:      builder,
		logger:       log.WithFields(map[string]interface{}{"sessionId": id}),
		buildTimeout: buildTimeout,
		mode:         contact.ModeVCard,
		source:       contact.NoPhoto{},
		color:        qrrender.Black,
		updatedAt:    time.Now().UTC(),
	}
}

func (s *Session) ID() string { return s.id }

// Apply merges u into the session. Changes that affect the render value
// start a new build and return its generation; color-only changes apply
// immediately and return the current generation.
func (s *Session) Apply(u Update) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Mode != nil {
		s.mode = *u.Mode
	}
	setIf(&s.fields.Name, u.Name)
	setIf(&s.fields.JobTitle, u.JobTitle)
	setIf(&s.fields.TaxID, u.TaxID)
	setIf(&s.fields.Phone, u.Phone)
	setIf(&s.fields.Email, u.Email)
	setIf(&s.fields.Website, u.Website)
	setIf(&s.rawURL, u.RawURL)
	if u.Color != nil {
		s.color = *u.Color
	}

	switch {
	case u.RemovePhoto:
		s.source = contact.NoPhoto{}
		s.preview = ""
	case u.Photo != nil:
		s.source = u.Photo
		s.preview = previewFor(u.Photo)
	}

	s.updatedAt = time.Now().UTC()
	if !u.rebuilds() || s.closed {
		return s.gen
	}
	return s.startBuildLocked()
}

func (s *Session) startBuildLocked() uint64 {
	s.gen++
	gen := s.gen

	// A newer input supersedes any build still running.
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.buildTimeout)
	s.cancel = cancel

	mode, fields, source, rawURL := s.mode, s.fields, s.source, s.rawURL

	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	s.builds.Add(1)
	go func() {
		defer s.builds.Done()
		defer cancel()

		value, err := s.builder.Value(ctx, mode, fields, source, rawURL)
		s.finish(gen, value, err)
	}()
	return gen
}

func (s *Session) finish(gen uint64, value contact.Payload, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		metrics.StaleBuildsDropped.Inc()
		s.logger.Debug("Dropped stale build", map[string]interface{}{
			"generation": gen,
			"current":    s.gen,
		})
		return
	}

	s.settled = gen
	if s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	if err != nil {
		s.lastErr = err
		s.logger.Warn("Payload build failed", map[string]interface{}{
			"generation": gen,
			"error":      err.Error(),
		})
		return
	}

	s.value = value
	s.applied = gen
	s.lastErr = nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:                s.id,
		Mode:              s.mode,
		Fields:            s.fields,
		PhotoSource:       contact.SourceKind(s.source),
		PhotoPreview:      s.preview,
		RawURL:            s.rawURL,
		Color:             s.color,
		Generation:        s.gen,
		AppliedGeneration: s.applied,
		Building:          s.settled < s.gen,
		Value:             string(s.value),
		HasPhoto:          contact.HasPhoto(s.value),
		DownloadVisible:   s.fields.Name != "" || s.rawURL != "",
		LastError:         errors.FromError(s.lastErr),
		UpdatedAt:         s.updatedAt,
	}
	switch remote := s.source.(type) {
	case contact.RemoteURL:
		st.PhotoURL = remote.URL
	case *contact.RemoteURL:
		st.PhotoURL = remote.URL
	}
	return st
}

// Wait blocks until the latest generation has settled.
func (s *Session) Wait() {
	_ = s.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx. Superseded builds still running in the
// background are not waited for.
func (s *Session) WaitContext(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.builds.Wait()
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// previewFor returns a data URI of the uploaded bytes, as selected.
func previewFor(src contact.PhotoSource) string {
	var data []byte
	switch p := src.(type) {
	case contact.LocalFile:
		data = p.Data
	case *contact.LocalFile:
		data = p.Data
	default:
		return ""
	}
	if len(data) == 0 {
		return ""
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
