package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/form"
	"qrcode-workers/internal/qrrender"
)

// ==========================
// Health
// ==========================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ==========================
// HTML form
// ==========================

type pageData struct {
	State       form.State
	Palette     []qrrender.PaletteEntry
	QRCode      template.HTML
	RenderError string
	IsURLMode   bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	http.Redirect(w, r, "/sessions/"+sess.ID(), http.StatusSeeOther)
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	st := sess.Snapshot()
	data := pageData{
		State:     st,
		Palette:   qrrender.Palette,
		IsURLMode: st.Mode == contact.ModeURL,
	}
	if st.Value != "" {
		markup, err := s.renderer.SVG(st.RenderInput())
		if err != nil {
			data.RenderError = apperrors.FromError(err).Message
		} else {
			// Markup is generated from the module matrix and a palette color only.
			data.QRCode = template.HTML(markup)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("Failed to render form page", map[string]interface{}{
			"sessionId": st.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Server) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && err != http.ErrNotMultipart {
		writeError(w, apperrors.NewValidationError(fmt.Sprintf("invalid form submission: %v", err)))
		return
	}

	update, err := updateFromForm(r, sess.Snapshot())
	if err != nil {
		writeError(w, apperrors.FromError(err))
		return
	}

	sess.Apply(update)

	ctx, cancel := context.WithTimeout(r.Context(), s.submitWait)
	defer cancel()
	_ = sess.WaitContext(ctx)

	http.Redirect(w, r, "/sessions/"+sess.ID(), http.StatusSeeOther)
}

func updateFromForm(r *http.Request, current form.State) (form.Update, error) {
	var u form.Update

	if v, ok := formValue(r, "mode"); ok {
		mode, err := contact.ParseMode(v)
		if err != nil {
			return u, err
		}
		u.Mode = &mode
	}
	if v, ok := formValue(r, "color"); ok {
		c, err := qrrender.ParseColor(v)
		if err != nil {
			return u, err
		}
		u.Color = &c
	}

	u.Name = formPtr(r, "name")
	u.JobTitle = formPtr(r, "jobTitle")
	u.TaxID = formPtr(r, "taxId")
	u.Phone = formPtr(r, "phone")
	u.Email = formPtr(r, "email")
	u.Website = formPtr(r, "website")
	u.RawURL = formPtr(r, "url")

	if v, _ := formValue(r, "removePhoto"); v != "" {
		u.RemovePhoto = true
		return u, nil
	}

	if r.MultipartForm != nil {
		if file, _, err := r.FormFile("photo"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return u, apperrors.NewValidationError(fmt.Sprintf("read photo upload: %v", err))
			}
			if len(data) > 0 {
				u.Photo = contact.LocalFile{Data: data}
				return u, nil
			}
		}
	}

	if v, ok := formValue(r, "photoUrl"); ok {
		v = strings.TrimSpace(v)
		switch {
		case v == "" && current.PhotoSource == "remote":
			u.RemovePhoto = true
		case v != "" && v != current.PhotoURL:
			u.Photo = contact.RemoteURL{URL: v}
		}
	}
	return u, nil
}

// ==========================
// Download
// ==========================

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	st := sess.Snapshot()
	if !st.DownloadVisible || st.Value == "" {
		writeError(w, apperrors.NewBusinessRuleError("Nothing to download", "enter a name or a URL first"))
		return
	}

	doc, err := s.renderer.RenderExport(st.RenderInput())
	if err != nil {
		writeError(w, apperrors.FromError(err))
		return
	}

	w.Header().Set("Content-Type", qrrender.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", qrrender.ExportFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// ==========================
// JSON session API
// ==========================

// SessionPatch is the JSON body accepted by PATCH /api/sessions/{id}.
// Absent fields are left unchanged.
type SessionPatch struct {
	Mode        *string `json:"mode,omitempty"`
	Name        *string `json:"name,omitempty"`
	JobTitle    *string `json:"jobTitle,omitempty"`
	TaxID       *string `json:"taxId,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Website     *string `json:"website,omitempty"`
	URL         *string `json:"url,omitempty"`
	Color       *string `json:"color,omitempty"`
	PhotoURL    *string `json:"photoUrl,omitempty"`
	PhotoData   *string `json:"photoData,omitempty"`
	RemovePhoto bool    `json:"removePhoto,omitempty"`
}

func (p SessionPatch) toUpdate() (form.Update, error) {
	u := form.Update{
		Name:        p.Name,
		JobTitle:    p.JobTitle,
		TaxID:       p.TaxID,
		Phone:       p.Phone,
		Email:       p.Email,
		Website:     p.Website,
		RawURL:      p.URL,
		RemovePhoto: p.RemovePhoto,
	}
	if p.Mode != nil {
		mode, err := contact.ParseMode(*p.Mode)
		if err != nil {
			return u, err
		}
		u.Mode = &mode
	}
	if p.Color != nil {
		c, err := qrrender.ParseColor(*p.Color)
		if err != nil {
			return u, err
		}
		u.Color = &c
	}
	if p.PhotoData != nil && p.PhotoURL != nil {
		return u, apperrors.NewValidationError("photoData and photoUrl are mutually exclusive")
	}
	switch {
	case p.PhotoData != nil:
		data, err := base64.StdEncoding.DecodeString(*p.PhotoData)
		if err != nil {
			return u, apperrors.NewValidationError(fmt.Sprintf("photoData is not valid base64: %v", err))
		}
		u.Photo = contact.LocalFile{Data: data}
	case p.PhotoURL != nil && *p.PhotoURL != "":
		u.Photo = contact.RemoteURL{URL: *p.PhotoURL}
	case p.PhotoURL != nil:
		u.RemovePhoto = true
	}
	return u, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var patch SessionPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, apperrors.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}

	update, err := patch.toUpdate()
	if err != nil {
		writeError(w, apperrors.FromError(err))
		return
	}

	gen := sess.Apply(update)

	if wait := r.URL.Query().Get("wait"); wait == "true" || wait == "1" {
		ctx, cancel := context.WithTimeout(r.Context(), s.submitWait)
		defer cancel()
		_ = sess.WaitContext(ctx)
		writeJSON(w, http.StatusOK, sess.Snapshot())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":         sess.ID(),
		"generation": gen,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.store.Delete(id) {
		writeError(w, apperrors.NewSessionNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// One-shot rendering
// ==========================

// RenderRequest is the JSON body accepted by POST /api/qrcode.
type RenderRequest struct {
	Value  string `json:"value"`
	Color  string `json:"color"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload)).Decode(&req); err != nil {
		writeError(w, apperrors.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	c, err := qrrender.ParseColor(req.Color)
	if err != nil {
		writeError(w, apperrors.FromError(err))
		return
	}
	if req.Size < 0 || req.Size > 4096 {
		writeError(w, apperrors.NewValidationError("size must be between 0 and 4096"))
		return
	}
	in := qrrender.RenderInput{Value: req.Value, Color: c}

	switch strings.ToLower(req.Format) {
	case "", "svg":
		markup, err := s.renderer.SVGSize(in, req.Size)
		if err != nil {
			writeError(w, apperrors.FromError(err))
			return
		}
		doc, err := qrrender.Export(markup)
		if err != nil {
			writeError(w, apperrors.NewQRRenderError(err))
			return
		}
		w.Header().Set("Content-Type", qrrender.ExportContentType)
		_, _ = io.WriteString(w, doc)
	case "png":
		out, err := s.renderer.PNG(in, req.Size)
		if err != nil {
			writeError(w, apperrors.FromError(err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(out)
	default:
		writeError(w, apperrors.NewValidationError(fmt.Sprintf("unsupported format %q", req.Format)))
	}
}

// ==========================
// Helpers
// ==========================

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*form.Session, bool) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, apperrors.FromError(err))
		return nil, false
	}
	return sess, true
}

func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm != nil {
		if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

func formPtr(r *http.Request, key string) *string {
	if v, ok := formValue(r, key); ok {
		return &v
	}
	return nil
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidColor, apperrors.ErrCodeInvalidMode,
		apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeQRPayloadTooLarge, apperrors.ErrCodeQRRenderFailed,
		apperrors.ErrCodePhotoDecodeFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodePhotoFetchFailed, apperrors.ErrCodePhotoFetchTimeout:
		return http.StatusBadGateway
	case apperrors.ErrCodeBusinessRule:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, stdErr *apperrors.StandardError) {
	writeJSON(w, statusFor(stdErr.Code), map[string]interface{}{"error": stdErr})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
