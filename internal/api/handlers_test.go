package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcode-workers/internal/common/config"
	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/form"
	"qrcode-workers/internal/photo"
	"qrcode-workers/internal/qrrender"
)

// ==========================
// Helpers
// ==========================

func createTestServer(t *testing.T, ready func(ctx context.Context) error) (*form.Store, *mux.Router) {
	t.Helper()
	log := logger.NewTestLogger(t)
	builder := contact.NewBuilder(
		photo.NewNormalizer(config.PhotoConfig{}, log),
		contact.NewHTTPFetcher(config.PhotoConfig{}, log),
		log,
	)
	store := form.NewStore(builder, log, 0)
	t.Cleanup(store.Close)

	srv := NewServer(Options{
		Store:      store,
		Renderer:   qrrender.NewRenderer(config.RenderConfig{}, log),
		Logger:     log,
		ReadyCheck: ready,
	})
	return store, srv.NewRouter()
}

func do(t *testing.T, router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) form.State {
	t.Helper()
	var st form.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var body struct {
		Error apperrors.StandardError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// ==========================
// Health
// ==========================

func TestHealth(t *testing.T) {
	_, router := createTestServer(t, nil)

	rec := do(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		check  func(ctx context.Context) error
		status int
	}{
		{"no check", nil, http.StatusOK},
		{"check passes", func(context.Context) error { return nil }, http.StatusOK},
		{"check fails", func(context.Context) error { return errors.New("broker unreachable") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := createTestServer(t, tt.check)
			rec := do(t, router, http.MethodGet, "/ready", nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

// ==========================
// JSON API
// ==========================

func TestAPI_CreatePatchGet(t *testing.T) {
	_, router := createTestServer(t, nil)

	rec := do(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeState(t, rec)
	assert.Equal(t, "/api/sessions/"+created.ID, rec.Header().Get("Location"))
	assert.False(t, created.DownloadVisible)

	rec = do(t, router, http.MethodPatch, "/api/sessions/"+created.ID+"?wait=true", map[string]string{
		"name":  "Ana",
		"phone": "+551199999999",
		"email": "ana@x.com",
		"color": "red",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t,
		"BEGIN:VCARD\nVERSION:3.0\nFN:Ana\nTITLE:\nTEL;TYPE=voice,work,pref:+551199999999\nEMAIL:ana@x.com\nURL:\nEND:VCARD",
		st.Value)
	assert.Equal(t, qrrender.Red, st.Color)
	assert.True(t, st.DownloadVisible)

	rec = do(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, st.Value, decodeState(t, rec).Value)
}

func TestAPI_PatchWithoutWaitIsAccepted(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	rec := do(t, router, http.MethodPatch, "/api/sessions/"+sess.ID(), map[string]string{"mode": "url", "url": "https://example.com"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"generation":1`)
	sess.Wait()
	assert.Equal(t, "https://example.com", sess.Snapshot().Value)
}

func TestAPI_PatchPhotoData(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	rec := do(t, router, http.MethodPatch, "/api/sessions/"+sess.ID()+"?wait=1", map[string]interface{}{
		"name":      "Ana",
		"photoData": createTestPNG(t, 8, 6),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, "local", st.PhotoSource)
	assert.True(t, st.HasPhoto)
	assert.Contains(t, st.Value, "PHOTO;ENCODING=b;TYPE=JPEG:")
}

func TestAPI_PatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   interface{}
		status int
		code   apperrors.ErrorCode
	}{
		{"unknown color", map[string]string{"color": "green"}, http.StatusBadRequest, apperrors.ErrCodeInvalidColor},
		{"unknown mode", map[string]string{"mode": "sms"}, http.StatusBadRequest, apperrors.ErrCodeInvalidMode},
		{"unknown field", map[string]string{"fax": "1"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"bad base64", map[string]string{"photoData": "%%%"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"both photo sources", map[string]string{"photoData": "", "photoUrl": "https://x"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, router := createTestServer(t, nil)
			sess := store.Create()

			rec := do(t, router, http.MethodPatch, "/api/sessions/"+sess.ID(), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeErrorCode(t, rec))
			assert.Equal(t, uint64(0), sess.Snapshot().Generation)
		})
	}
}

func TestAPI_UnknownSession(t *testing.T) {
	_, router := createTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(t, router, method, "/api/sessions/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.Equal(t, apperrors.ErrCodeSessionNotFound, decodeErrorCode(t, rec))
	}
}

func TestAPI_DeleteSession(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	rec := do(t, router, http.MethodDelete, "/api/sessions/"+sess.ID(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.Len())
}

// ==========================
// Download
// ==========================

func TestDownload(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	rec := do(t, router, http.MethodGet, "/sessions/"+sess.ID()+"/qrcode.svg", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	sess.Apply(form.Update{Mode: ptr(contact.ModeURL), RawURL: ptr("https://example.com")})
	sess.Wait()

	rec = do(t, router, http.MethodGet, "/sessions/"+sess.ID()+"/qrcode.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, qrrender.ExportContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="qrcode.svg"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<svg xmlns:xlink="http://www.w3.org/1999/xlink" xmlns="http://www.w3.org/2000/svg"`))
}

// ==========================
// HTML form
// ==========================

func TestIndexRedirectsToNewSession(t *testing.T) {
	store, router := createTestServer(t, nil)

	rec := do(t, router, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/sessions/"))
	assert.Equal(t, 1, store.Len())
}

func TestSessionPage_EmptyFormHasNoQRCode(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	rec := do(t, router, http.MethodGet, "/sessions/"+sess.ID(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="name"`)
	assert.NotContains(t, rec.Body.String(), "<svg")
	assert.NotContains(t, rec.Body.String(), "Download SVG")
}

func TestSessionSubmit_URLEncoded(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	values := url.Values{"name": {"Ana"}, "email": {"ana@x.com"}, "color": {string(qrrender.Blue)}}
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID(), strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/sessions/"+sess.ID(), rec.Header().Get("Location"))

	st := sess.Snapshot()
	assert.Contains(t, st.Value, "FN:Ana")
	assert.Equal(t, qrrender.Blue, st.Color)

	page := do(t, router, http.MethodGet, "/sessions/"+sess.ID(), nil)
	assert.Contains(t, page.Body.String(), `<svg height="256"`)
	assert.Contains(t, page.Body.String(), `fill="#0000FF"`)
	assert.Contains(t, page.Body.String(), "Download SVG")
}

func TestSessionSubmit_MultipartPhotoUpload(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Ana"))
	fw, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(createTestPNG(t, 10, 10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID(), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	st := sess.Snapshot()
	assert.Equal(t, "local", st.PhotoSource)
	assert.True(t, st.HasPhoto)
}

func TestSessionSubmit_InvalidColor(t *testing.T) {
	store, router := createTestServer(t, nil)
	sess := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID(), strings.NewReader("color=green"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeInvalidColor, decodeErrorCode(t, rec))
}

// ==========================
// One-shot rendering
// ==========================

func TestRender(t *testing.T) {
	_, router := createTestServer(t, nil)

	rec := do(t, router, http.MethodPost, "/api/qrcode", RenderRequest{Value: "https://example.com", Color: "blue"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, qrrender.ExportContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `xmlns="http://www.w3.org/2000/svg"`)

	rec = do(t, router, http.MethodPost, "/api/qrcode", RenderRequest{Value: "https://example.com", Format: "png", Size: 128})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    RenderRequest
		status int
		code   apperrors.ErrorCode
	}{
		{"empty value", RenderRequest{}, http.StatusUnprocessableEntity, apperrors.ErrCodeQRRenderFailed},
		{"too large", RenderRequest{Value: strings.Repeat("Q", 8000)}, http.StatusUnprocessableEntity, apperrors.ErrCodeQRPayloadTooLarge},
		{"bad color", RenderRequest{Value: "x", Color: "green"}, http.StatusBadRequest, apperrors.ErrCodeInvalidColor},
		{"bad format", RenderRequest{Value: "x", Format: "gif"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"bad size", RenderRequest{Value: "x", Size: 100000}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := createTestServer(t, nil)
			rec := do(t, router, http.MethodPost, "/api/qrcode", tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeErrorCode(t, rec))
		})
	}
}

func ptr[T any](v T) *T { return &v }
