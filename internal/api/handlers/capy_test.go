package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/capystore/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSubmitter запоминает параметры и возвращает заданный результат.
type fakeSubmitter struct {
	got *service.SubmitParams
	id  string
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, p service.SubmitParams) (string, error) {
	f.got = &p
	return f.id, f.err
}

// fakeImages отдаёт изображения из map.
type fakeImages map[string]*service.Image

func (f fakeImages) Image(_ context.Context, id string) (*service.Image, error) {
	img, ok := f[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return img, nil
}

// multipartBody собирает форму отправки. file == nil — без поля file.
func multipartBody(t *testing.T, file []byte, fileType string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="capy.png"`)
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// errorCode извлекает code из тела ошибки.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("тело ошибки не JSON: %v", err)
	}
	return body.Error.Code
}

func TestSubmit_Success(t *testing.T) {
	sub := &fakeSubmitter{id: "V1StGXR8Z5jdHi6BmyTaB"}
	h := NewCapyHandler(sub, fakeImages{}, 1024, testLogger())

	body, ct := multipartBody(t, []byte("png-bytes"), "image/png", map[string]string{
		"name":  "bob",
		"email": "bob@example.com",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/capy", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, тело: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["_id"] != "V1StGXR8Z5jdHi6BmyTaB" {
		t.Errorf("_id = %q", resp["_id"])
	}

	if sub.got == nil {
		t.Fatal("Submit не вызван")
	}
	if string(sub.got.Image) != "png-bytes" || sub.got.ContentType != "image/png" {
		t.Errorf("изображение передано неверно: %q / %q", sub.got.Image, sub.got.ContentType)
	}
	if sub.got.Name != "bob" || sub.got.Email != "bob@example.com" {
		t.Errorf("поля формы: name=%q email=%q", sub.got.Name, sub.got.Email)
	}
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		file       []byte
		submitErr  error
		wantStatus int
		wantCode   string
	}{
		{"нет файла", nil, nil, http.StatusBadRequest, "MISSING_FIELD"},
		{"пустой файл", []byte{}, service.ErrMissingField, http.StatusBadRequest, "MISSING_FIELD"},
		{"не изображение", []byte("text"), service.ErrDecode, http.StatusBadRequest, "DECODE_ERROR"},
		{"дубликат", []byte("img"), service.ErrDuplicateImage, http.StatusConflict, "DUPLICATE_IMAGE"},
		{"сбой хранилища", []byte("img"), service.ErrArtifactWrite, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"слишком большой", bytes.Repeat([]byte("x"), 2048), nil, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{id: "id", err: tt.submitErr}
			h := NewCapyHandler(sub, fakeImages{}, 1024, testLogger())

			body, ct := multipartBody(t, tt.file, "image/png", map[string]string{"name": "Bob"})
			req := httptest.NewRequest(http.MethodPost, "/api/capy", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.Submit(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидали %d; тело: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, ожидали %q", code, tt.wantCode)
			}
		})
	}
}

func TestSubmit_NotMultipart(t *testing.T) {
	h := NewCapyHandler(&fakeSubmitter{}, fakeImages{}, 1024, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/capy", bytes.NewReader([]byte(`{"file":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус %d, ожидали 400", rec.Code)
	}
}

func TestGetImage(t *testing.T) {
	images := fakeImages{
		"abc":  {Data: []byte("webp-data"), ContentType: "image/webp"},
		"bare": {Data: []byte("raw")},
	}
	h := NewCapyHandler(&fakeSubmitter{}, images, 1024, testLogger())

	router := chi.NewRouter()
	router.Get("/api/capy/{id}", h.GetImage)

	tests := []struct {
		id         string
		wantStatus int
		wantType   string
		wantBody   string
	}{
		{"abc", http.StatusOK, "image/webp", "webp-data"},
		{"bare", http.StatusOK, "application/octet-stream", "raw"},
		{"missing", http.StatusNotFound, "application/json", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/capy/"+tt.id, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, ожидали %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, ожидали %q", got, tt.wantType)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("тело = %q, ожидали %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestWriteServiceError_Unknown(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, testLogger(), errors.New("соединение с БД потеряно"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус %d, ожидали 500", rec.Code)
	}
	if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", code)
	}
}
