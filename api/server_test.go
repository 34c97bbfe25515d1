package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/admin"
	"github.com/fabfab/docqa/api"
	"github.com/fabfab/docqa/chat"
	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/ingestion"
	"github.com/fabfab/docqa/knowledge"
)

type stubIngester struct {
	result ingestion.Result
	err    error
	got    []ingestion.Request
}

func (s *stubIngester) Ingest(_ context.Context, req ingestion.Request) (ingestion.Result, error) {
	s.got = append(s.got, req)
	return s.result, s.err
}

type stubAsker struct {
	answer chat.Answer
	err    error
}

func (s *stubAsker) Ask(_ context.Context, question, documentID string) (chat.Answer, error) {
	if s.err != nil {
		return chat.Answer{}, s.err
	}
	if strings.TrimSpace(question) == "" || strings.TrimSpace(documentID) == "" {
		return chat.Answer{}, chat.ErrInvalidRequest
	}
	return s.answer, nil
}

type stubResetter struct {
	err   error
	calls int
}

func (s *stubResetter) Reset(context.Context) error {
	s.calls++
	return s.err
}

func testConfig() config.Config {
	return config.Config{Ingestion: config.IngestionConfig{MaxUploadBytes: 1024}}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	srv := api.New(testConfig(), api.Dependencies{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestUploadSuccess(t *testing.T) {
	ingester := &stubIngester{result: ingestion.Result{DocumentID: "doc-1", Summary: "Short.", PageCount: 3}}
	srv := api.New(testConfig(), api.Dependencies{Ingester: ingester}, nil)

	body, ct := multipartBody(t, "file", "paper.pdf", "application/pdf", []byte("%PDF-1.4 data"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary":"Short.","documentId":"doc-1","pageCount":3}`, rec.Body.String())
	require.Len(t, ingester.got, 1)
	assert.Equal(t, "paper.pdf", ingester.got[0].Filename)
	assert.Equal(t, "application/pdf", ingester.got[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4 data"), ingester.got[0].Data)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		data     []byte
		ingErr   error
		noBody   bool
		wantCode int
		wantBody string
	}{
		{name: "no file field", field: "", wantCode: http.StatusBadRequest, wantBody: "No file uploaded"},
		{name: "not multipart", noBody: true, wantCode: http.StatusBadRequest, wantBody: "No file uploaded"},
		{name: "empty file", field: "file", data: []byte{}, ingErr: ingestion.ErrMissingInput, wantCode: http.StatusBadRequest, wantBody: "No file uploaded"},
		{name: "too large", field: "file", data: bytes.Repeat([]byte("x"), 2048), wantCode: http.StatusRequestEntityTooLarge},
		{name: "parse failure", field: "file", data: []byte("junk"), ingErr: ingestion.ErrParse, wantCode: http.StatusInternalServerError, wantBody: "parse failure"},
		{name: "provider failure", field: "file", data: []byte("%PDF-"), ingErr: errors.Join(ingestion.ErrProvider, errors.New("quota")), wantCode: http.StatusInternalServerError, wantBody: "quota"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := &stubIngester{err: tt.ingErr}
			srv := api.New(testConfig(), api.Dependencies{Ingester: ingester}, nil)

			var req *http.Request
			if tt.noBody {
				req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
			} else {
				body, ct := multipartBody(t, tt.field, "paper.pdf", "application/pdf", tt.data)
				req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
				req.Header.Set("Content-Type", ct)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantCode == http.StatusRequestEntityTooLarge {
				assert.Empty(t, ingester.got)
			}
		})
	}
}

func postQuestion(srv http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/question", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestQuestion(t *testing.T) {
	asker := &stubAsker{answer: chat.Answer{Text: "Forty-two.", Outcome: chat.OutcomeAnswered}}
	srv := api.New(testConfig(), api.Dependencies{Asker: asker}, nil)

	rec := postQuestion(srv, `{"question":"Meaning?","documentId":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"Forty-two."}`, rec.Body.String())

	rec = postQuestion(srv, `{"question":"  ","documentId":"doc-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing question or documentId", rec.Body.String())

	rec = postQuestion(srv, `{"question":"Meaning?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postQuestion(srv, `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"An error occurred while processing the question."}`, rec.Body.String())
}

func TestQuestionProviderErrorStays200(t *testing.T) {
	asker := &stubAsker{answer: chat.Answer{Text: chat.ErrorAnswer, Outcome: chat.OutcomeProviderError, Err: errors.New("down")}}
	srv := api.New(testConfig(), api.Dependencies{Asker: asker}, nil)

	rec := postQuestion(srv, `{"question":"Q","documentId":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"An error occurred while processing the question."}`, rec.Body.String())
}

func TestEmptyDBRouteRequiresGate(t *testing.T) {
	resetter := &stubResetter{}
	srv := api.New(testConfig(), api.Dependencies{Resetter: resetter}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/empty-db", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, resetter.calls)
}

func TestEmptyDB(t *testing.T) {
	gate, err := admin.NewGate("secret", time.Hour)
	require.NoError(t, err)
	token, err := gate.IssueToken("test")
	require.NoError(t, err)

	call := func(srv http.Handler, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/empty-db", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unauthorized", func(t *testing.T) {
		resetter := &stubResetter{}
		srv := api.New(testConfig(), api.Dependencies{Resetter: resetter, Gate: gate}, nil)

		rec := call(srv, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "message")

		rec = call(srv, "Bearer forged")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, resetter.calls)
	})

	t.Run("success", func(t *testing.T) {
		resetter := &stubResetter{}
		srv := api.New(testConfig(), api.Dependencies{Resetter: resetter, Gate: gate}, nil)

		rec := call(srv, "Bearer "+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"All vectors have been deleted."}`, rec.Body.String())
		assert.Equal(t, 1, resetter.calls)
	})

	t.Run("failure", func(t *testing.T) {
		resetter := &stubResetter{err: errors.New("index locked")}
		srv := api.New(testConfig(), api.Dependencies{Resetter: resetter, Gate: gate}, nil)

		rec := call(srv, "Bearer "+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Failed to delete all vectors."}`, rec.Body.String())
	})
}

func TestDocuments(t *testing.T) {
	catalog := knowledge.NewMemoryCatalog()
	uploaded := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, catalog.Save(context.Background(), knowledge.Document{ID: "doc-1", Filename: "a.pdf", UploadedAt: uploaded, PageCount: 2}))
	srv := api.New(testConfig(), api.Dependencies{Catalog: catalog}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []knowledge.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Filename)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uploadedAt":"2024-01-02T03:04:05Z"`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	asker := &stubAsker{answer: chat.Answer{Text: chat.NoContextAnswer, Outcome: chat.OutcomeNoContext}}
	srv := api.New(testConfig(), api.Dependencies{Asker: asker}, nil)

	postQuestion(srv, `{"question":"Q","documentId":"doc-1"}`)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docqa_questions_total{outcome="no_context"} 1`)
	assert.Contains(t, string(body), `docqa_http_requests_total{code="200",route="question"} 1`)
}
