// Package client talks to a running docqa server and keeps a local chat
// transcript per document.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/fabfab/docqa/knowledge"
)

// StatusError carries a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

type UploadResult struct {
	Summary    string `json:"summary"`
	DocumentID string `json:"documentId"`
	PageCount  int    `json:"pageCount"`
}

type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *APIClient) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	var out UploadResult
	err = c.do(ctx, http.MethodPost, "/api/upload", mw.FormDataContentType(), "", body, &out)
	return out, err
}

func (c *APIClient) Ask(ctx context.Context, question, documentID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"question": question, "documentId": documentID})
	if err != nil {
		return "", fmt.Errorf("encode question: %w", err)
	}

	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/question", "application/json", "", bytes.NewReader(payload), &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Reset calls the admin reset route and returns the server message.
func (c *APIClient) Reset(ctx context.Context, token string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/empty-db", "", token, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *APIClient) Documents(ctx context.Context) ([]knowledge.Document, error) {
	var docs []knowledge.Document
	if err := c.do(ctx, http.MethodGet, "/api/documents", "", "", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *APIClient) do(ctx context.Context, method, path, contentType, token string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
