package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) IssueToken(ctx context.Context, userID, clubID string, ttl time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

type mockDocumentService struct {
	uploadFn        func(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error)
	getFn           func(ctx context.Context, clubID, id string) (*domain.Document, error)
	getWithChunksFn func(ctx context.Context, clubID, id string) (*domain.DocumentWithChunks, error)
	listFn          func(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error)
	reprocessFn     func(ctx context.Context, clubID, id string) (*domain.Document, error)
	setActiveFn     func(ctx context.Context, clubID, id string, active bool) (*domain.Document, error)
	deleteFn        func(ctx context.Context, clubID, id string) error
}

func (m *mockDocumentService) Upload(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) Get(ctx context.Context, clubID, id string) (*domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, clubID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) GetWithChunks(ctx context.Context, clubID, id string) (*domain.DocumentWithChunks, error) {
	if m.getWithChunksFn != nil {
		return m.getWithChunksFn(ctx, clubID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) List(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
	if m.listFn != nil {
		return m.listFn(ctx, clubID, limit, offset)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) Reprocess(ctx context.Context, clubID, id string) (*domain.Document, error) {
	if m.reprocessFn != nil {
		return m.reprocessFn(ctx, clubID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) SetActive(ctx context.Context, clubID, id string, active bool) (*domain.Document, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, clubID, id, active)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) Delete(ctx context.Context, clubID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, clubID, id)
	}
	return errors.New("not implemented")
}

type mockSearchService struct {
	searchFn func(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error)
}

func (m *mockSearchService) Search(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, clubID, query, opts)
	}
	return nil, errors.New("not implemented")
}

// Verify interface compliance
var (
	_ driving.AuthService     = (*mockAuthService)(nil)
	_ driving.DocumentService = (*mockDocumentService)(nil)
	_ driving.SearchService   = (*mockSearchService)(nil)
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Test helpers

const testToken = "valid-token"

type testServer struct {
	server *Server
	docs   *mockDocumentService
	search *mockSearchService
	checks map[string]Pinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	auth := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			if token == testToken {
				return &domain.AuthContext{UserID: "user-1", ClubID: "club-1"}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
	ts := &testServer{
		docs:   &mockDocumentService{},
		search: &mockSearchService{},
		checks: map[string]Pinger{},
	}

	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	ts.server = NewServer(cfg, auth, ts.docs, ts.search, ts.checks)
	return ts
}

func (ts *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	return ts.do(method, path, raw, "application/json")
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func multipartUpload(t *testing.T, fields map[string]string, content []byte, partType string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if content != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="drills.pdf"`)
		h.Set("Content-Type", partType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func testDocument(id string) *domain.Document {
	return &domain.Document{
		ID:             id,
		ClubID:         "club-1",
		Title:          "Passing drills",
		Active:         true,
		IngestionState: domain.IngestionStateQueued,
	}
}

// Health endpoints

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var resp StatusResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	var resp VersionResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", resp.Version)
	}
}

func TestHandleReady(t *testing.T) {
	ts := newTestServer(t)
	ts.server.checks["database"] = pingerFunc(func(ctx context.Context) error { return nil })
	ts.server.checks["redis"] = nil

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %q", resp.Checks["database"])
	}
	if _, ok := resp.Checks["redis"]; ok {
		t.Error("expected nil checks to be skipped")
	}
}

func TestHandleReady_DependencyDown(t *testing.T) {
	ts := newTestServer(t)
	ts.server.checks["database"] = pingerFunc(func(ctx context.Context) error { return nil })
	ts.server.checks["queue"] = pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var resp ReadyResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "unavailable" {
		t.Errorf("expected status unavailable, got %s", resp.Status)
	}
	if resp.Checks["queue"] != "connection refused" {
		t.Errorf("expected queue error, got %q", resp.Checks["queue"])
	}
}

func TestHandleSwaggerDoc(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/swagger/doc.json", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var doc map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("expected valid JSON document: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/documents", "/documents/{id}", "/documents/{id}/reprocess", "/search"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("expected path %s in api document", p)
		}
	}
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	ts := newTestServer(t)

	routes := []struct{ method, path string }{
		{"POST", "/api/v1/documents"},
		{"GET", "/api/v1/documents"},
		{"GET", "/api/v1/documents/doc-1"},
		{"GET", "/api/v1/documents/doc-1/chunks"},
		{"POST", "/api/v1/documents/doc-1/reprocess"},
		{"PUT", "/api/v1/documents/doc-1/active"},
		{"DELETE", "/api/v1/documents/doc-1"},
		{"POST", "/api/v1/search"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			rr := httptest.NewRecorder()
			ts.server.Handler().ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rr.Code)
			}

			req = httptest.NewRequest(route.method, route.path, nil)
			req.Header.Set("Authorization", "Bearer forged")
			rr = httptest.NewRecorder()
			ts.server.Handler().ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 for a bad token, got %d", rr.Code)
			}
		})
	}
}

// Document endpoints

func TestHandleUploadDocument(t *testing.T) {
	ts := newTestServer(t)
	pdf := []byte("%PDF-1.4 test")

	var got *domain.UploadRequest
	ts.docs.uploadFn = func(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
		got = req
		return testDocument("doc-1"), nil
	}

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Passing drills",
		"description": "U10 session plans",
		"type":        "session_plan",
	}, pdf, "application/pdf")

	rr := ts.do("POST", "/api/v1/documents", body, contentType)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if got == nil {
		t.Fatal("expected upload to be called")
	}
	if got.ClubID != "club-1" || got.UploadedBy != "user-1" {
		t.Errorf("expected identity from token, got club=%s user=%s", got.ClubID, got.UploadedBy)
	}
	if got.Title != "Passing drills" || got.Description != "U10 session plans" || got.DocType != "session_plan" {
		t.Errorf("unexpected metadata: %+v", got)
	}
	if got.ContentType != "application/pdf" {
		t.Errorf("expected content type application/pdf, got %s", got.ContentType)
	}
	if !bytes.Equal(got.Content, pdf) {
		t.Error("expected file content to be passed through")
	}

	var doc domain.Document
	_ = json.NewDecoder(rr.Body).Decode(&doc)
	if doc.IngestionState != domain.IngestionStateQueued || doc.ChunkCount != 0 {
		t.Errorf("expected queued document with no chunks, got %s/%d", doc.IngestionState, doc.ChunkCount)
	}
}

func TestHandleUploadDocument_MissingFile(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.uploadFn = func(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
		t.Error("upload should not be called")
		return nil, nil
	}

	body, contentType := multipartUpload(t, map[string]string{"title": "No file"}, nil, "")
	rr := ts.do("POST", "/api/v1/documents", body, contentType)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "file is required" {
		t.Errorf("expected 'file is required', got %q", msg)
	}
}

func TestHandleUploadDocument_NotMultipart(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.doJSON("POST", "/api/v1/documents", map[string]string{"title": "x"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleUploadDocument_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation",
			err:        domain.ValidationError("source is not a PDF"),
			wantStatus: http.StatusBadRequest,
			wantError:  "source is not a PDF",
		},
		{
			name:       "queue unavailable",
			err:        fmt.Errorf("%w: enqueue ingestion: connection refused", domain.ErrServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "service unavailable",
		},
		{
			name:       "storage failure",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to upload document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.docs.uploadFn = func(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
				return nil, tt.err
			}

			body, contentType := multipartUpload(t, map[string]string{"title": "Drills"}, []byte("not a pdf"), "application/pdf")
			rr := ts.do("POST", "/api/v1/documents", body, contentType)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if msg := decodeError(t, rr); msg != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, msg)
			}
		})
	}
}

func TestHandleListDocuments(t *testing.T) {
	ts := newTestServer(t)

	var gotClub string
	var gotLimit, gotOffset int
	ts.docs.listFn = func(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
		gotClub, gotLimit, gotOffset = clubID, limit, offset
		return []*domain.Document{testDocument("doc-1"), testDocument("doc-2")}, nil
	}

	rr := ts.do("GET", "/api/v1/documents?limit=10&offset=20", nil, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotClub != "club-1" || gotLimit != 10 || gotOffset != 20 {
		t.Errorf("unexpected list args: club=%s limit=%d offset=%d", gotClub, gotLimit, gotOffset)
	}

	var docs []domain.Document
	_ = json.NewDecoder(rr.Body).Decode(&docs)
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}

func TestHandleListDocuments_Empty(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.listFn = func(ctx context.Context, clubID string, limit, offset int) ([]*domain.Document, error) {
		return nil, nil
	}

	rr := ts.do("GET", "/api/v1/documents", nil, "")

	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHandleListDocuments_InvalidPaging(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"limit=ten", "offset=x"} {
		rr := ts.do("GET", "/api/v1/documents?"+q, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", q, rr.Code)
		}
	}
}

func TestHandleGetDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.getFn = func(ctx context.Context, clubID, id string) (*domain.Document, error) {
		if clubID != "club-1" || id != "doc-1" {
			return nil, domain.ErrNotFound
		}
		doc := testDocument(id)
		doc.IngestionState = domain.IngestionStateCompleted
		doc.ChunkCount = 7
		return doc, nil
	}

	rr := ts.do("GET", "/api/v1/documents/doc-1", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var doc domain.Document
	_ = json.NewDecoder(rr.Body).Decode(&doc)
	if doc.ChunkCount != 7 || doc.IngestionState != domain.IngestionStateCompleted {
		t.Errorf("unexpected document: %+v", doc)
	}

	rr = ts.do("GET", "/api/v1/documents/other-club-doc", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetDocumentChunks(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.getWithChunksFn = func(ctx context.Context, clubID, id string) (*domain.DocumentWithChunks, error) {
		return &domain.DocumentWithChunks{
			Document: testDocument(id),
			Chunks: []*domain.Chunk{
				{ID: "c0", DocumentID: id, Index: 0, Content: "first", Embedding: []float32{0.1, 0.2}, Metadata: domain.ChunkMetadata{PageNumber: 1, CharLength: 5}},
				{ID: "c1", DocumentID: id, Index: 1, Content: "second", Embedding: []float32{0.3, 0.4}, Metadata: domain.ChunkMetadata{PageNumber: 2, CharLength: 6}},
			},
		}, nil
	}

	rr := ts.do("GET", "/api/v1/documents/doc-1/chunks", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "embedding") {
		t.Error("expected embeddings to be omitted")
	}

	var resp DocumentChunksResponse
	_ = json.NewDecoder(strings.NewReader(rr.Body.String())).Decode(&resp)
	if len(resp.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(resp.Chunks))
	}
	if resp.Chunks[1].Index != 1 || resp.Chunks[1].Metadata.PageNumber != 2 {
		t.Errorf("unexpected chunk: %+v", resp.Chunks[1])
	}
}

func TestHandleReprocessDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.reprocessFn = func(ctx context.Context, clubID, id string) (*domain.Document, error) {
		return testDocument(id), nil
	}

	rr := ts.do("POST", "/api/v1/documents/doc-1/reprocess", nil, "")
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}
}

func TestHandleReprocessDocument_AlreadyRunning(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.reprocessFn = func(ctx context.Context, clubID, id string) (*domain.Document, error) {
		return nil, domain.ErrIngestionInProgress
	}

	rr := ts.do("POST", "/api/v1/documents/doc-1/reprocess", nil, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleSetDocumentActive(t *testing.T) {
	ts := newTestServer(t)

	var gotActive *bool
	ts.docs.setActiveFn = func(ctx context.Context, clubID, id string, active bool) (*domain.Document, error) {
		gotActive = &active
		doc := testDocument(id)
		doc.Active = active
		return doc, nil
	}

	rr := ts.doJSON("PUT", "/api/v1/documents/doc-1/active", map[string]bool{"active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotActive == nil || *gotActive {
		t.Error("expected active=false to be passed")
	}

	var doc domain.Document
	_ = json.NewDecoder(rr.Body).Decode(&doc)
	if doc.Active {
		t.Error("expected inactive document in response")
	}
}

func TestHandleSetDocumentActive_InvalidBody(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.setActiveFn = func(ctx context.Context, clubID, id string, active bool) (*domain.Document, error) {
		t.Error("set active should not be called")
		return nil, nil
	}

	rr := ts.do("PUT", "/api/v1/documents/doc-1/active", []byte("{"), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed body, got %d", rr.Code)
	}

	rr = ts.doJSON("PUT", "/api/v1/documents/doc-1/active", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing flag, got %d", rr.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	ts := newTestServer(t)

	var deleted string
	ts.docs.deleteFn = func(ctx context.Context, clubID, id string) error {
		if id == "missing" {
			return domain.ErrNotFound
		}
		deleted = id
		return nil
	}

	rr := ts.do("DELETE", "/api/v1/documents/doc-1", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if deleted != "doc-1" {
		t.Errorf("expected doc-1 to be deleted, got %q", deleted)
	}

	rr = ts.do("DELETE", "/api/v1/documents/missing", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Search endpoints

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t)

	var gotClub, gotQuery string
	var gotOpts domain.SearchOptions
	ts.search.searchFn = func(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
		gotClub, gotQuery, gotOpts = clubID, query, opts
		return &domain.SearchResult{
			Query: query,
			Results: []*domain.DocumentMatch{
				{DocumentID: "doc-1", Title: "Passing drills", Score: 0.91},
				{DocumentID: "doc-2", Title: "Warm ups", Score: 0.42},
			},
			TotalCount: 2,
		}, nil
	}

	rr := ts.doJSON("POST", "/api/v1/search", searchRequest{Query: "rondo", Limit: 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotClub != "club-1" || gotQuery != "rondo" || gotOpts.Limit != 5 {
		t.Errorf("unexpected search args: club=%s query=%s limit=%d", gotClub, gotQuery, gotOpts.Limit)
	}

	var result domain.SearchResult
	_ = json.NewDecoder(rr.Body).Decode(&result)
	if len(result.Results) != 2 || result.Results[0].DocumentID != "doc-1" {
		t.Errorf("unexpected results: %+v", result.Results)
	}
}

func TestHandleSearch_NoMatches(t *testing.T) {
	ts := newTestServer(t)
	ts.search.searchFn = func(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
		return &domain.SearchResult{Query: query, Results: []*domain.DocumentMatch{}}, nil
	}

	rr := ts.doJSON("POST", "/api/v1/search", searchRequest{Query: "goalkeeping"})
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for an empty result, got %d", rr.Code)
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		err        error
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       []byte("{"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty query",
			body:       []byte(`{"query":"  "}`),
			err:        domain.ValidationError("query is required"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "embedding service down",
			body:       []byte(`{"query":"rondo"}`),
			err:        fmt.Errorf("embed query: %w", domain.NewPipelineError(domain.ErrorKindEmbeddingService, "embed", errors.New("502"))),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "embedding timeout",
			body:       []byte(`{"query":"rondo"}`),
			err:        domain.NewPipelineError(domain.ErrorKindEmbeddingTimeout, "embed", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "store failure",
			body:       []byte(`{"query":"rondo"}`),
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.search.searchFn = func(ctx context.Context, clubID, query string, opts domain.SearchOptions) (*domain.SearchResult, error) {
				return nil, tt.err
			}

			rr := ts.do("POST", "/api/v1/search", tt.body, "application/json")
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.NewPipelineError(domain.ErrorKindNotFound, "load", nil), http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ValidationError("bad"), http.StatusBadRequest},
		{domain.ErrIngestionInProgress, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrTokenExpired, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{domain.NewPipelineError(domain.ErrorKindEmbeddingRejected, "embed", nil), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
