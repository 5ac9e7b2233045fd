package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency checked by /ready
// @Description Readiness status with per-dependency detail
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, Redis and the task queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for name, pinger := range s.checks {
		if pinger == nil {
			continue
		}
		if err := pinger.Ping(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api document not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload document
// @Description  Upload a PDF training document for the caller's club. Ingestion runs asynchronously; poll the document for its state.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file         formData  file    true   "PDF file"
// @Param        title        formData  string  true   "Document title"
// @Param        description  formData  string  false  "Description"
// @Param        type         formData  string  false  "Document type label"
// @Success      202  {object}  domain.Document
// @Failure      400  {object}  ErrorResponse  "Invalid upload"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      413  {object}  ErrorResponse  "Upload too large"
// @Failure      503  {object}  ErrorResponse  "Ingestion queue unavailable"
// @Router       /documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Leave room for the other form fields
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	req := &domain.UploadRequest{
		ClubID:      authCtx.ClubID,
		UploadedBy:  authCtx.UserID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		DocType:     r.FormValue("type"),
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}

	doc, err := s.docService.Upload(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to upload document")
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  List the caller's club documents, newest first
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Page size (default 50, max 200)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   domain.Document
// @Failure      400     {object}  ErrorResponse  "Invalid paging"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	docs, err := s.docService.List(r.Context(), authCtx.ClubID, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}

	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Get a document with its ingestion state and chunk count
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := s.docService.Get(r.Context(), authCtx.ClubID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// chunkView is a chunk without its embedding
type chunkView struct {
	ID       string               `json:"id"`
	Index    int                  `json:"index"`
	Content  string               `json:"content"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

// DocumentChunksResponse is a document with its chunks in index order
// @Description Document with its chunks
type DocumentChunksResponse struct {
	Document *domain.Document `json:"document"`
	Chunks   []chunkView      `json:"chunks"`
}

// handleGetDocumentChunks godoc
// @Summary      Get document chunks
// @Description  Get a document with all its chunks in index order. Embeddings are omitted.
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  DocumentChunksResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id}/chunks [get]
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	dwc, err := s.docService.GetWithChunks(r.Context(), authCtx.ClubID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "failed to get document chunks")
		return
	}

	resp := DocumentChunksResponse{
		Document: dwc.Document,
		Chunks:   make([]chunkView, 0, len(dwc.Chunks)),
	}
	for _, c := range dwc.Chunks {
		resp.Chunks = append(resp.Chunks, chunkView{
			ID:       c.ID,
			Index:    c.Index,
			Content:  c.Content,
			Metadata: c.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReprocessDocument godoc
// @Summary      Reprocess document
// @Description  Re-run ingestion from the stored PDF. The previous chunk set stays searchable until the new one replaces it.
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  domain.Document
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      409  {object}  ErrorResponse  "Ingestion already running"
// @Router       /documents/{id}/reprocess [post]
func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := s.docService.Reprocess(r.Context(), authCtx.ClubID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "failed to reprocess document")
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// setActiveRequest is the request body for PUT /documents/{id}/active
type setActiveRequest struct {
	Active *bool `json:"active"`
}

// handleSetDocumentActive godoc
// @Summary      Activate or deactivate document
// @Description  Inactive documents are excluded from search
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string            true  "Document ID"
// @Param        request  body      setActiveRequest  true  "Active flag"
// @Success      200      {object}  domain.Document
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id}/active [put]
func (s *Server) handleSetDocumentActive(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}

	doc, err := s.docService.SetActive(r.Context(), authCtx.ClubID, r.PathValue("id"), *req.Active)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to update document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Delete a document, its chunks and its stored PDF. An in-flight ingestion run is cancelled.
// @Tags         Documents
// @Security     BearerAuth
// @Param        id   path  string  true  "Document ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.docService.Delete(r.Context(), authCtx.ClubID, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search endpoints

// searchRequest is the request body for search
type searchRequest struct {
	Query string `json:"query" example:"passing drills for under 10s"`
	Limit int    `json:"limit,omitempty" example:"10"`
}

// handleSearch godoc
// @Summary      Search documents
// @Description  Rank the club's active documents by semantic similarity to the query. No match is an empty result.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      searchRequest  true  "Search query"
// @Success      200      {object}  domain.SearchResult
// @Failure      400      {object}  ErrorResponse  "Invalid request or missing query"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      503      {object}  ErrorResponse  "Embedding service unavailable"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.searchService.Search(r.Context(), authCtx.ClubID, req.Query, domain.SearchOptions{Limit: req.Limit})
	if err != nil {
		s.writeServiceError(w, r, err, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Helper functions

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIngestionInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrEmbeddingService),
		errors.Is(err, domain.ErrEmbeddingTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		writeError(w, status, "document not found")
	case http.StatusBadRequest:
		writeError(w, status, validationMessage(err))
	case http.StatusConflict:
		writeError(w, status, "ingestion already running")
	case http.StatusUnauthorized:
		writeError(w, status, "unauthorized")
	case http.StatusForbidden:
		writeError(w, status, "forbidden")
	case http.StatusServiceUnavailable:
		s.logger.Warn("dependency unavailable", "path", r.URL.Path, "error", err)
		writeError(w, status, "service unavailable")
	default:
		s.logger.Error(fallback, "path", r.URL.Path, "error", err)
		writeError(w, status, fallback)
	}
}

// validationMessage returns the caller-facing part of a validation error
func validationMessage(err error) string {
	var pe *domain.PipelineError
	if errors.As(err, &pe) && pe.Kind == domain.ErrorKindValidation && pe.Err != nil {
		return pe.Err.Error()
	}
	return "invalid input"
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
