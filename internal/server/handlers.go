package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
)

// maxUploadBytes bounds a multipart upload request. Memory beyond this
// spills to temp files; requests larger than this fail.
const maxUploadBytes = 64 << 20

type ingestTextRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest text request",
		zap.String("tenant", tenantKey), zap.String("filename", req.Filename))
	result, err := s.service.IngestText(r.Context(), tenantKey, req.Filename, req.Text)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]models.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot open uploaded file "+fh.Filename)
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot read uploaded file "+fh.Filename)
			return
		}
		files = append(files, models.FileUpload{Filename: fh.Filename, Content: content})
	}

	s.logger.Debug("upload request", zap.String("tenant", tenantKey), zap.Int("files", len(files)))
	result, err := s.service.Ingest(r.Context(), tenantKey, files)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request",
		zap.String("tenant", tenantKey), zap.Int("top_k", req.TopK))
	result, err := s.service.Query(r.Context(), tenantKey, req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	result, err := s.service.Stats(r.Context(), tenantKey)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	filename := r.URL.Query().Get("filename")
	s.logger.Debug("delete document request",
		zap.String("tenant", tenantKey), zap.String("filename", filename))
	if err := s.service.DeleteDocument(r.Context(), tenantKey, filename); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"filename": filename, "status": "deleted"})
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.Header.Get(tenantHeader)
	s.logger.Debug("delete tenant request", zap.String("tenant", tenantKey))
	if err := s.service.DeleteTenant(r.Context(), tenantKey); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondServiceError maps pipeline errors to HTTP statuses. Validation
// failures are the caller's fault; everything else is a server-side failure.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, rag.ErrValidation) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
