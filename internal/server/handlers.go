package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/models"
	"github.com/exilemind/buildsearch/internal/vector"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("max_results", query.MaxResults))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			s.respondError(w, http.StatusConflict, "index not built; ingest builds first")
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type ingestRequest struct {
	Builds []*models.BuildRecord `json:"builds"`
}

func (s *Server) handleIngestBuilds(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Builds) == 0 {
		s.respondError(w, http.StatusBadRequest, "builds is required")
		return
	}
	s.logger.Debug("ingest request", zap.Int("builds", len(req.Builds)))
	report, err := s.ingestor.IngestRecords(r.Context(), req.Builds)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	record, err := s.store.GetRecord(r.Context(), hash)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "build not found")
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	s.logger.Debug("delete build request", zap.String("hash", hash))
	if err := s.ingestor.DeleteRecord(r.Context(), hash); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The vector stays indexed until the next rebuild; deletion only removes
	// the record from the store and its memoized feature texts.
	s.respondJSON(w, http.StatusOK, map[string]string{"hash": hash, "status": "deleted"})
}

func (s *Server) handleFindVariants(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	record, err := s.store.GetRecord(r.Context(), hash)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "build not found")
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if limit, err = strconv.Atoi(q); err != nil || limit < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	response, err := s.engine.FindVariants(r.Context(), record, limit)
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			s.respondError(w, http.StatusConflict, "index not built; ingest builds first")
			return
		}
		s.logger.Error("find variants failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type variantsRequest struct {
	Build *models.BuildRecord `json:"build"`
	Limit int                 `json:"limit,omitempty"`
}

// handleVariantsOfBody finds variants of a build that is not necessarily in
// the record store; the reference comes in the request body.
func (s *Server) handleVariantsOfBody(w http.ResponseWriter, r *http.Request) {
	var req variantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Build == nil {
		s.respondError(w, http.StatusBadRequest, "build is required")
		return
	}
	response, err := s.engine.FindVariants(r.Context(), req.Build, req.Limit)
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			s.respondError(w, http.StatusConflict, "index not built; ingest builds first")
			return
		}
		s.logger.Error("find variants failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestor.Rebuild(r.Context()); err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.index.Stats())
}

type versionRequest struct {
	Version string `json:"version"`
}

func (s *Server) handleSaveIndex(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	version, err := s.index.Save(req.Version)
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			s.respondError(w, http.StatusConflict, "index not built")
			return
		}
		s.logger.Error("save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"version": version, "status": "saved"})
}

func (s *Server) handleLoadIndex(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.index.Load(req.Version); err != nil {
		s.logger.Error("load failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.index.Stats())
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	report, err := s.index.Optimize()
	if err != nil {
		if errors.Is(err, vector.ErrNotBuilt) {
			s.respondError(w, http.StatusConflict, "index not built")
			return
		}
		s.logger.Error("optimize failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	name, err := s.index.Backup()
	if err != nil {
		s.logger.Error("backup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"backup": name, "status": "created"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountRecords(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"builds": count,
		"index":  s.index.Stats(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
