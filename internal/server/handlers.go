package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
)

type createNoteResponse struct {
	Note    models.Note `json:"note"`
	Warning string      `json:"warning,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Notes().List()
	if err != nil {
		s.logger.Error("list notes failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notes": list, "total": len(list)})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(input.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	s.logger.Debug("create note request", zap.String("title", input.Title), zap.Int("bytes", len(input.Content)))
	note, err := s.svc.CreateNote(r.Context(), input)
	if err != nil {
		if note.Filename == "" {
			s.logger.Error("create note failed", zap.Error(err))
			s.respondFailure(w, err)
			return
		}
		// Written but not embedded; a later reindex picks it up.
		s.logger.Warn("note created without embedding", zap.String("id", note.Filename), zap.Error(err))
		s.respondJSON(w, http.StatusCreated, createNoteResponse{Note: note, Warning: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusCreated, createNoteResponse{Note: note})
}

func (s *Server) handleSuggestTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	title, err := s.svc.SuggestTitle(r.Context(), body.Content)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"title": title})
}

// noteID resolves the {id} URL parameter, which may be a filename or a list position.
func (s *Server) noteID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.svc.Notes().Resolve(chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteID(w, r)
	if !ok {
		return
	}
	note, err := s.svc.Notes().Get(id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteID(w, r)
	if !ok {
		return
	}
	rel, err := s.svc.Related(r.Context(), id)
	if err != nil {
		s.logger.Debug("related lookup failed", zap.String("id", id), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rel)
}

func (s *Server) handleIndexNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteID(w, r)
	if !ok {
		return
	}
	if err := s.svc.IndexNote(r.Context(), id); err != nil {
		s.logger.Error("index note failed", zap.String("id", id), zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "indexed"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	semantic, _ := strconv.ParseBool(q.Get("semantic"))
	hybrid, _ := strconv.ParseBool(q.Get("hybrid"))
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.logger.Debug("search request", zap.String("query", query), zap.Bool("semantic", semantic), zap.Bool("hybrid", hybrid), zap.Int("limit", limit))
	if hybrid {
		fused, err := s.svc.HybridSearch(r.Context(), query, limit)
		if err != nil {
			s.logger.Error("hybrid search failed", zap.Error(err))
			s.respondFailure(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query, "hybrid": true, "results": fused})
		return
	}
	results, err := s.svc.Search(r.Context(), query, semantic, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if results == nil {
		results = []models.SimilarityResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query, "semantic": semantic, "results": results})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Cleanup(r.Context())
	if err != nil {
		s.logger.Error("prune failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	report, err := s.svc.Reindex(r.Context(), all)
	if err != nil {
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	if report.Indexed == nil {
		report.Indexed = []string{}
	}
	s.respondJSON(w, http.StatusOK, report)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbeddingProvider):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
