package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/whistlegraph/dp1-feed/internal/kv"
	feedsvc "github.com/whistlegraph/dp1-feed/internal/services/feeds"
	"github.com/whistlegraph/dp1-feed/pkg/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ns, key := r.URL.Query().Get("ns"), r.URL.Query().Get("key")
	if ns == "" || key == "" {
		writeError(w, http.StatusBadRequest, "ns and key are required")
		return
	}
	value, err := s.svc.Get(r.Context(), ns, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var de *kv.DecodeError
		if errors.As(err, &de) {
			writeError(w, http.StatusUnprocessableEntity, de.Error())
			return
		}
		s.logger.Error("get failed", log.Str("ns", ns), log.Str("key", key), log.Err(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handleGetMultiple(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string   `json:"namespace"`
		Keys      []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Namespace == "" {
		writeError(w, http.StatusBadRequest, "namespace and keys are required")
		return
	}
	values, err := s.svc.GetMultiple(r.Context(), req.Namespace, req.Keys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string          `json:"namespace"`
		Key       string          `json:"key"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Namespace == "" || req.Key == "" || len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, "namespace, key and value are required")
		return
	}
	if err := s.svc.Save(r.Context(), req.Namespace, req.Key, req.Value); err != nil {
		s.logger.Error("save failed", log.Str("ns", req.Namespace), log.Str("key", req.Key), log.Err(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key})
}

func (s *Server) handleSaveBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string                     `json:"namespace"`
		Entries   map[string]json.RawMessage `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Namespace == "" || len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "namespace and entries are required")
		return
	}
	failed, err := s.svc.SaveBatch(r.Context(), req.Namespace, req.Entries)
	if err != nil {
		// the batch rolled back as a unit; report every key as failed
		writeJSON(w, http.StatusInternalServerError, map[string]any{"failedKeys": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failedKeys": []string{}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace string `json:"namespace"`
		Key       string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Namespace == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "namespace and key are required")
		return
	}
	if err := s.svc.Delete(r.Context(), req.Namespace, req.Key); err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	ns := qp.Get("ns")
	if ns == "" {
		writeError(w, http.StatusBadRequest, "ns is required")
		return
	}
	limit := 0
	if v := qp.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	page, err := s.svc.List(r.Context(), ns, feedsvc.ListQuery{
		Prefix: qp.Get("prefix"),
		Limit:  limit,
		Cursor: qp.Get("cursor"),
		Filter: qp.Get("filter"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rt.Queue().Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleQueueDead(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	dead, err := s.rt.Queue().ListDead(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	type deadEntry struct {
		ID        uint64 `json:"id"`
		Message   string `json:"message"`
		Attempts  uint32 `json:"attempts"`
		LastError string `json:"lastError"`
	}
	out := make([]deadEntry, 0, len(dead))
	for _, e := range dead {
		out = append(out, deadEntry{ID: e.ID, Message: e.Message, Attempts: e.Attempts, LastError: e.LastError})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
