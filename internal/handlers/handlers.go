// Package handlers exposes the cache service over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tiercache/internal/cache"
	"tiercache/internal/common/errors"
)

// Handlers bundles the HTTP endpoints over a cache service.
type Handlers struct {
	cache *cache.Service
}

// New creates the handler set.
func New(service *cache.Service) *Handlers {
	return &Handlers{cache: service}
}

type setRequest struct {
	Value    json.RawMessage   `json:"value"`
	TTLMs    int64             `json:"ttl_ms,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Compress bool              `json:"compress,omitempty"`
	Layer    string            `json:"layer,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type warmRequest struct {
	Entries []struct {
		Key string `json:"key"`
		setRequest
	} `json:"entries"`
}

type preloadRequest struct {
	Keys []string `json:"keys"`
}

// HandleGet serves GET /api/cache/{key}.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	layer := cache.Layer(r.URL.Query().Get("layer"))

	payload, found := h.cache.Get(r.Context(), key, layer)
	if !found {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": json.RawMessage(payload),
	})
}

// HandleSet serves PUT /api/cache/{key}.
func (h *Handlers) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.cache.Set(r.Context(), key, req.Value, setOptions(&req))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsType(err, errors.ErrTypeValidation) || errors.IsType(err, errors.ErrTypeSerialization) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHas serves HEAD /api/cache/{key}.
func (h *Handlers) HandleHas(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	layer := cache.Layer(r.URL.Query().Get("layer"))

	if h.cache.Has(r.Context(), key, layer) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// HandleDelete serves DELETE /api/cache/{key}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	layer := cache.Layer(r.URL.Query().Get("layer"))

	if err := h.cache.Delete(r.Context(), key, layer); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear serves POST /api/clear.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	layer := cache.Layer(r.URL.Query().Get("layer"))

	if err := h.cache.Clear(r.Context(), layer); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleInvalidateTag serves POST /api/invalidate/{tag}.
func (h *Handlers) HandleInvalidateTag(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	removed, err := h.cache.InvalidateByTag(r.Context(), tag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// HandleWarm serves POST /api/warm.
func (h *Handlers) HandleWarm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entries := make([]cache.WarmEntry, 0, len(req.Entries))
	for i := range req.Entries {
		entries = append(entries, cache.WarmEntry{
			Key:     req.Entries[i].Key,
			Value:   req.Entries[i].Value,
			Options: setOptions(&req.Entries[i].setRequest),
		})
	}

	if err := h.cache.Warm(r.Context(), entries); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePreload serves POST /api/preload.
func (h *Handlers) HandlePreload(w http.ResponseWriter, r *http.Request) {
	var req preloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.cache.Preload(r.Context(), req.Keys); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats serves GET /api/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

// HandleResetStats serves POST /api/stats/reset.
func (h *Handlers) HandleResetStats(w http.ResponseWriter, r *http.Request) {
	h.cache.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck serves GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setOptions(req *setRequest) cache.SetOptions {
	return cache.SetOptions{
		TTL:      time.Duration(req.TTLMs) * time.Millisecond,
		Tags:     req.Tags,
		Compress: req.Compress,
		Layer:    cache.Layer(req.Layer),
		Metadata: req.Metadata,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
