package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.GridStats()
	writeJSON(w, map[string]any{
		"circles": h.engine.CircleCount(),
		"grid":    stats,
	})
}

func (h *routerHandlers) handleGetBuckets(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]any{
		"cellSize": snap.CellSize,
		"buckets":  snap.Buckets,
	})
}

func (h *routerHandlers) handleAddCircle(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.AddCircle()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"id":     c.ID,
		"x":      c.X,
		"y":      c.Y,
		"radius": c.Radius,
	})
}

func (h *routerHandlers) handleRemoveCircle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "invalid circle id", http.StatusBadRequest)
		return
	}
	if !h.engine.RemoveCircle(id) {
		writeError(w, "circle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"removed": id})
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := h.engine.Snapshot()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.EncodePNG(w, snap); err != nil {
		// Headers are out; the broken image is all we can report.
		return
	}
	RecordFrame(time.Since(start))
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
