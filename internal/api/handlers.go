// Package api exposes the control surface the overlay UI talks to:
// listening and mode toggles, device selection, exchange history, cache
// statistics, and the websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/internal/storage/sqlite"
	"github.com/sai-assistant/sai/internal/templating"
	"github.com/sai-assistant/sai/pkg/logger"
)

// Controller is the slice of the pipeline the API steers.
type Controller interface {
	Listening() bool
	SetListening(on bool)
	Mode() string
	SetMode(mode string) error
	SelectDevice(ctx context.Context, name string) error
}

// DeviceLister enumerates capture devices. Split from Controller so
// tests can run without portaudio.
type DeviceLister func() ([]audio.DeviceInfo, error)

// Info describes the running instance for /health and /config.
type Info struct {
	Version    string
	EngineName string
	StartedAt  time.Time
}

// Handler holds the request handlers
type Handler struct {
	controller  Controller
	cache       *cache.Cache
	history     *sqlite.HistoryStorage
	stats       *sqlite.StatsStorage
	listDevices DeviceLister
	info        Info
	logger      *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	controller Controller,
	responseCache *cache.Cache,
	history *sqlite.HistoryStorage,
	stats *sqlite.StatsStorage,
	listDevices DeviceLister,
	info Info,
	log *logger.Logger,
) *Handler {
	return &Handler{
		controller:  controller,
		cache:       responseCache,
		history:     history,
		stats:       stats,
		listDevices: listDevices,
		info:        info,
		logger:      log.Named("api-handler"),
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.info.Version,
		"engine":         h.info.EngineName,
		"uptime_seconds": int(time.Since(h.info.StartedAt).Seconds()),
	})
}

// GetConfig handles GET /config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"engine":    h.info.EngineName,
		"mode":      h.controller.Mode(),
		"modes":     templating.Modes(),
		"listening": h.controller.Listening(),
	})
}

// GetDevices handles GET /devices
func (h *Handler) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.listDevices()
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// SelectDevice handles POST /devices/select
func (h *Handler) SelectDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.controller.SelectDevice(r.Context(), req.Name); err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"device": req.Name})
}

// GetListening handles GET /listening
func (h *Handler) GetListening(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]bool{"listening": h.controller.Listening()})
}

// SetListening handles POST /listening
func (h *Handler) SetListening(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Listening bool `json:"listening"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.controller.SetListening(req.Listening)
	h.respondJSON(w, http.StatusOK, map[string]bool{"listening": req.Listening})
}

// GetMode handles GET /mode
func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"mode":  h.controller.Mode(),
		"modes": templating.Modes(),
	})
}

// SetMode handles POST /mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.controller.SetMode(req.Mode); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

// GetHistory handles GET /history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*sqlite.ExchangeRecord{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"history": records})
}

// DeleteHistory handles DELETE /history
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.DeleteAll(); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("Exchange history cleared")
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetCacheStats handles GET /cache/stats. Alongside the live counters
// it returns the last snapshot persisted at shutdown, so the UI can
// show lifetime numbers across restarts.
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	body := map[string]any{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"size":      stats.Size,
		"capacity":  stats.Capacity,
		"hit_rate":  stats.HitRate(),
	}

	if h.stats != nil {
		snapshot, err := h.stats.Latest()
		if err != nil {
			h.logger.Error("Failed to load persisted cache stats", logger.Error(err))
		} else if snapshot != nil {
			body["last_session"] = snapshot
		}
	}

	h.respondJSON(w, http.StatusOK, body)
}

// Export handles GET /export: the full history as a JSON download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.All()
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*sqlite.ExchangeRecord{}
	}

	w.Header().Set("Content-Disposition", `attachment; filename="sai-history.json"`)
	h.respondJSON(w, http.StatusOK, map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"history":     records,
	})
}
