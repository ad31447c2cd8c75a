package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"powpow/internal/chat"
	"powpow/internal/game"
	"powpow/internal/spectate"

	"github.com/go-chi/chi/v5"
)

// Cell size bounds for the spectator image
const (
	defaultCellSize = 16
	minCellSize     = 4
	maxCellSize     = 64
)

type chatMessageRequest struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// handleChatMessage is the webhook-style chat transport: one message in,
// one reply out.
func (h *routerHandlers) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		writeError(w, "identity is required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.Identity
	}

	// A bridge relays many identities from one IP; each gets its own bucket
	if !h.limits.AllowIdentity(req.Identity) {
		RecordConnectionRejected("identity_rate_limit")
		w.Header().Set("Retry-After", "1")
		writeError(w, chat.MsgSlowDown, http.StatusTooManyRequests)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.replyTimeout)
	defer cancel()

	reply, err := h.chat.Submit(ctx, chat.InboundMessage{
		Identity:    req.Identity,
		DisplayName: req.Name,
		Text:        req.Text,
		ReceivedAt:  time.Now(),
	})
	switch {
	case err == nil:
		writeJSON(w, reply)
	case errors.Is(err, chat.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		writeError(w, chat.MsgSlowDown, http.StatusTooManyRequests)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, "Timed out waiting for the game", http.StatusGatewayTimeout)
	default:
		writeError(w, chat.MsgInternal, http.StatusServiceUnavailable)
	}
}

func (h *routerHandlers) handleGetRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Rooms())
}

func (h *routerHandlers) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.roomSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, snap)
}

// handleGetRoomScore returns the ranking as JSON, or as the chat score
// table with ?format=text
func (h *routerHandlers) handleGetRoomScore(w http.ResponseWriter, r *http.Request) {
	name, ok := roomParam(w, r)
	if !ok {
		return
	}

	entries, err := h.engine.RoomScore(name)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(game.RenderScoreTable(entries)))
		return
	}
	writeJSON(w, entries)
}

// handleGetRoomImage renders the room for spectators. ?cell= sets the cell size in pixels.
func (h *routerHandlers) handleGetRoomImage(w http.ResponseWriter, r *http.Request) {
	cellSize := defaultCellSize
	if v := r.URL.Query().Get("cell"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minCellSize || n > maxCellSize {
			writeError(w, "cell must be between 4 and 64", http.StatusBadRequest)
			return
		}
		cellSize = n
	}

	snap, ok := h.roomSnapshot(w, r)
	if !ok {
		return
	}

	img, err := spectate.RenderPNG(snap, cellSize)
	if err != nil {
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"engine":   h.engine.Stats(),
		"queue":    h.chat.Stats(),
		"eventLog": h.engine.GetEventLogStats(),
		"limits":   h.limits.Stats(),
	}
	if h.connections != nil {
		stats["connections"] = h.connections.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) roomSnapshot(w http.ResponseWriter, r *http.Request) (game.RoomSnapshot, bool) {
	name, ok := roomParam(w, r)
	if !ok {
		return game.RoomSnapshot{}, false
	}

	snap, err := h.engine.RoomSnapshot(name)
	if err != nil {
		writeEngineError(w, err)
		return game.RoomSnapshot{}, false
	}
	return snap, true
}

// roomParam decodes the {name} path segment
func roomParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, "Invalid room name", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine error kinds onto HTTP statuses
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrUnknownRoom):
		writeError(w, err.Error(), http.StatusNotFound)
	case game.KindOf(err) == game.KindInvalidInput:
		writeError(w, err.Error(), http.StatusBadRequest)
	case game.KindOf(err) == game.KindPreconditionFailed:
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}
