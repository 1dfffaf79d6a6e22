package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const maxPresenceLimit = 500

// RosterHandlers exposes read-only views of presence over HTTP.
type RosterHandlers struct {
	hub      *core.Hub
	presence store.PresenceStore
	log      *zerolog.Logger
}

// NewRosterHandlers creates a new roster handlers instance.
func NewRosterHandlers(hub *core.Hub, presence store.PresenceStore, logger *zerolog.Logger) *RosterHandlers {
	return &RosterHandlers{
		hub:      hub,
		presence: presence,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PresenceResponse is one audit log entry.
type PresenceResponse struct {
	ID           int64  `json:"id"`
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	HasPublicKey bool   `json:"has_public_key"`
	Action       string `json:"action"`
	CreatedAt    string `json:"created_at"`
}

// GetRoster returns the current roster, including announced public keys.
// GET /api/roster
func (h *RosterHandlers) GetRoster(c *gin.Context) {
	c.JSON(http.StatusOK, rosterData(h.hub.Roster()))
}

// ListPresence returns recent join/leave transitions.
// GET /api/presence?limit=N
func (h *RosterHandlers) ListPresence(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "presence log disabled"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPresenceLimit)
	}

	events, err := h.presence.ListPresence(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list presence events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PresenceResponse, 0, len(events))
	for _, ev := range events {
		response = append(response, PresenceResponse{
			ID:           ev.ID,
			ConnectionID: ev.ConnectionID,
			Username:     ev.Username,
			HasPublicKey: ev.HasPublicKey,
			Action:       string(ev.Action),
			CreatedAt:    ev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, response)
}
