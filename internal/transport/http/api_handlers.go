package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// APIHandlers serves the plain HTTP endpoints next to the websocket.
type APIHandlers struct {
	relay Relay
	log   *zerolog.Logger
	now   func() time.Time
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(relay Relay, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		relay: relay,
		log:   logger,
		now:   time.Now,
	}
}

// RootResponse is returned by the index route.
type RootResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness and the current fan-out set size.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Sessions  int    `json:"sessions"`
}

// Root handles GET /
func (h *APIHandlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, RootResponse{Message: "wirechat relay is running"})
}

// Health handles GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: proto.Timestamp(h.now()),
		Sessions:  h.relay.SessionCount(),
	})
}
