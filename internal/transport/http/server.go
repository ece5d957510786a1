package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// Relay is the part of the hub the transport layer depends on.
type Relay interface {
	Register(s *core.Session) error
	Unregister(s *core.Session)
	Publish(ctx context.Context, origin string, msg core.Message) error
	SessionCount() int
}

// NewServer builds the HTTP server. The websocket endpoint sits on a plain ServeMux
// in front of gin: gin's response writer cannot be hijacked for the upgrade.
func NewServer(relay Relay, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())

	api := NewAPIHandlers(relay, logger)
	router.GET("/", api.Root)
	router.GET("/health", api.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	corsRouter := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{stdhttp.MethodGet, stdhttp.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(relay, cfg, logger))
	mux.Handle("/", corsRouter)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
