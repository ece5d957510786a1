package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/metrics"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to a relay session.
type WSHandler struct {
	relay Relay
	cfg   *config.Config
	log   *zerolog.Logger
	now   func() time.Time
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(relay Relay, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{relay: relay, cfg: cfg, log: logger, now: time.Now}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	session := core.NewSession(utils.NewID(), h.cfg.SessionBuffer)
	if err := h.relay.Register(session); err != nil {
		h.log.Warn().Err(err).Msg("relay unavailable")
		conn.Close(websocket.StatusTryAgainLater, "relay unavailable")
		return
	}
	defer h.relay.Unregister(session)

	logger := h.log.With().Str("session_id", session.ID).Logger()
	logger.Info().Msg("session connected")
	defer logger.Info().Msg("session disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.write(ctx, conn, outboundConnected(session.ID)); err != nil {
		logger.Warn().Err(err).Msg("write greeting")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "relay error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, logger *zerolog.Logger) error {
	for {
		// wsjson.Read closes the connection on bad JSON; malformed frames
		// only earn an error envelope here.
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		msg, protoErr := inboundToMessage(data, h.now())
		if protoErr != nil {
			metrics.InboundRejected.WithLabelValues(protoErr.Code).Inc()
			logger.Debug().Str("code", protoErr.Code).Msg("rejected inbound frame")
			if writeErr := h.write(ctx, conn, outboundError(protoErr)); writeErr != nil {
				return writeErr
			}
			continue
		}

		if err := h.relay.Publish(ctx, session.ID, msg); err != nil {
			return err
		}
		logger.Debug().Str("user_id", msg.UserID).Str("role", msg.Role).Msg("message accepted")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, logger *zerolog.Logger) error {
	for {
		select {
		case msg, ok := <-session.Events():
			if !ok {
				// Unregistered, evicted or the hub stopped.
				return nil
			}
			if err := h.write(ctx, conn, outboundFromMessage(msg)); err != nil {
				logger.Error().Err(err).Uint64("seq", msg.Seq).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	if h.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.WriteTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, v)
}
