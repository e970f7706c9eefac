package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-rivermind/internal/config"
	apperrors "go-rivermind/internal/errors"
	"go-rivermind/internal/logger"
	"go-rivermind/internal/service"
	"go-rivermind/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFrames upgrades to a websocket on which every binary message is an
// encoded frame for the session. Each frame is answered with its analysis or
// an error object; errors do not close the stream.
func streamFrames(svc service.RiverService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		if _, err := svc.GetSession(sessionID); err != nil {
			respondAppError(c, "cannot stream to session", err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).WithField("session_id", sessionID).Warn("Websocket upgrade failed")
			return
		}
		defer conn.Close()

		log := logger.WithSession(sessionID)
		log.Info("Frame stream opened")

		conn.SetReadLimit(cfg.MaxRequestBodySize)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(streamPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
						return
					}
				}
			}
		}()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Warn("Frame stream read error")
				}
				break
			}
			conn.SetReadDeadline(time.Now().Add(streamPongWait))
			if msgType != websocket.BinaryMessage {
				if writeStreamError(conn, apperrors.NewValidationError("frames must be sent as binary messages", nil)) != nil {
					break
				}
				continue
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AnalysisTimeout)
			resp, err := svc.AnalyzeFrame(ctx, sessionID, data, "")
			cancel()

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err != nil {
				if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
					writeStreamError(conn, err)
					break
				}
				if writeStreamError(conn, err) != nil {
					break
				}
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				break
			}
		}

		log.Info("Frame stream closed")
	}
}

func writeStreamError(conn *websocket.Conn, err error) error {
	resp := models.ErrorResponse{Error: "analysis failed", Message: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Error = http.StatusText(appErr.StatusCode)
		resp.Type = string(appErr.Type)
		resp.Message = appErr.Message
	}
	return conn.WriteJSON(resp)
}
