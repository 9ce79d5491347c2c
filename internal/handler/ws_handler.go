package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/middleware"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
)

const wsWriteTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty origin list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams grading status events over WebSocket. Events are
// relayed from the per-test Redis PubSub channel, so any worker replica
// can publish and every connected client of that test receives the update.
type WSHandler struct {
	rdb         *redis.Client
	testService *service.TestService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, testService *service.TestService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:         rdb,
		testService: testService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// TestStatusStream godoc
// WS /ws/v1/tests/:test_id/status?token=...
// Upgrades to WebSocket and pushes grading status events as items move
// through the pipeline. The current status snapshot is sent first so
// clients connecting mid-grade never miss completed transitions.
func (h *WSHandler) TestStatusStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	// Ownership check before upgrading.
	snapshot, err := h.testService.Status(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("test_id", testID.String()).
		Logger()
	wsLog.Info().Msg("Status stream connected")

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(gin.H{"type": "snapshot", "data": snapshot}); err != nil {
		wsLog.Debug().Err(err).Msg("Snapshot write failed")
		return
	}

	ctx := c.Request.Context()
	sub := h.rdb.Subscribe(ctx, config.CacheKey.TestStatusChannel(testID.String()))
	defer sub.Close()

	// Read pump: the client sends nothing meaningful, but reading is the
	// only way to notice a closed connection and tear down the subscription.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Channel():
			if !ok {
				wsLog.Debug().Msg("Subscription closed")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(gin.H{"type": "event", "data": rawEvent(msg.Payload)}); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		case <-done:
			wsLog.Debug().Msg("Client disconnected")
			return
		case <-ctx.Done():
			return
		}
	}
}

// rawEvent decodes a published status event, falling back to the raw
// payload string when it is not valid JSON.
func rawEvent(payload string) interface{} {
	var event model.StatusEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return payload
	}
	return event
}
