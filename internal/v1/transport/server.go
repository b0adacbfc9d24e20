package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/metrics"
	"github.com/openconquer/generals-server/internal/v1/protocol"
	"github.com/openconquer/generals-server/internal/v1/ratelimit"
	"github.com/openconquer/generals-server/internal/v1/room"
)

// Server upgrades HTTP requests into game sessions.
type Server struct {
	router         Router
	rateLimiter    *ratelimit.RateLimiter
	allowedOrigins []string
}

// NewServer wires the transport to its router. rateLimiter may be nil in
// tests.
func NewServer(router Router, rateLimiter *ratelimit.RateLimiter, allowedOrigins []string) *Server {
	return &Server{
		router:         router,
		rateLimiter:    rateLimiter,
		allowedOrigins: allowedOrigins,
	}
}

// validateOrigin rejects browser requests from unlisted origins. Requests
// without an Origin header (non-browser clients) pass.
func validateOrigin(r *http.Request, allowed []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return nil
		}
	}
	return errors.New("origin not allowed")
}

// ServeWs is the session endpoint: it validates identity query parameters,
// upgrades the connection, and attaches the session to the router.
func (s *Server) ServeWs(c *gin.Context) {
	if s.rateLimiter != nil && !s.rateLimiter.CheckWebSocket(c) {
		return // response already written
	}

	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user_id"})
		return
	}
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing username"})
		return
	}
	if err := room.ValidateName(username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validateOrigin(c.Request, s.allowedOrigins); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, s.allowedOrigins) == nil
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.handleConnection(conn, userID, username)
}

// handleConnection attaches an established connection to the router and
// starts the pumps.
func (s *Server) handleConnection(conn wsConnection, userID, username string) {
	client := newClient(conn, s.router, userID, username)

	go client.writePump()

	if err := s.router.Attach(userID, username, client); err != nil {
		client.Send(protocol.NewError(err.Error()))
		client.Close()
		logging.Warn(context.Background(), "Attach rejected",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	metrics.IncConnection()
	go client.readPump()
}
