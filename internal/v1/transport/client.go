// Package transport bridges WebSocket connections to the message router. A
// Client decodes inbound frames into typed requests and drains its outbound
// queue; all game logic lives behind the Router interface.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/hub"
	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/metrics"
	"github.com/openconquer/generals-server/internal/v1/protocol"
)

// Router is the hub surface the transport dispatches into.
type Router interface {
	Attach(userID, name string, sink hub.Sink) error
	Detach(userID string)
	JoinRoom(userID, roomID, playerName string, password *string)
	LeaveRoom(userID, roomID string)
	Chat(userID, roomID, text string)
	RoomInfo(userID, roomID string)
	SetAdmin(userID, roomID, targetName string)
	RemoveAdmin(userID, roomID string)
	KickPlayer(userID, roomID, targetName string)
	ChangeGroup(userID, roomID string, targetGroup int)
	ForceStart(userID, roomID string)
	DeForceStart(userID, roomID string)
	ShouldStart(userID, roomID string)
	GameMove(userID, roomID string, fromX, fromY, toX, toY int, moveID string, half bool)
	GameAction(userID, roomID, action string)
}

// wsConnection defines the WebSocket operations the client needs; tests
// substitute a mock.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Client is one live session. Outbound events queue into send; a full queue
// drops the event and the next map update resynchronizes the client.
type Client struct {
	conn   wsConnection
	router Router

	userID string
	name   string

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	send chan []byte
}

func newClient(conn wsConnection, router Router, userID, name string) *Client {
	return &Client{
		conn:   conn,
		router: router,
		userID: userID,
		name:   name,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send marshals an event onto the outbound queue. Never blocks.
func (c *Client) Send(event protocol.Event) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal event", zap.Error(err),
			zap.String("event", event.EventType()))
		return
	}

	// The channel can close between the flag check and the send.
	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Recovered from send on closed client",
				zap.String("user_id", c.userID))
		}
	}()

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "Client send channel full, dropping event",
			zap.String("user_id", c.userID), zap.String("event", event.EventType()))
	}
}

// Close drains the write pump: it sends the close frame and shuts the
// connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// readPump consumes frames until the connection drops, dispatching typed
// requests into the router.
func (c *Client) readPump() {
	defer func() {
		c.router.Detach(c.userID)
		c.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			metrics.InboundFrames.WithLabelValues("invalid", "parse_error").Inc()
			logging.Warn(context.Background(), "Dropping malformed frame",
				zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		if !req.Known() {
			metrics.InboundFrames.WithLabelValues(req.Type, "unknown_type").Inc()
			logging.Warn(context.Background(), "Ignoring unknown frame type",
				zap.String("user_id", c.userID), zap.String("frame_type", req.Type))
			continue
		}

		start := time.Now()
		c.dispatch(req)
		metrics.InboundFrames.WithLabelValues(req.Type, "ok").Inc()
		metrics.FrameProcessingDuration.WithLabelValues(req.Type).Observe(time.Since(start).Seconds())
	}
}

func (c *Client) dispatch(req *protocol.Request) {
	switch req.Type {
	case protocol.ReqJoinRoom:
		c.router.JoinRoom(c.userID, req.RoomID, req.PlayerName, req.Password)
	case protocol.ReqLeaveRoom:
		c.router.LeaveRoom(c.userID, req.RoomID)
	case protocol.ReqChat:
		c.router.Chat(c.userID, req.RoomID, req.ChatText())
	case protocol.ReqGetRoomInfo:
		c.router.RoomInfo(c.userID, req.RoomID)
	case protocol.ReqForceStart:
		c.router.ForceStart(c.userID, req.RoomID)
	case protocol.ReqDeForceStart:
		c.router.DeForceStart(c.userID, req.RoomID)
	case protocol.ReqShouldStart:
		c.router.ShouldStart(c.userID, req.RoomID)
	case protocol.ReqSetAdmin:
		c.router.SetAdmin(c.userID, req.RoomID, req.TargetPlayerName)
	case protocol.ReqRemoveAdmin:
		c.router.RemoveAdmin(c.userID, req.RoomID)
	case protocol.ReqKickPlayer:
		c.router.KickPlayer(c.userID, req.RoomID, req.TargetPlayerName)
	case protocol.ReqChangeGroup:
		if req.TargetGroupID == nil {
			c.Send(protocol.NewError("missing target_group_id"))
			return
		}
		c.router.ChangeGroup(c.userID, req.RoomID, *req.TargetGroupID)
	case protocol.ReqGameMove:
		c.router.GameMove(c.userID, req.RoomID, req.FromX, req.FromY, req.ToX, req.ToY, req.MoveID, req.IsHalfMove)
	case protocol.ReqGameAction:
		c.router.GameAction(c.userID, req.RoomID, req.Action)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "error writing message",
				zap.String("user_id", c.userID), zap.Error(err))
			return
		}
	}
}
