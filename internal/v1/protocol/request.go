// Package protocol defines the JSON wire format: inbound requests
// discriminated by type, outbound events, and the compact tuple encodings
// used by map updates.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound request types.
const (
	ReqJoinRoom     = "join_room"
	ReqLeaveRoom    = "leave_room"
	ReqChat         = "chat"
	ReqChatMessage  = "chat_message" // alias of chat
	ReqGetRoomInfo  = "get_room_info"
	ReqForceStart   = "force_start"
	ReqDeForceStart = "de_force_start"
	ReqShouldStart  = "should_start"
	ReqSetAdmin     = "set_admin"
	ReqRemoveAdmin  = "remove_admin"
	ReqKickPlayer   = "kick_player"
	ReqChangeGroup  = "change_group"
	ReqGameMove     = "game_move"
	ReqGameAction   = "game_action"
)

// Request is a decoded inbound frame. Only the fields relevant to Type carry
// meaning; the rest stay at their zero values.
type Request struct {
	Type string `json:"type"`

	RoomID     string  `json:"room_id"`
	PlayerName string  `json:"player_name"`
	Password   *string `json:"password"`

	Message string `json:"message"`
	Content string `json:"content"` // chat_message alias field

	TargetPlayerName string `json:"target_player_name"`
	TargetGroupID    *int   `json:"target_group_id"`

	FromX      int    `json:"from_x"`
	FromY      int    `json:"from_y"`
	ToX        int    `json:"to_x"`
	ToY        int    `json:"to_y"`
	MoveID     string `json:"move_id"`
	IsHalfMove bool   `json:"is_half_move"`

	Action string `json:"action"`
}

// ChatText returns the chat body regardless of which alias field carried it.
func (r *Request) ChatText() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Content
}

// DecodeRequest parses an inbound frame. Unknown types decode fine; the
// router ignores them with a log.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("decode request: missing type")
	}
	if req.Type == ReqChatMessage {
		req.Type = ReqChat
	}
	return &req, nil
}

// Known reports whether the type is part of the protocol.
func (r *Request) Known() bool {
	switch r.Type {
	case ReqJoinRoom, ReqLeaveRoom, ReqChat, ReqGetRoomInfo,
		ReqForceStart, ReqDeForceStart, ReqShouldStart,
		ReqSetAdmin, ReqRemoveAdmin, ReqKickPlayer, ReqChangeGroup,
		ReqGameMove, ReqGameAction:
		return true
	}
	return false
}
