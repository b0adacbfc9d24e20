package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/metrics"
	"github.com/openconquer/generals-server/internal/v1/protocol"
	"github.com/openconquer/generals-server/internal/v1/room"
)

// JoinRoom places a user in a room, implicitly creating it when unknown.
// A mismatched player name is dropped without a reply.
func (h *Hub) JoinRoom(userID, roomID, playerName string, password *string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	if playerName != "" && playerName != s.name {
		logging.Warn(context.Background(), "join_room name mismatch ignored",
			zap.String("user_id", userID), zap.String("claimed", playerName))
		return
	}

	r, exists := h.rooms[roomID]
	if exists {
		if until := r.KickLockedUntil(userID, timeNow()); !until.IsZero() {
			s.sink.Send(protocol.NewError(room.ErrKickLocked.Error()))
			s.sink.Send(protocol.NewRedirectToHome("kicked"))
			return
		}
		if err := r.CheckPassword(password); err != nil {
			s.sink.Send(protocol.NewError(err.Error()))
			return
		}
		if r.HasMember(userID) {
			s.sink.Send(h.roomInfoLocked(r))
			return
		}
		if r.IsFull() {
			s.sink.Send(protocol.NewError(room.ErrRoomFull.Error()))
			return
		}
	} else {
		if err := room.ValidateRoomID(roomID); err != nil {
			s.sink.Send(protocol.NewError(err.Error()))
			return
		}
		r = room.NewDefault(roomID)
		h.rooms[roomID] = r
		metrics.ActiveRooms.Inc()
	}

	// A user sits in at most one non-global room.
	for _, other := range h.roomsOfLocked(userID) {
		if !other.IsGlobal() && other.ID != r.ID {
			h.removeFromRoomLocked(other, userID, s.name)
		}
	}

	r.AddMember(userID, s.name)
	metrics.RoomMembers.WithLabelValues(r.ID).Set(float64(len(r.Members())))

	h.broadcastLocked(r, protocol.NewJoinRoom(r.ID, s.name))
	h.broadcastLocked(r, h.roomInfoLocked(r))

	if r.Status == room.StatusPlaying {
		if _, onTeam := r.Teams[userID]; !onTeam {
			s.sink.Send(protocol.NewRedirectToGame(r.ID))
		}
	}
}

// LeaveRoom removes a user from a room. Leaving the lobby is forbidden.
func (h *Hub) LeaveRoom(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	if roomID == room.GlobalRoomID {
		s.sink.Send(protocol.NewError("cannot leave the global room"))
		return
	}
	r, exists := h.rooms[roomID]
	if !exists || !r.HasMember(userID) {
		s.sink.Send(protocol.NewError(room.ErrNotMember.Error()))
		return
	}

	h.removeFromRoomLocked(r, userID, s.name)
	s.sink.Send(protocol.NewLeaveRoom(r.ID, s.name))
}

// removeFromRoomLocked strips the user and emits the side-effect events:
// the departure broadcast, admin promotion, and a forfeit when the last
// member of a playing team goes.
func (h *Hub) removeFromRoomLocked(r *room.Room, userID, name string) {
	team := r.Teams[userID]
	promoted := r.RemoveMember(userID)
	metrics.RoomMembers.WithLabelValues(r.ID).Set(float64(len(r.Members())))

	h.broadcastLocked(r, protocol.NewLeaveRoom(r.ID, name))
	if promoted != "" {
		h.systemChatLocked(r, "%s is now the room admin", promoted)
	}

	if r.Status == room.StatusPlaying && team != "" {
		delete(r.Teams, userID)
		if !h.teamOccupiedLocked(r, team) {
			r.Map.RemoveTeam(team)
			h.systemChatLocked(r, "%s's team forfeited", name)
			if winner, over := r.CheckWin(); over {
				h.endGameLocked(r, winner)
				return
			}
		}
	}

	if len(r.Members()) > 0 {
		h.broadcastLocked(r, h.roomInfoLocked(r))
	}
}

func (h *Hub) teamOccupiedLocked(r *room.Room, team string) bool {
	for _, m := range r.Members() {
		if r.Teams[m.ID] == team {
			return true
		}
	}
	return false
}

// Chat broadcasts a message to every current member, sender included.
func (h *Hub) Chat(userID, roomID, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists || !r.HasMember(userID) {
		s.sink.Send(protocol.NewError(room.ErrNotMember.Error()))
		return
	}
	h.broadcastLocked(r, protocol.NewChatMessage(roomID, s.name, text))
}

// RoomInfo replies with a snapshot of the room to the requester only.
func (h *Hub) RoomInfo(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	s.sink.Send(h.roomInfoLocked(r))
}

// SetAdmin grants the admin seat. Host only; the host cannot hold both seats.
func (h *Hub) SetAdmin(userID, roomID, targetName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	if r.IsGlobal() {
		s.sink.Send(protocol.NewError("the global room cannot be moderated"))
		return
	}
	if userID != r.Host {
		s.sink.Send(protocol.NewError("only the host may set an admin"))
		return
	}
	target, found := r.MemberByName(targetName)
	if !found {
		s.sink.Send(protocol.NewError("player not found"))
		return
	}
	if target.ID == r.Host {
		s.sink.Send(protocol.NewError("the host cannot be admin"))
		return
	}

	r.Admin = target.ID
	h.systemChatLocked(r, "%s is now the room admin", target.Name)
	h.broadcastLocked(r, h.roomInfoLocked(r))
}

// RemoveAdmin clears the admin seat. Host only.
func (h *Hub) RemoveAdmin(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	if r.IsGlobal() {
		s.sink.Send(protocol.NewError("the global room cannot be moderated"))
		return
	}
	if userID != r.Host {
		s.sink.Send(protocol.NewError("only the host may remove an admin"))
		return
	}
	if r.Admin == "" {
		s.sink.Send(protocol.NewError("the room has no admin"))
		return
	}

	r.Admin = ""
	h.broadcastLocked(r, h.roomInfoLocked(r))
}

// KickPlayer ejects a member and starts their rejoin lockout. Host or admin;
// the host is unkickable. The kicked session receives an error, a redirect
// home, and a leave event, in that order.
func (h *Hub) KickPlayer(userID, roomID, targetName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	if r.IsGlobal() {
		s.sink.Send(protocol.NewError("the global room cannot be moderated"))
		return
	}
	if !r.CanModerate(userID) {
		s.sink.Send(protocol.NewError("only the host or admin may kick"))
		return
	}
	target, found := r.MemberByName(targetName)
	if !found {
		s.sink.Send(protocol.NewError("player not found"))
		return
	}
	if target.ID == r.Host {
		s.sink.Send(protocol.NewError("the host cannot be kicked"))
		return
	}

	r.RecordKick(target.ID, timeNow())

	h.sendToLocked(target.ID, protocol.NewError("you were kicked from the room"))
	h.sendToLocked(target.ID, protocol.NewRedirectToHome("kicked"))
	h.removeFromRoomLocked(r, target.ID, target.Name)
	h.sendToLocked(target.ID, protocol.NewLeaveRoom(r.ID, target.Name))
	h.systemChatLocked(r, "%s was kicked by %s", target.Name, s.name)
}

// ChangeGroup reseats a member. In a waiting room with votes pending, the
// quorum is re-evaluated: the move may start the game or void the votes.
func (h *Hub) ChangeGroup(userID, roomID string, targetGroup int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	if err := r.ChangeGroup(userID, targetGroup); err != nil {
		s.sink.Send(protocol.NewError(err.Error()))
		return
	}

	if r.Status == room.StatusWaiting && r.ForceStart.Len() > 0 {
		if len(r.ActivePlayers()) < room.MinPlayers {
			r.ClearForceStart()
			h.systemChatLocked(r, "force start cancelled: not enough players")
		} else if r.ShouldStart() {
			h.broadcastLocked(r, h.roomInfoLocked(r))
			h.startGameLocked(r)
			return
		}
	}
	h.broadcastLocked(r, h.roomInfoLocked(r))
}

// ForceStart casts a start vote; a duplicate vote is an error. Meeting the
// quorum starts the game.
func (h *Hub) ForceStart(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists || !r.HasMember(userID) {
		s.sink.Send(protocol.NewError(room.ErrNotMember.Error()))
		return
	}
	if r.Status != room.StatusWaiting {
		s.sink.Send(protocol.NewError("the game has already started"))
		return
	}
	if r.ForceStart.Has(userID) {
		s.sink.Send(protocol.NewError("you already voted to start"))
		return
	}

	r.ForceStart.Insert(userID)
	threshold, _ := r.StartThreshold()
	h.systemChatLocked(r, "%s voted to start (%d/%d)", s.name, r.CountedVotes(), threshold)
	h.broadcastLocked(r, h.roomInfoLocked(r))

	if r.ShouldStart() && len(r.ActivePlayers()) >= room.MinPlayers {
		h.startGameLocked(r)
	}
}

// DeForceStart withdraws a start vote; withdrawing an absent vote is a no-op.
func (h *Hub) DeForceStart(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists || !r.HasMember(userID) {
		s.sink.Send(protocol.NewError(room.ErrNotMember.Error()))
		return
	}

	if r.ForceStart.Has(userID) {
		r.ForceStart.Delete(userID)
		h.broadcastLocked(r, h.roomInfoLocked(r))
	}
}

// ShouldStart answers whether the force-start quorum is currently met.
func (h *Hub) ShouldStart(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists {
		s.sink.Send(protocol.NewError("room not found"))
		return
	}
	s.sink.Send(protocol.NewShouldStart(r.ShouldStart()))
}
