package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/metrics"
	"github.com/openconquer/generals-server/internal/v1/protocol"
	"github.com/openconquer/generals-server/internal/v1/room"
)

// timeNow is swapped in tests that drive lockouts and grace windows.
var timeNow = time.Now

// GameMove applies a move immediately. A rejected move answers with a single
// error and no map update; an accepted one echoes move_ok and broadcasts a
// fresh per-viewer snapshot carrying the move id.
func (h *Hub) GameMove(userID, roomID string, fromX, fromY, toX, toY int, moveID string, half bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	r, exists := h.rooms[roomID]
	if !exists || r.Status != room.StatusPlaying {
		s.sink.Send(protocol.NewError("no game in progress"))
		return
	}
	team, onTeam := r.Teams[userID]
	if !onTeam {
		s.sink.Send(protocol.NewError("you are not playing in this game"))
		return
	}

	outcome, err := r.Map.ApplyMove(team, fromX, fromY, toX, toY, half)
	if err != nil {
		s.sink.Send(protocol.NewError(err.Error()))
		return
	}
	metrics.MovesApplied.Inc()
	s.sink.Send(protocol.NewMoveOk(moveID))

	if outcome.Eliminated != "" {
		for _, m := range r.Members() {
			if r.Teams[m.ID] == outcome.Eliminated {
				h.broadcastLocked(r, protocol.NewPlayerEliminated(m.Name, s.name))
			}
		}
	}

	h.broadcastMapUpdateLocked(r, []string{moveID})

	if outcome.Winner != "" {
		h.endGameLocked(r, outcome.Winner)
	}
}

// GameAction stores a player's opaque action string for the next turn update.
func (h *Hub) GameAction(userID, roomID, action string) {
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
	if r.Status != room.StatusPlaying {
		s.sink.Send(protocol.NewError("no game in progress"))
		return
	}
	r.Actions[userID] = action
}

// AdvanceTurn is the scheduler entry point: growth, win check, snapshots,
// then the half-turn advance and re-arm.
func (h *Hub) AdvanceTurn(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[roomID]
	if !exists || r.Status != room.StatusPlaying {
		// Room deleted or game ended between firings; let the timer die.
		logging.Warn(context.Background(), "Turn fired for non-playing room",
			zap.String("room_id", roomID))
		return
	}

	r.GrowTick()
	metrics.TurnsAdvanced.Inc()

	if winner, over := r.CheckWin(); over {
		h.endGameLocked(r, winner)
		return
	}

	h.broadcastMapUpdateLocked(r, nil)
	h.broadcastLocked(r, protocol.NewGameTurnUpdate(r.Turn, r.Half == room.SecondHalf, h.actionsLocked(r)))

	r.AdvanceHalf()
	h.armTimerLocked(roomID)
}

func (h *Hub) actionsLocked(r *room.Room) [][2]string {
	players := r.ActivePlayers()
	actions := make([][2]string, 0, len(players))
	for _, m := range players {
		action, ok := r.Actions[m.ID]
		if !ok {
			action = "waiting"
		}
		actions = append(actions, [2]string{m.Name, action})
	}
	return actions
}

// startGameLocked transitions the room into play and arms its timer.
func (h *Hub) startGameLocked(r *room.Room) {
	r.StartGame(h.rng)
	metrics.GamesStarted.Inc()

	h.broadcastLocked(r, protocol.NewStartGame(r.ID))
	h.broadcastMapUpdateLocked(r, nil)
	h.armTimerLocked(r.ID)

	logging.Info(context.Background(), "Game started",
		zap.String("room_id", r.ID), zap.Int("players", len(r.ActivePlayers())))
}

// endGameLocked stops scheduling and announces the result.
func (h *Hub) endGameLocked(r *room.Room, winner string) {
	r.EndGame(winner)
	h.stopTimerLocked(r.ID)
	metrics.GamesEnded.Inc()

	h.broadcastLocked(r, protocol.NewGameWin(winner))
	h.broadcastLocked(r, protocol.NewEndGame(r.ID))

	logging.Info(context.Background(), "Game ended",
		zap.String("room_id", r.ID), zap.String("winner", winner))
}

// broadcastMapUpdateLocked sends each online member their own fogged
// projection plus the shared roster.
func (h *Hub) broadcastMapUpdateLocked(r *room.Room, moveIDs []string) {
	roster := r.Roster(h.disconnectedInLocked(r))
	powers := make([]protocol.PlayerPower, len(roster))
	for i, e := range roster {
		powers[i] = protocol.PlayerPower{Name: e.Name, Group: e.Group, Power: e.Power, Status: e.Status}
	}

	for _, m := range r.Members() {
		s, online := h.sessions[m.ID]
		if !online {
			continue
		}
		tiles := protocol.ProjectTiles(r.ViewFor(m.ID))
		s.sink.Send(protocol.NewMapUpdate(r.ID, tiles, moveIDs, powers))
	}
}

func (h *Hub) armTimerLocked(roomID string) {
	if t, ok := h.timers[roomID]; ok {
		t.Stop()
	}
	h.timers[roomID] = time.AfterFunc(TurnInterval, func() {
		select {
		case <-h.done:
			return
		default:
		}
		h.AdvanceTurn(roomID)
	})
}

func (h *Hub) stopTimerLocked(roomID string) {
	if t, ok := h.timers[roomID]; ok {
		t.Stop()
		delete(h.timers, roomID)
	}
}
